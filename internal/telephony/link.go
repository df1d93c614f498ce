package telephony

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/covecrm/dialer-bridge/internal/audio"
	"github.com/covecrm/dialer-bridge/pkg/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Upgrade promotes an inbound HTTP request to a websocket, matching
// the gorilla/websocket usage already standard in this codebase.
func Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}

// Callbacks are invoked from Link.Run on the same goroutine that reads
// the socket; callers route them onto a Call's actor so they never run
// concurrently with a pacer tick or a ModelLink event.
type Callbacks struct {
	OnStart func(streamSid, callSid, sessionID, leadID string)
	OnMedia func(payload []byte)
	OnStop  func()
}

// Link is one carrier-facing websocket connection.
type Link struct {
	conn      *websocket.Conn
	streamSid string
}

func NewLink(conn *websocket.Conn) *Link {
	return &Link{conn: conn}
}

// Run reads frames until the socket closes or ctx is cancelled,
// dispatching Callbacks per spec §4.1. Malformed JSON is logged and
// dropped, never fatal to the call.
func (l *Link) Run(ctx context.Context, cb Callbacks) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, raw, err := l.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Base().Warn("telephony socket closed unexpectedly", zap.Error(err))
			}
			if cb.OnStop != nil {
				cb.OnStop()
			}
			return err
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Base().Warn("dropping malformed telephony frame", zap.Error(err))
			continue
		}

		switch msg.Event {
		case "start":
			if msg.Start == nil {
				continue
			}
			l.streamSid = msg.Start.StreamSid
			sessionID := msg.Start.CustomParameters["sessionId"]
			leadID := msg.Start.CustomParameters["leadId"]
			if cb.OnStart != nil {
				cb.OnStart(msg.Start.StreamSid, msg.Start.CallSid, sessionID, leadID)
			}
		case "media":
			if msg.Media == nil || msg.Media.Track == "outbound" {
				continue
			}
			payload, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if err != nil {
				logger.Base().Warn("dropping undecodable media payload", zap.Error(err))
				continue
			}
			if cb.OnMedia != nil {
				cb.OnMedia(payload)
			}
		case "stop":
			if cb.OnStop != nil {
				cb.OnStop()
			}
			return nil
		case "connected":
			// Informational only.
		default:
			logger.Base().Debug("ignoring unknown telephony event", zap.String("event", msg.Event))
		}
	}
}

// WriteFrame emits one outbound media frame. frame must be exactly
// audio.FrameBytes long; this is the single choke point that enforces
// the "every outbound payload is exactly 160 bytes" invariant.
func (l *Link) WriteFrame(frame []byte) error {
	if len(frame) != audio.FrameBytes {
		return fmt.Errorf("telephony: refusing to write %d-byte frame, want %d", len(frame), audio.FrameBytes)
	}
	out := outboundMedia{
		Event:     "media",
		StreamSid: l.streamSid,
		Media:     mediaPayload{Payload: base64.StdEncoding.EncodeToString(frame)},
	}
	return l.conn.WriteJSON(out)
}

func (l *Link) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}
