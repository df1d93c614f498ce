package model

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/covecrm/dialer-bridge/pkg/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout = 15 * time.Second

	// Defaults from spec §4.2.
	defaultSilenceDurationMs = 550
	defaultPrefixPaddingMs   = 300
)

// Dial opens the realtime websocket, matching the model name and
// credentials into the URL/headers the provider expects.
func Dial(ctx context.Context, endpoint, apiKey, modelName string) (*Link, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)
	url := fmt.Sprintf("%s?model=%s", endpoint, modelName)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("model: dial %s: %w", endpoint, err)
	}
	return &Link{conn: conn}, nil
}

// Link is one call's websocket connection to the realtime model.
type Link struct {
	conn *websocket.Conn
}

// SessionConfig mirrors the fields spec §4.2 mandates in session.update.
type SessionConfig struct {
	Instructions       string
	Voice              string
	Temperature        float64
	SilenceDurationMs  int
	PrefixPaddingMs    int
}

// SendSessionUpdate issues the single mandatory session.update.
// create_response is hardcoded false: the server alone decides when
// to speak.
func (l *Link) SendSessionUpdate(cfg SessionConfig) error {
	if cfg.SilenceDurationMs == 0 {
		cfg.SilenceDurationMs = defaultSilenceDurationMs
	}
	if cfg.PrefixPaddingMs == 0 {
		cfg.PrefixPaddingMs = defaultPrefixPaddingMs
	}
	payload := map[string]interface{}{
		"type": "session.update",
		"session": map[string]interface{}{
			"instructions":         cfg.Instructions,
			"modalities":           []string{"audio", "text"},
			"voice":                cfg.Voice,
			"temperature":          cfg.Temperature,
			"input_audio_format":   "g711_ulaw",
			"output_audio_format":  "g711_ulaw",
			"input_audio_transcription": map[string]interface{}{
				"enabled": true,
			},
			"turn_detection": map[string]interface{}{
				"type":              "server_vad",
				"create_response":   false,
				"silence_duration_ms": cfg.SilenceDurationMs,
				"prefix_padding_ms":   cfg.PrefixPaddingMs,
			},
		},
	}
	return l.send(payload)
}

func (l *Link) AppendAudio(payloadB64 string) error {
	return l.send(map[string]interface{}{
		"type":  "input_audio_buffer.append",
		"audio": payloadB64,
	})
}

func (l *Link) ClearAudioBuffer() error {
	return l.send(map[string]interface{}{"type": "input_audio_buffer.clear"})
}

func (l *Link) CommitAudioBuffer() error {
	return l.send(map[string]interface{}{"type": "input_audio_buffer.commit"})
}

// ResponseCreate requests a turn, carrying the literal instruction
// text TurnGate/Stepper composed (spec §4.7's buildStepperTurnInstruction).
func (l *Link) ResponseCreate(instructions string, temperature float64) error {
	return l.send(map[string]interface{}{
		"type": "response.create",
		"response": map[string]interface{}{
			"modalities":   []string{"audio", "text"},
			"temperature":  temperature,
			"instructions": instructions,
		},
	})
}

func (l *Link) ResponseCancel() error {
	return l.send(map[string]interface{}{"type": "response.cancel"})
}

func (l *Link) send(payload interface{}) error {
	l.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return l.conn.WriteJSON(payload)
}

func (l *Link) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}

// Run reads events until the socket closes or ctx is cancelled,
// dispatching into Handlers. Unknown event kinds are logged and
// ignored per spec §9.
func (l *Link) Run(ctx context.Context, h Handlers) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, raw, err := l.conn.ReadMessage()
		if err != nil {
			return err
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logger.Base().Warn("dropping malformed model event", zap.Error(err))
			continue
		}
		env.Raw = raw

		l.dispatch(env, h)
	}
}

func (l *Link) dispatch(env envelope, h Handlers) {
	if ctrl, ok := extractControl(env.Raw); ok && h.OnControl != nil {
		h.OnControl(ctrl)
	}

	switch env.Type {
	case "session.updated":
		if h.OnSessionUpdated != nil {
			h.OnSessionUpdated(SessionUpdated{})
		}
	case "input_audio_buffer.speech_started":
		var ev SpeechStarted
		_ = json.Unmarshal(env.Raw, &ev)
		if h.OnSpeechStarted != nil {
			h.OnSpeechStarted(ev)
		}
	case "input_audio_buffer.speech_stopped":
		var ev SpeechStopped
		_ = json.Unmarshal(env.Raw, &ev)
		if h.OnSpeechStopped != nil {
			h.OnSpeechStopped(ev)
		}
	case "input_audio_buffer.committed":
		var ev Committed
		_ = json.Unmarshal(env.Raw, &ev)
		if h.OnCommitted != nil {
			h.OnCommitted(ev)
		}
	case "conversation.item.input_audio_transcription.delta":
		var ev TranscriptionDelta
		_ = json.Unmarshal(env.Raw, &ev)
		if h.OnTranscriptDelta != nil {
			h.OnTranscriptDelta(ev)
		}
	case "conversation.item.input_audio_transcription.completed":
		var ev TranscriptionCompleted
		_ = json.Unmarshal(env.Raw, &ev)
		if h.OnTranscriptCompleted != nil {
			h.OnTranscriptCompleted(ev)
		}
	case "conversation.item.input_audio_transcription.failed":
		var ev TranscriptionFailed
		_ = json.Unmarshal(env.Raw, &ev)
		if h.OnTranscriptFailed != nil {
			h.OnTranscriptFailed(ev)
		}
	case "response.audio.delta":
		var ev AudioDelta
		_ = json.Unmarshal(env.Raw, &ev)
		if h.OnAudioDelta != nil {
			h.OnAudioDelta(ev)
		}
	case "response.audio.done":
		var ev AudioDone
		_ = json.Unmarshal(env.Raw, &ev)
		if h.OnAudioDone != nil {
			h.OnAudioDone(ev)
		}
	case "response.cancelled":
		var ev Cancelled
		_ = json.Unmarshal(env.Raw, &ev)
		if h.OnCancelled != nil {
			h.OnCancelled(ev)
		}
	case "response.interrupted":
		var ev Interrupted
		_ = json.Unmarshal(env.Raw, &ev)
		if h.OnInterrupted != nil {
			h.OnInterrupted(ev)
		}
	case "error":
		var ev ErrorEvent
		_ = json.Unmarshal(env.Raw, &ev)
		if h.OnError != nil {
			h.OnError(ev)
		}
	default:
		logger.Base().Debug("ignoring unknown model event", zap.String("type", env.Type))
	}
}

// extractControl looks for a control block under control,
// metadata.control, or item.metadata.control, in that order, per
// spec §4.2.
func extractControl(raw json.RawMessage) (Control, bool) {
	var probe struct {
		Control  json.RawMessage `json:"control"`
		Metadata struct {
			Control json.RawMessage `json:"control"`
		} `json:"metadata"`
		Item struct {
			Metadata struct {
				Control json.RawMessage `json:"control"`
			} `json:"metadata"`
		} `json:"item"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Control{}, false
	}

	for _, block := range [][]byte{probe.Control, probe.Metadata.Control, probe.Item.Metadata.Control} {
		if len(block) == 0 {
			continue
		}
		var ctrl Control
		if err := json.Unmarshal(block, &ctrl); err == nil && ctrl.Kind != "" {
			return ctrl, true
		}
	}
	return Control{}, false
}
