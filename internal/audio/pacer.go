package audio

import "github.com/covecrm/dialer-bridge/internal/domain"

// TickResult is what one 20ms pacer tick produced, per spec §4.4's
// five-branch decision. The caller (internal/bridge's Call actor)
// owns the ticker goroutine and the side effects (emitting Frame to
// TelephonyLink, clearing AISpeaking, attempting a pending-turn
// replay); Tick itself only touches the buffer it's given, so it can
// be driven directly in tests without a real ticker or websocket.
type TickResult struct {
	Frame         []byte
	StopPacer     bool
	AttemptReplay bool

	// CadenceFiller marks branch 5: a silence frame emitted purely to
	// hold cadence while nothing is actually playing. Callers must not
	// treat it as evidence the AI is speaking.
	CadenceFiller bool
}

// Tick implements the OutboundPacer's per-tick branches verbatim:
//  1. >=160 buffered bytes -> emit a full frame.
//  2. done && empty -> stop, no frame, offer a replay attempt.
//  3. done && 1..159 bytes -> pad to 160, emit, stop.
//  4. !done && 1..159 bytes -> pad to 160, emit, keep running (avoids
//     underrun clicks on a slow-arriving delta).
//  5. otherwise -> emit a full silence frame to hold cadence
//     (CadenceFiller=true; this is not evidence of AI speech).
func Tick(buf *domain.OutboundBuffer) TickResult {
	n := len(buf.Bytes)

	if n >= FrameBytes {
		return TickResult{Frame: buf.Take(FrameBytes)}
	}

	if buf.OpenAIDone && n == 0 {
		return TickResult{StopPacer: true, AttemptReplay: true}
	}

	if n > 0 {
		frame := pad(buf.Take(n))
		return TickResult{Frame: frame, StopPacer: buf.OpenAIDone}
	}

	return TickResult{Frame: silenceFrame(), CadenceFiller: true}
}

func pad(partial []byte) []byte {
	frame := make([]byte, FrameBytes)
	copy(frame, partial)
	for i := len(partial); i < FrameBytes; i++ {
		frame[i] = SilenceByte
	}
	return frame
}

func silenceFrame() []byte {
	frame := make([]byte, FrameBytes)
	for i := range frame {
		frame[i] = SilenceByte
	}
	return frame
}
