package bridge

import "github.com/covecrm/dialer-bridge/internal/model"

// Handlers builds the model.Handlers set that feeds every inbound
// model event into this Call's actor loop via PushModelEvent, keeping
// the websocket read goroutine itself free of any Call state access.
func (c *Call) Handlers() model.Handlers {
	return model.Handlers{
		OnSessionUpdated: func(model.SessionUpdated) { c.PushModelEvent("session.updated", nil) },
		OnSpeechStarted:  func(e model.SpeechStarted) { c.PushModelEvent("speech_started", e) },
		OnSpeechStopped:  func(e model.SpeechStopped) { c.PushModelEvent("speech_stopped", e) },
		OnCommitted:      func(e model.Committed) { c.PushModelEvent("committed", e) },
		OnTranscriptDelta: func(e model.TranscriptionDelta) {
			c.PushModelEvent("transcript_delta", e)
		},
		OnTranscriptCompleted: func(e model.TranscriptionCompleted) {
			c.PushModelEvent("transcript_completed", e)
		},
		OnTranscriptFailed: func(e model.TranscriptionFailed) {
			c.PushModelEvent("transcript_failed", e)
		},
		OnAudioDelta:   func(e model.AudioDelta) { c.PushModelEvent("audio_delta", e) },
		OnAudioDone:    func(e model.AudioDone) { c.PushModelEvent("audio_done", e) },
		OnCancelled:    func(e model.Cancelled) { c.PushModelEvent("cancelled", e) },
		OnInterrupted:  func(e model.Interrupted) { c.PushModelEvent("interrupted", e) },
		OnError:        func(e model.ErrorEvent) { c.PushModelEvent("error", e) },
		OnControl:      func(e model.Control) { c.PushModelEvent("control", e) },
	}
}
