// Package model implements ModelLink: the long-lived websocket
// connection to the speech-to-speech realtime model, speaking the
// tagged-union JSON event vocabulary from spec §4.2/§6.
package model

import "encoding/json"

// envelope is the minimal shape every inbound event shares: a type
// discriminator plus whatever fields that type carries.
type envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// SessionUpdated confirms the session.update this bridge sent.
type SessionUpdated struct{}

// SpeechStarted/SpeechStopped mark VAD-detected speech boundaries.
type SpeechStarted struct {
	AudioStartMs int64 `json:"audio_start_ms"`
}

type SpeechStopped struct {
	AudioEndMs int64 `json:"audio_end_ms"`
}

// Committed signals the model finalized the buffered user utterance
// into a conversation item; TurnGate's entry point.
type Committed struct {
	ItemID string `json:"item_id"`
}

// TranscriptionDelta/Completed/Failed report ASR progress for a
// specific conversation item.
type TranscriptionDelta struct {
	ItemID string `json:"item_id"`
	Delta  string `json:"delta"`
}

type TranscriptionCompleted struct {
	ItemID     string `json:"item_id"`
	Transcript string `json:"transcript"`
}

type TranscriptionFailed struct {
	ItemID string `json:"item_id"`
}

// AudioDelta carries one base64 μ-law chunk of the model's speech.
type AudioDelta struct {
	ResponseID string `json:"response_id"`
	Delta      string `json:"delta"`
}

// AudioDone / Cancelled / Interrupted all finalize the in-flight
// response, per spec §4.2's tail-padding rule.
type AudioDone struct {
	ResponseID string `json:"response_id"`
}

type Cancelled struct {
	ResponseID string `json:"response_id"`
}

type Interrupted struct {
	ResponseID string `json:"response_id"`
}

// ErrorEvent is the model's own error envelope.
type ErrorEvent struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Control is the structured side-channel block ControlDispatcher
// interprets (spec §4.2, §4.10). It may arrive nested under
// control / metadata.control / item.metadata.control on any event;
// extractControl in link.go normalizes all three shapes.
type Control struct {
	Kind            string          `json:"kind"`
	BookAppointment json.RawMessage `json:"bookAppointment,omitempty"`
	FinalOutcome    string          `json:"finalOutcome,omitempty"`
}

// Handlers are invoked from Link.readLoop on the connection's read
// goroutine; callers must route them onto the owning Call's actor.
type Handlers struct {
	OnSessionUpdated func(SessionUpdated)
	OnSpeechStarted  func(SpeechStarted)
	OnSpeechStopped  func(SpeechStopped)
	OnCommitted      func(Committed)
	OnTranscriptDelta     func(TranscriptionDelta)
	OnTranscriptCompleted func(TranscriptionCompleted)
	OnTranscriptFailed    func(TranscriptionFailed)
	OnAudioDelta     func(AudioDelta)
	OnAudioDone      func(AudioDone)
	OnCancelled      func(Cancelled)
	OnInterrupted    func(Interrupted)
	OnError          func(ErrorEvent)
	OnControl        func(Control)
}
