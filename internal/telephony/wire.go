// Package telephony implements TelephonyLink: the carrier-facing half
// of the duplex audio plane. It speaks the Twilio Media Streams wire
// shape (line-delimited JSON, `event` discriminator, base64 μ-law
// payloads) over a plain websocket, per spec §4.1/§6.
package telephony

// Message is the tagged union of frames the carrier sends. Only one
// of Media/Start/Stop is populated, selected by Event.
type Message struct {
	Event     string   `json:"event"`
	StreamSid string   `json:"streamSid,omitempty"`
	Media     *Media   `json:"media,omitempty"`
	Start     *Start   `json:"start,omitempty"`
	Stop      *Stop    `json:"stop,omitempty"`
}

// Media carries one base64 μ-law payload. Track "outbound" is the
// carrier echoing back what we sent it and must be ignored.
type Media struct {
	Track     string `json:"track,omitempty"`
	Payload   string `json:"payload"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Start opens a stream. CustomParameters carries sessionId/leadId the
// dialer attaches to the call when it originates it (origination
// itself is out of scope here; we only read what it handed us).
type Start struct {
	StreamSid        string            `json:"streamSid"`
	CallSid          string            `json:"callSid"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// Stop ends a stream.
type Stop struct {
	StreamSid string `json:"streamSid"`
	CallSid   string `json:"callSid"`
}

// outboundMedia is the exact shape spec §6 requires for writes:
// {event:"media", streamSid, media:{payload}}.
type outboundMedia struct {
	Event     string      `json:"event"`
	StreamSid string      `json:"streamSid"`
	Media     mediaPayload `json:"media"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}
