// Package domain holds the core data model shared by every bridge
// component: the live Call, its immutable Context snapshot, the script
// Steps a call can speak, and the small scratch structures the
// audio/turn-gate/stepper packages mutate as a call progresses.
package domain

import "time"

// Phase is the call-level state machine position.
type Phase string

const (
	PhaseInit                  Phase = "init"
	PhaseAwaitingGreetingReply Phase = "awaiting_greeting_reply"
	PhaseInCall                Phase = "in_call"
	PhaseEnded                 Phase = "ended"
)

// ScriptKey enumerates the canonical scripts a Context can select.
type ScriptKey string

const (
	ScriptMortgageProtection ScriptKey = "mortgage_protection"
	ScriptFinalExpense       ScriptKey = "final_expense"
	ScriptIULCashValue       ScriptKey = "iul_cash_value"
	ScriptVeteranLeads       ScriptKey = "veteran_leads"
	ScriptTruckerLeads       ScriptKey = "trucker_leads"
	ScriptGenericLife        ScriptKey = "generic_life"
)

// FinalOutcome enumerates the terminal dispositions ControlDispatcher
// can report to the outcome endpoint.
type FinalOutcome string

const (
	OutcomeBooked        FinalOutcome = "booked"
	OutcomeNotInterested FinalOutcome = "not_interested"
	OutcomeNoAnswer      FinalOutcome = "no_answer"
	OutcomeCallback      FinalOutcome = "callback"
	OutcomeDoNotCall     FinalOutcome = "do_not_call"
	OutcomeDisconnected  FinalOutcome = "disconnected"
	OutcomeUnknown       FinalOutcome = "unknown"
)

// Flags are the booleans that gate the rest of the call. AISpeaking,
// WaitingForResponse and ResponseInFlight change through
// bridge.PhaseController's setters, which log each flip; the greeting
// and voicemail flags are set by PhaseController without a log line,
// and FinalOutcomeSent and VoicemailSkipArmed are also written directly
// by the Call actor and the server's call admission.
type Flags struct {
	OpenAIReady         bool
	OpenAIConfigured    bool
	WaitingForResponse  bool
	AISpeaking          bool
	ResponseInFlight    bool
	OutboundOpenAIDone  bool
	VoicemailSkipArmed  bool
	GreetingAdvPending  bool
	GreetingAdvStepIdx  int
	FinalOutcomeSent    bool
}

// Timing holds the monotonic anchors TurnGate, BargeInController and
// OutboundPacer reason about. All values are Unix millis, zero meaning
// "not yet set".
type Timing struct {
	CallStartedAt      int64
	AIAudioStartedAt   int64
	LastAIDoneAt       int64
	LastCancelAt       int64
	LastPromptSentAt   int64
	LastResponseCreate int64
	LastSpeechStartAt  int64
	LastSpeechStopAt   int64
	LastListenEnabled  int64
}

// PendingCommittedTurn is the at-most-one deferred user turn described
// in spec §3: created when a commit cannot be processed immediately.
type PendingCommittedTurn struct {
	BestTranscript string
	AudioMs        int64
	AtMs           int64
}

// OutboundBuffer is the μ-law byte queue the pacer drains into the
// carrier, plus the model's end-of-stream signal for the current
// response.
type OutboundBuffer struct {
	Bytes      []byte
	OpenAIDone bool
}

func (b *OutboundBuffer) Append(p []byte) {
	b.Bytes = append(b.Bytes, p...)
}

// Take removes up to n bytes from the front of the buffer and returns
// them.
func (b *OutboundBuffer) Take(n int) []byte {
	if n > len(b.Bytes) {
		n = len(b.Bytes)
	}
	out := append([]byte(nil), b.Bytes[:n]...)
	b.Bytes = b.Bytes[n:]
	return out
}

func (b *OutboundBuffer) Reset() {
	b.Bytes = b.Bytes[:0]
	b.OpenAIDone = false
}

// Call is the single object a live telephony stream owns end to end.
// Every mutation happens on the call's own actor goroutine (see
// internal/bridge), so no field here needs its own lock.
type Call struct {
	StreamID string
	CallID   string
	SessionID string
	LeadID    string

	Context *Context

	Phase Phase
	Flags Flags
	Timing Timing

	ScriptSteps     []Step
	ScriptStepIndex int

	Inbound  InboundStats
	Outbound OutboundBuffer

	Pending *PendingCommittedTurn

	Transcripts Transcripts

	// TurnGate scratch.
	LowSignalCount   int
	DiscoveryCount   int
	LastAskedStepIdx int
	LastSpokenLine   string
	LastSpokenAt     int64
	AwaitingUserAnswer bool
	LastAcceptedText   string
	LastExactTimeAcceptedAt int64
	LastOfferedPair    TimeOfferPair

	// BargeIn scratch.
	BargeInAudioMs int64
	RingBuffer     [][]byte

	CreatedAt time.Time
}

// InboundStats accumulates non-silence audio duration for the
// in-progress utterance; the Call actor resets VoiceMs on each commit.
type InboundStats struct {
	VoiceMs          int64
	LastVoiceFrameAt int64
}

// NewCall constructs a Call in its initial phase. Call.Context is nil until
// the context fetch completes; callers must not route audio before it
// is set.
func NewCall(streamID, callID string) *Call {
	return &Call{
		StreamID:  streamID,
		CallID:    callID,
		Phase:     PhaseInit,
		CreatedAt: time.Now(),
	}
}

// TimeOfferPair is the pair of adjacent clock times Stepper most
// recently offered. While it is valid, a reply naming "first",
// "second" or "either", or a bare affirmative, counts as choosing an
// offered time; the chosen clock time itself is not derived from it.
type TimeOfferPair struct {
	First  time.Time
	Second time.Time
	Valid  bool
}
