package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/covecrm/dialer-bridge/internal/bookinggate"
	"github.com/covecrm/dialer-bridge/internal/domain"
	"github.com/covecrm/dialer-bridge/internal/model"
	"github.com/covecrm/dialer-bridge/internal/turngate"
	"github.com/stretchr/testify/require"
)

// fakeTelephony and fakeModel are bare-bones doubles for telephonyWriter
// and modelTransport so the Call actor can be driven end to end without
// a real websocket, in the teacher's testify-driven style.
type fakeTelephony struct {
	frames [][]byte
	closed bool
}

func (f *fakeTelephony) WriteFrame(b []byte) error {
	f.frames = append(f.frames, append([]byte(nil), b...))
	return nil
}

func (f *fakeTelephony) Close() error {
	f.closed = true
	return nil
}

type fakeModel struct {
	appended  []string
	created   []string
	cancelled int
	cleared   int
	closed    bool
}

func (f *fakeModel) AppendAudio(payloadB64 string) error {
	f.appended = append(f.appended, payloadB64)
	return nil
}

func (f *fakeModel) ResponseCreate(instructions string, temperature float64) error {
	f.created = append(f.created, instructions)
	return nil
}

func (f *fakeModel) ResponseCancel() error {
	f.cancelled++
	return nil
}

func (f *fakeModel) ClearAudioBuffer() error {
	f.cleared++
	return nil
}

func (f *fakeModel) Close() error {
	f.closed = true
	return nil
}

func threeStepScript() []domain.Step {
	return []domain.Step{
		{Text: "Hi, is now a good time?", Type: domain.StepStatement},
		{Text: "Would today or tomorrow work better for a quick call?", Type: domain.StepTimeQuestion, IsDayChoiceQuestion: true},
		{Text: "Great, you're on the calendar.", Type: domain.StepStatement},
	}
}

// newTestCall wires a Call actor around fake transports with afterFunc
// running synchronously, so scenario assertions never wait on real
// timers.
func newTestCall(t *testing.T) (*Call, *fakeTelephony, *fakeModel) {
	t.Helper()
	call := domain.NewCall("stream-1", "call-1")
	call.Phase = domain.PhaseInCall
	call.ScriptSteps = threeStepScript()

	tel := &fakeTelephony{}
	mdl := &fakeModel{}
	c := New(call, tel, mdl, nil, nil, nil)
	// Run the human-pause response delay synchronously so assertions
	// don't need real time to elapse. Leave the filler-grace and
	// pending-transcript timers un-fired: those scenarios drive
	// onFillerGraceFire/onPendingTimeout explicitly so the test
	// controls exactly when each one lands.
	c.afterFunc = func(d time.Duration, fn func()) {
		if d == humanPause {
			fn()
		}
	}
	return c, tel, mdl
}

// TestCallQueuesPendingTurnAndReplaysOnPacerDrain exercises spec §3's
// pendingCommittedTurn contract (property 5, "no-drop of user turns"):
// a commit that arrives while the AI is busy must be queued, not
// dropped, and replayed once the pacer signals the response drained.
func TestCallQueuesPendingTurnAndReplaysOnPacerDrain(t *testing.T) {
	c, _, mdl := newTestCall(t)

	c.call.Flags.AISpeaking = true
	c.call.Flags.ResponseInFlight = true
	c.call.Transcripts.ApplyCompleted("item-1", "yes that works")

	c.onCommit(context.Background(), "item-1")

	require.NotNil(t, c.call.Pending, "busy commit must be queued, not dropped")
	require.Equal(t, "yes that works", c.call.Pending.BestTranscript)
	require.Empty(t, mdl.created, "no response.create while still busy")

	// Response finishes: audio_done clears the busy flags, then the
	// pacer's final drain tick (branch 2, empty+done) fires the replay.
	c.onModelEvent(context.Background(), modelEvent{kind: "audio_done", data: model.AudioDone{}})
	c.call.Outbound.OpenAIDone = true
	c.onPacerTick()

	require.Nil(t, c.call.Pending, "pending turn must be cleared once replayed")
	require.Len(t, mdl.created, 1, "queued turn must produce exactly one response.create on replay")
}

// TestCallAwaitTranscriptReplaysWhenTranscriptArrives covers TurnGate
// step 3's await-transcript branch: low audio with no transcript yet,
// but the user was heard speaking recently, must wait rather than drop.
func TestCallAwaitTranscriptReplaysWhenTranscriptArrives(t *testing.T) {
	c, _, mdl := newTestCall(t)

	now := c.nowMs()
	c.call.Timing.LastSpeechStartAt = now - 500
	c.call.Timing.LastSpeechStopAt = now - 100
	c.call.Inbound.VoiceMs = 100 // below the 280ms low-signal floor

	c.onCommit(context.Background(), "item-2")

	require.NotNil(t, c.call.Pending, "recent speech with no transcript yet must await, not drop")
	require.Equal(t, 0, c.call.LowSignalCount)

	c.call.Transcripts.ApplyCompleted("item-2", "tomorrow afternoon")
	c.onModelEvent(context.Background(), modelEvent{kind: "transcript_completed", data: model.TranscriptionCompleted{ItemID: "item-2", Transcript: "tomorrow afternoon"}})

	require.Nil(t, c.call.Pending, "arriving transcript must replay the pending turn")
	require.Len(t, mdl.created, 1)
}

// TestCallFillerGraceDropsStillFillerPromotesOtherwise is scenario S4:
// a filler commit gets a 750ms grace window before being dropped or
// promoted to normal processing.
func TestCallFillerGraceDropsStillFillerPromotesOtherwise(t *testing.T) {
	c, _, mdl := newTestCall(t)

	// item-3 stays filler-only through the whole grace window: dropped.
	c.call.Transcripts.ApplyCompleted("item-3", "um")
	c.onCommit(context.Background(), "item-3")
	require.Empty(t, mdl.created, "filler must not speak immediately")

	c.onFillerGraceFire("item-3", 400)
	require.Empty(t, mdl.created, "still filler at grace timeout must be dropped, not spoken")

	// item-4 starts as filler but the ASR catches up with the rest of
	// the utterance before the grace window fires.
	c.call.Transcripts.ApplyCompleted("item-4", "um")
	c.onCommit(context.Background(), "item-4")
	require.Empty(t, mdl.created)

	c.call.Transcripts.ApplyCompleted("item-4", "sounds good, tomorrow afternoon works")
	c.onFillerGraceFire("item-4", 900)

	require.Len(t, mdl.created, 1, "promoted filler turn must produce a response")
}

// TestCallResetsOutboundBufferBetweenResponses covers spec §3's
// "a new response resets outboundOpenAiDone" invariant: without it the
// pacer stops emitting frames for good after the first AI turn.
func TestCallResetsOutboundBufferBetweenResponses(t *testing.T) {
	c, _, _ := newTestCall(t)

	c.call.Outbound.Append([]byte{1, 2, 3})
	c.call.Outbound.OpenAIDone = true

	c.startResponse("second turn line")

	require.False(t, c.call.Outbound.OpenAIDone, "OpenAIDone must reset for the new response")
	require.Empty(t, c.call.Outbound.Bytes)
}

// TestCallClearsBusyFlagsOnNormalCompletion covers the busy-gate
// corruption bug: responseInFlight/waitingForResponse used to only
// clear on cancel, never on a normal audio_done completion.
func TestCallClearsBusyFlagsOnNormalCompletion(t *testing.T) {
	c, _, _ := newTestCall(t)

	c.applyDecision(turngate.Decision{Line: "line one", AdvanceStepIndex: 1})
	require.True(t, c.call.Flags.ResponseInFlight)
	require.True(t, c.call.Flags.WaitingForResponse)
	require.True(t, c.call.Flags.AISpeaking)

	c.onModelEvent(context.Background(), modelEvent{kind: "audio_done", data: model.AudioDone{}})

	require.False(t, c.call.Flags.ResponseInFlight)
	require.False(t, c.call.Flags.WaitingForResponse)
	require.True(t, c.call.Flags.AISpeaking, "aiSpeaking stays true until the pacer drains")
}

// TestCallPacerCadenceFillerDoesNotSetAISpeaking covers the other half
// of the busy-gate bug: idle cadence-filler ticks must never look like
// the AI is speaking.
func TestCallPacerCadenceFillerDoesNotSetAISpeaking(t *testing.T) {
	c, tel, _ := newTestCall(t)

	c.onPacerTick()

	require.Len(t, tel.frames, 1, "cadence filler still writes a silence frame")
	require.False(t, c.call.Flags.AISpeaking, "a cadence-filler tick must not flip aiSpeaking")
}

// TestCallBookingGateAdmitsAfterAcceptedExactTime exercises the data
// flow BookingGate depends on: LastAcceptedText/LastExactTimeAcceptedAt
// must actually get populated by an accepted turn, or book_appointment
// can never be admitted.
func TestCallBookingGateAdmitsAfterAcceptedExactTime(t *testing.T) {
	c, _, _ := newTestCall(t)
	c.call.ScriptStepIndex = 1 // the time-question step

	c.call.Transcripts.ApplyCompleted("item-5", "2pm works")
	c.onCommit(context.Background(), "item-5")

	require.Equal(t, "2pm works", c.call.LastAcceptedText)
	require.NotZero(t, c.call.LastExactTimeAcceptedAt)
	require.True(t, bookinggate.Admit(c.call.LastAcceptedText, time.UnixMilli(c.call.LastExactTimeAcceptedAt), time.Now()))
}
