package bridge

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/covecrm/dialer-bridge/internal/audio"
	"github.com/covecrm/dialer-bridge/internal/bookinggate"
	"github.com/covecrm/dialer-bridge/internal/control"
	"github.com/covecrm/dialer-bridge/internal/domain"
	"github.com/covecrm/dialer-bridge/internal/model"
	"github.com/covecrm/dialer-bridge/internal/repository"
	"github.com/covecrm/dialer-bridge/internal/stepper"
	"github.com/covecrm/dialer-bridge/internal/turngate"
	"github.com/covecrm/dialer-bridge/internal/usage"
	"github.com/covecrm/dialer-bridge/pkg/logger"
	"go.uber.org/zap"
)

const pacerTick = 20 * time.Millisecond

// humanPause is the small delay spec §5 asks for before creating a
// response, so the model doesn't talk over the tail of what it just heard.
var humanPause = 150 * time.Millisecond

// fillerGraceWindow is how long TurnGate waits after a filler-only
// commit (spec §4.7 step 4) before re-deciding on whatever transcript
// has arrived by then.
const fillerGraceWindow = 750 * time.Millisecond

// pendingTranscriptTimeout clears an await-transcript pending turn if
// no transcript ever arrives (spec §3's "~2 s with no transcript").
const pendingTranscriptTimeout = 2 * time.Second

// telephonyWriter is the subset of telephony.Link the Call actor
// drives; an interface so tests can swap in a fake without a real
// websocket.
type telephonyWriter interface {
	WriteFrame(frame []byte) error
	Close() error
}

// modelTransport is the subset of model.Link the Call actor and
// BargeInController drive.
type modelTransport interface {
	AppendAudio(payloadB64 string) error
	ResponseCreate(instructions string, temperature float64) error
	ResponseCancel() error
	ClearAudioBuffer() error
	Close() error
}

// Call is the single-goroutine actor that owns one phone call end to
// end (spec §5): it serializes telephony-inbound frames, model events,
// and the 20ms pacer tick over one Call's state so nothing needs its
// own lock.
type Call struct {
	call       *domain.Call
	telephony  telephonyWriter
	model      modelTransport
	phase      *PhaseController
	bargeIn    *BargeInController
	dispatcher *control.Dispatcher
	reporter   *usage.Reporter
	ledger     *repository.Ledger

	classify audio.Classifier

	telephonyIn chan []byte
	modelIn     chan modelEvent
	timerIn     chan func()
	stop        chan struct{}

	// pendingItemID is the model item id behind c.call.Pending, kept
	// here rather than on domain.PendingCommittedTurn so that struct
	// stays exactly the {bestTranscript, audioMs, atMs} spec §3 names.
	pendingItemID string

	// lastCommitItemID guards a filler-grace timer that fires after a
	// newer commit has already been decided, so it never re-decides
	// against stale state.
	lastCommitItemID string

	// afterFunc schedules fn to run on this actor's goroutine after d.
	// Defaults to a real timer wired through timerIn; tests override it
	// to run fn synchronously so scenario assertions don't need to wait
	// on real time.
	afterFunc func(d time.Duration, fn func())
}

type modelEvent struct {
	kind string
	data interface{}
}

// New wires a fresh Call actor around an already-admitted telephony
// stream and a dialed model connection.
func New(call *domain.Call, tlink telephonyWriter, mlink modelTransport, dispatcher *control.Dispatcher, reporter *usage.Reporter, ledger *repository.Ledger) *Call {
	phase := NewPhaseController(call)
	c := &Call{
		call:        call,
		telephony:   tlink,
		model:       mlink,
		phase:       phase,
		dispatcher:  dispatcher,
		reporter:    reporter,
		ledger:      ledger,
		telephonyIn: make(chan []byte, 32),
		modelIn:     make(chan modelEvent, 32),
		timerIn:     make(chan func(), 8),
		stop:        make(chan struct{}),
	}
	c.bargeIn = NewBargeInController(call, phase, mlink)
	c.afterFunc = c.scheduleOnActor
	return c
}

// Spawn starts the actor loop on a pooled goroutine (bounded
// concurrency across all active calls, per the DOMAIN STACK's gopool wiring).
func (c *Call) Spawn(ctx context.Context) {
	gopool.CtxGo(ctx, func() {
		c.run(ctx)
	})
}

// PushTelephonyFrame is called from TelephonyLink's read loop.
func (c *Call) PushTelephonyFrame(frame []byte) {
	select {
	case c.telephonyIn <- frame:
	default:
		logger.Base().Warn("telephony inbound queue full, dropping frame", zap.String("callId", c.call.CallID))
	}
}

// PushModelEvent is called from ModelLink's Handlers callbacks.
func (c *Call) PushModelEvent(kind string, data interface{}) {
	select {
	case c.modelIn <- modelEvent{kind: kind, data: data}:
	default:
		logger.Base().Warn("model inbound queue full, dropping event", zap.String("callId", c.call.CallID), zap.String("kind", kind))
	}
}

// Stop requests the actor loop to exit and tears the call down.
func (c *Call) Stop() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
}

func (c *Call) run(ctx context.Context) {
	ticker := time.NewTicker(pacerTick)
	defer ticker.Stop()
	startedAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			c.teardown(startedAt)
			return
		case <-c.stop:
			c.teardown(startedAt)
			return
		case frame := <-c.telephonyIn:
			c.onTelephonyFrame(ctx, frame)
		case evt := <-c.modelIn:
			c.onModelEvent(ctx, evt)
		case fn := <-c.timerIn:
			fn()
		case <-ticker.C:
			c.onPacerTick()
		}
	}
}

func (c *Call) nowMs() int64 { return time.Now().UnixMilli() }

// scheduleOnActor is the production afterFunc: it posts fn back onto
// this actor's own goroutine via timerIn once d elapses, so human-pause
// delays and grace timers (spec §5 suspension points 5/6) never block
// the serialized select loop the way a direct time.Sleep would.
func (c *Call) scheduleOnActor(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		select {
		case c.timerIn <- fn:
		case <-c.stop:
		}
	})
}

func (c *Call) onTelephonyFrame(ctx context.Context, frame []byte) {
	if c.call.Flags.VoicemailSkipArmed {
		return // all inbound dropped once voicemail is confirmed
	}

	if c.bargeIn.OnInboundFrame(ctx, frame, c.nowMs()) {
		return
	}
	if len(c.call.RingBuffer) > 0 && !c.call.Flags.AISpeaking {
		if c.call.Timing.LastCancelAt > 0 && c.call.Timing.LastCancelAt >= c.call.Timing.LastResponseCreate {
			c.bargeIn.FlushRing()
		} else {
			// No cancel for this response: the ringed frames were already
			// forwarded live, so they are dropped rather than re-sent.
			c.call.RingBuffer = nil
		}
	}

	if !c.classify.IsSilence(frame) {
		c.call.Inbound.VoiceMs += 20
		c.call.Inbound.LastVoiceFrameAt = c.nowMs()
	}

	if err := c.model.AppendAudio(base64.StdEncoding.EncodeToString(frame)); err != nil {
		logger.Base().Warn("append audio to model failed", zap.Error(err), zap.String("callId", c.call.CallID))
	}
}

func (c *Call) onPacerTick() {
	result := audio.Tick(&c.call.Outbound)
	if result.Frame != nil {
		if err := c.telephony.WriteFrame(result.Frame); err != nil {
			logger.Base().Warn("write outbound frame failed", zap.Error(err), zap.String("callId", c.call.CallID))
		}
		if !result.CadenceFiller {
			if c.call.Timing.AIAudioStartedAt == 0 {
				c.call.Timing.AIAudioStartedAt = c.nowMs()
			}
			c.phase.SetAISpeaking(true)
			c.phase.OnFirstOutboundDelta()
		}
	}
	if result.StopPacer {
		c.phase.SetAISpeaking(false)
		c.call.Timing.LastAIDoneAt = c.nowMs()
	}
	if result.AttemptReplay {
		c.tryReplayPending()
	}
}

func (c *Call) onModelEvent(ctx context.Context, evt modelEvent) {
	switch evt.kind {
	case "session.updated":
		c.phase.OnSessionUpdated()
		c.createGreeting()

	case "speech_started":
		c.call.Timing.LastSpeechStartAt = c.nowMs()

	case "speech_stopped":
		c.call.Timing.LastSpeechStopAt = c.nowMs()

	case "committed":
		d := evt.data.(model.Committed)
		c.onCommit(ctx, d.ItemID)

	case "transcript_delta":
		d := evt.data.(model.TranscriptionDelta)
		c.call.Transcripts.ApplyDelta(d.ItemID, d.Delta)
		if c.call.Pending != nil && d.ItemID == c.pendingItemID {
			c.tryReplayPending()
		}

	case "transcript_completed":
		d := evt.data.(model.TranscriptionCompleted)
		c.call.Transcripts.ApplyCompleted(d.ItemID, d.Transcript)
		if c.call.Pending != nil && d.ItemID == c.pendingItemID {
			c.tryReplayPending()
		}

	case "audio_delta":
		d := evt.data.(model.AudioDelta)
		raw, err := base64.StdEncoding.DecodeString(d.Delta)
		if err != nil {
			logger.Base().Warn("decode audio delta failed", zap.Error(err), zap.String("callId", c.call.CallID))
			return
		}
		c.call.Outbound.Append(raw)

	case "audio_done":
		// Authoritative end-of-response signal: no new response.create
		// can race in, but aiSpeaking stays true until the pacer
		// actually drains the buffered audio to the carrier.
		c.call.Outbound.OpenAIDone = true
		c.phase.SetResponseInFlight(false)
		c.phase.SetWaitingForResponse(false)

	case "cancelled", "interrupted":
		c.call.Outbound.Reset()
		c.call.Outbound.OpenAIDone = true
		c.phase.SetAISpeaking(false)
		c.phase.SetResponseInFlight(false)
		c.phase.SetWaitingForResponse(false)

	case "error":
		e := evt.data.(model.ErrorEvent)
		logger.Base().Error("model error event", zap.String("callId", c.call.CallID), zap.String("code", e.Code), zap.String("message", e.Message))

	case "control":
		ctrl := evt.data.(model.Control)
		c.dispatcher.Handle(ctx, c.call.CallID, ctrl, func() (bookinggate.Request, bool) {
			return c.admitBooking(ctrl)
		})
		if ctrl.Kind == "final_outcome" {
			c.call.Flags.FinalOutcomeSent = true
		}
	}

	c.recordEvent(ctx, evt.kind)
}

func (c *Call) createGreeting() {
	c.phase.ArmGreetingAdvance(1)
	c.armResponseBusy()
	c.afterFunc(humanPause, func() {
		c.startResponse("Greet the lead by first name and confirm this is a good time to talk.")
	})
}

// onCommit runs the TurnGate decision tree (spec §4.7) for one
// input_audio_buffer.committed event and dispatches its Action.
func (c *Call) onCommit(ctx context.Context, itemID string) {
	c.lastCommitItemID = itemID
	text := c.call.Transcripts.BestTranscript(itemID)
	audioMs := c.call.Inbound.VoiceMs
	c.call.Inbound.VoiceMs = 0

	decision := turngate.Decide(c.turnGateInput(text, audioMs))
	c.dispatchDecision(decision, itemID, text, audioMs)
}

// turnGateInput snapshots the Call state TurnGate.Decide needs; shared
// by the original commit, pending-turn replay, and filler-grace fire so
// all three run the exact same decision tree.
func (c *Call) turnGateInput(text string, audioMs int64) turngate.Input {
	spokeDurationMs := c.call.Timing.LastSpeechStopAt - c.call.Timing.LastSpeechStartAt
	if spokeDurationMs < 0 {
		spokeDurationMs = 0
	}

	in := turngate.Input{
		Phase:               c.call.Phase,
		Flags:               c.call.Flags,
		ScriptSteps:         c.call.ScriptSteps,
		ScriptStepIndex:     c.call.ScriptStepIndex,
		Transcript:          text,
		AudioMs:             audioMs,
		SpokeDurationMs:     spokeDurationMs,
		SpeechSeenRecently:  c.nowMs()-c.call.Timing.LastSpeechStopAt < 1500,
		LowSignalCount:      c.call.LowSignalCount,
		DiscoveryCount:      c.call.DiscoveryCount,
		LastSpokenLine:      c.call.LastSpokenLine,
		LastSpokenAtMs:      c.call.LastSpokenAt,
		NowMs:               c.nowMs(),
		PreviousOfferedPair: c.call.LastOfferedPair,
	}
	if c.call.Context != nil {
		in.LeadTZ = c.call.Context.LeadTimeZone
		in.AgentTZ = c.call.Context.AgentTimeZone
		in.Identity = stepper.OfferIdentity{
			LeadID:    c.call.LeadID,
			SessionID: c.call.SessionID,
			CallID:    c.call.CallID,
			FirstName: c.call.Context.LeadFirstName,
			AgentName: c.call.Context.AgentFirstName,
		}
	}
	return in
}

// dispatchDecision carries out whatever TurnGate.Decide returned,
// whether it came from a fresh commit, a pending-turn replay, or a
// filler-grace timer fire.
func (c *Call) dispatchDecision(decision turngate.Decision, itemID, text string, audioMs int64) {
	switch decision.Action {
	case turngate.ActionSpeak, turngate.ActionHearingRetry:
		c.applyDecision(decision)
	case turngate.ActionDropLowSignal:
		c.call.LowSignalCount++
	case turngate.ActionQueuePending, turngate.ActionAwaitTranscript:
		c.queuePending(itemID, text, audioMs, decision.Action == turngate.ActionAwaitTranscript)
	case turngate.ActionArmFillerGrace:
		c.armFillerGrace(itemID, text, audioMs)
	}
}

// queuePending stores the at-most-one deferred user turn (spec §3's
// pendingCommittedTurn). awaitTranscript turns additionally arm a ~2s
// clear so a turn that never gets a transcript doesn't wait forever.
func (c *Call) queuePending(itemID, text string, audioMs int64, awaitTranscript bool) {
	c.call.Pending = &domain.PendingCommittedTurn{
		BestTranscript: text,
		AudioMs:        audioMs,
		AtMs:           c.nowMs(),
	}
	c.pendingItemID = itemID
	if awaitTranscript {
		c.afterFunc(pendingTranscriptTimeout, func() { c.onPendingTimeout(itemID) })
	}
}

// onPendingTimeout clears an await-transcript pending turn if it is
// still the one outstanding when the timer fires.
func (c *Call) onPendingTimeout(itemID string) {
	if c.call.Pending != nil && c.pendingItemID == itemID {
		c.call.Pending = nil
		c.pendingItemID = ""
	}
}

// tryReplayPending re-decides the stored pending turn, refreshed with
// whatever transcript has arrived since it was queued. Called on pacer
// drain (branch 2's AttemptReplay) and on transcript arrival for the
// pending item, per spec §4.7 step 2 / §3.
func (c *Call) tryReplayPending() {
	pending := c.call.Pending
	if pending == nil {
		return
	}

	text := pending.BestTranscript
	if c.pendingItemID != "" {
		if fresh := c.call.Transcripts.BestTranscript(c.pendingItemID); fresh != "" {
			text = fresh
		}
	}

	decision := turngate.Decide(c.turnGateInput(text, pending.AudioMs))
	if decision.Action == turngate.ActionQueuePending || decision.Action == turngate.ActionAwaitTranscript {
		pending.BestTranscript = text
		return
	}

	c.call.Pending = nil
	itemID := c.pendingItemID
	c.pendingItemID = ""
	c.dispatchDecision(decision, itemID, text, pending.AudioMs)
}

// armFillerGrace schedules the 750ms re-decide spec §4.7 step 4 asks
// for: a filler-only commit isn't dropped outright, it gets one more
// look once more transcript has had time to arrive.
func (c *Call) armFillerGrace(itemID, text string, audioMs int64) {
	c.afterFunc(fillerGraceWindow, func() { c.onFillerGraceFire(itemID, audioMs) })
}

func (c *Call) onFillerGraceFire(itemID string, audioMs int64) {
	if itemID != c.lastCommitItemID {
		return // a newer commit has already been decided
	}
	text := c.call.Transcripts.BestTranscript(itemID)
	decision := turngate.Decide(c.turnGateInput(text, audioMs))
	if decision.Action == turngate.ActionArmFillerGrace {
		return // still filler at grace timeout: drop
	}
	c.dispatchDecision(decision, itemID, text, audioMs)
}

// applyDecision carries out an ActionSpeak/ActionHearingRetry decision:
// persists its stepper/booking side effects, arms the busy flags, and
// schedules the actual response.create after the human-pause delay.
func (c *Call) applyDecision(decision turngate.Decision) {
	if decision.AdvanceStepIndex >= 0 && !decision.DeferAdvance {
		c.call.ScriptStepIndex = decision.AdvanceStepIndex
	} else if decision.DeferAdvance {
		c.phase.ArmGreetingAdvance(decision.AdvanceStepIndex)
	}
	if !decision.SubstitutedFallback && stepper.IsDiscoveryLine(decision.Line) {
		c.call.DiscoveryCount++
	}
	if decision.OfferedPair.Valid {
		c.call.LastOfferedPair = decision.OfferedPair
	}
	if decision.AcceptedText != "" {
		c.call.LastAcceptedText = decision.AcceptedText
		if bookinggate.ContainsExactClockTime(decision.AcceptedText) {
			c.call.LastExactTimeAcceptedAt = c.nowMs()
		}
	}

	c.call.LastSpokenLine = decision.Line
	c.call.LastSpokenAt = c.nowMs()

	c.armResponseBusy()
	line := decision.Line
	c.afterFunc(humanPause, func() { c.startResponse(line) })
}

// armResponseBusy flips every busy flag at response-queue time, per
// spec §4.7's "every time a response is queued" contract — before the
// human-pause delay, so a commit arriving during the pause is queued
// rather than racing a second response.create.
func (c *Call) armResponseBusy() {
	c.phase.SetWaitingForResponse(true)
	c.phase.SetAISpeaking(true)
	c.phase.SetResponseInFlight(true)
	c.call.Outbound.OpenAIDone = false
}

// startResponse resets the outbound buffer for the new response (spec
// §3's "a new response resets outboundOpenAiDone" invariant) and fires
// response.create. A failure immediately re-opens listening, per §7's
// "silence is never acceptable mid-turn" rule.
func (c *Call) startResponse(line string) {
	c.call.Outbound.Reset()
	c.call.Timing.AIAudioStartedAt = 0 // re-stamped by the first audio frame of this response
	if err := c.model.ResponseCreate(line, 0.8); err != nil {
		logger.Base().Warn("response.create failed", zap.Error(err), zap.String("callId", c.call.CallID))
		c.phase.SetWaitingForResponse(false)
		c.phase.SetAISpeaking(false)
		c.phase.SetResponseInFlight(false)
		return
	}
	c.call.Timing.LastResponseCreate = c.nowMs()
}

func (c *Call) admitBooking(ctrl model.Control) (bookinggate.Request, bool) {
	if !bookinggate.Admit(c.call.LastAcceptedText, time.UnixMilli(c.call.LastExactTimeAcceptedAt), time.Now()) {
		return bookinggate.Request{}, false
	}
	req, err := control.ParseBookAppointment(ctrl.BookAppointment, c.call.SessionID, c.call.LeadID)
	if err != nil {
		logger.Base().Warn("book_appointment payload invalid", zap.Error(err), zap.String("callId", c.call.CallID))
		return bookinggate.Request{}, false
	}
	crmLeadTZ, crmAgentTZ := "", ""
	if c.call.Context != nil {
		crmLeadTZ, crmAgentTZ = c.call.Context.LeadTimeZone, c.call.Context.AgentTimeZone
	}
	req.AgentTimeZone = bookinggate.ResolveAgentTZ(crmAgentTZ, req.AgentTimeZone)
	req.LeadTimeZone = bookinggate.ResolveLeadTZ(crmLeadTZ, req.LeadTimeZone, req.AgentTimeZone)
	return req, true
}

func (c *Call) recordEvent(ctx context.Context, kind string) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.Record(ctx, c.call.CallID, c.call.SessionID, "model_event", kind); err != nil {
		logger.Base().Debug("ledger record failed", zap.Error(err))
	}
}

func (c *Call) teardown(startedAt time.Time) {
	c.phase.End()
	if c.reporter != nil {
		c.reporter.Report(context.Background(), c.call.CallID, c.call.SessionID, c.call.LeadID, startedAt, time.Now(), 0)
	}
	if err := c.model.Close(); err != nil {
		logger.Base().Debug("model link close on teardown", zap.Error(err))
	}
	if err := c.telephony.Close(); err != nil {
		logger.Base().Debug("telephony link close on teardown", zap.Error(err))
	}
}
