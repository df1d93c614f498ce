package turngate

import (
	"strings"

	"github.com/covecrm/dialer-bridge/internal/bookinggate"
	"github.com/covecrm/dialer-bridge/internal/domain"
	"github.com/covecrm/dialer-bridge/internal/stepper"
)

// Action is what the Call actor should do with the result of Decide.
type Action int

const (
	ActionIgnore Action = iota
	ActionQueuePending
	ActionAwaitTranscript
	ActionDropLowSignal
	ActionArmFillerGrace
	ActionHearingRetry
	ActionSpeak
)

// Input is everything TurnGate needs to run the decision tree for one
// commit; it is a read view over the owning Call, never mutated here.
type Input struct {
	Phase              domain.Phase
	Flags              domain.Flags
	ScriptSteps        []domain.Step
	ScriptStepIndex    int
	Transcript         string
	AudioMs            int64
	SpokeDurationMs    int64
	SpeechSeenRecently bool
	LowSignalCount     int
	DiscoveryCount     int
	LastSpokenLine     string
	LastSpokenAtMs     int64
	NowMs              int64
	Identity           stepper.OfferIdentity
	LeadTZ             string
	AgentTZ            string
	PreviousOfferedPair domain.TimeOfferPair
}

// Decision is what TurnGate decided to do and, for ActionSpeak, the
// composed line and any cursor side effects.
type Decision struct {
	Action Action

	Line string

	// AdvanceStepIndex, when >= 0, is the new ScriptStepIndex this
	// decision moves to (greeting advance is deferred to the first
	// outbound delta by PhaseController; all other advances apply as
	// soon as the Call actor applies the decision).
	AdvanceStepIndex int

	// DeferAdvance marks a greeting-step advance that must wait for
	// the first outbound audio delta (spec §4.6).
	DeferAdvance bool

	IsRebuttal        bool
	SubstitutedFallback bool

	// AcceptedText is the user's transcript for a step-8 qualifying
	// answer, returned so the Call actor can persist it onto
	// Call.LastAcceptedText for BookingGate (spec §4.9 reads "the last
	// accepted user utterance").
	AcceptedText string

	// OfferedPair is set whenever this decision speaks a time-offer
	// ladder line, so the actor can persist it onto Call.LastOfferedPair
	// for the next commit's "previously offered pair" fallback (§4.7
	// step 7).
	OfferedPair domain.TimeOfferPair
}

const (
	lowSignalAudioMsFloor = 280
	fillerAudioMsCeiling  = 1700
	yesNoAudioMsFloor     = 1200
	antiLoopWindowMs      = 10_000
	discoveryCap          = 2
	bookingFallbackLine   = "I can just lock in a quick call with your agent, does that work?"
)

// Decide runs the ten-step tree in spec §4.7, first match wins.
func Decide(in Input) Decision {
	// 1. Pre-greeting guard.
	if in.Phase == domain.PhaseAwaitingGreetingReply && !in.Flags.GreetingAdvPending && in.ScriptStepIndex == 0 && in.Flags.AISpeaking {
		return Decision{Action: ActionIgnore}
	}

	// 2. Busy/in-flight queue.
	if in.Flags.ResponseInFlight || in.Flags.WaitingForResponse || in.Flags.AISpeaking {
		return Decision{Action: ActionQueuePending}
	}

	// 3. Signal gate.
	if in.AudioMs < lowSignalAudioMsFloor && in.Transcript == "" {
		if in.SpeechSeenRecently && in.SpokeDurationMs >= 250 {
			return Decision{Action: ActionAwaitTranscript}
		}
		return Decision{Action: ActionDropLowSignal}
	}

	// 4. Filler grace.
	if IsFiller(in.Transcript) && in.AudioMs < fillerAudioMsCeiling {
		return Decision{Action: ActionArmFillerGrace}
	}

	// 5. Greeting reply.
	if in.Phase == domain.PhaseAwaitingGreetingReply {
		if IsNegativeHearing(in.Transcript) {
			return Decision{Action: ActionHearingRetry, Line: "Sorry, can you still hear me okay?", AdvanceStepIndex: -1}
		}
		line := stepText(in.ScriptSteps, 0)
		ack := stepper.AckPrefix(domain.StepStatement, in.Transcript)
		return Decision{
			Action:           ActionSpeak,
			Line:             ack + " " + line,
			AdvanceStepIndex: 1,
			DeferAdvance:     true,
		}
	}

	// 6. Objection or question.
	if DetectObjection(in.Transcript) || DetectQuestionKindForTurn(in.Transcript) {
		rebuttal := composeRebuttal(in.Transcript)
		decision := Decision{Action: ActionSpeak, Line: rebuttal, IsRebuttal: true, AdvanceStepIndex: -1}
		if endsWithStepTwoBookingQuestion(rebuttal, in.ScriptSteps) {
			decision.AdvanceStepIndex = 2
		}
		return decision
	}

	// 7. Time-answer handling.
	if current := stepAt(in.ScriptSteps, in.ScriptStepIndex); current != nil && current.Type == domain.StepTimeQuestion {
		if d, handled := handleTimeAnswer(in, *current); handled {
			return d
		}
	}

	// 8. Advance or reprompt.
	current := stepAt(in.ScriptSteps, in.ScriptStepIndex)
	var currentType domain.StepType
	if current != nil {
		currentType = current.Type
	}
	if ShouldTreatCommitAsRealAnswer(currentType, in.AudioMs, in.Transcript) {
		ack := stepper.AckPrefix(currentType, in.Transcript)
		nextIdx := in.ScriptStepIndex + 1
		nextLine := stepText(in.ScriptSteps, nextIdx)
		line := ack + " " + nextLine

		// 9. Anti-loop.
		if line == in.LastSpokenLine && in.NowMs-in.LastSpokenAtMs < antiLoopWindowMs {
			line = bookingFallbackLine
		}

		// 10. Discovery cap.
		if stepper.IsDiscoveryLine(line) && in.DiscoveryCount >= discoveryCap {
			line = bookingFallbackLine
			return Decision{Action: ActionSpeak, Line: line, AdvanceStepIndex: nextIdx, SubstitutedFallback: true, AcceptedText: in.Transcript}
		}

		return Decision{Action: ActionSpeak, Line: line, AdvanceStepIndex: nextIdx, AcceptedText: in.Transcript}
	}

	reprompt := composeReprompt(currentType, in.ScriptSteps, in.ScriptStepIndex)
	return Decision{Action: ActionSpeak, Line: reprompt, AdvanceStepIndex: -1}
}

func handleTimeAnswer(in Input, current domain.Step) (Decision, bool) {
	txt := in.Transcript

	offerLine := func(dayHint string, window stepper.Window, rung int, pref string) Decision {
		var offer stepper.Offer
		if pref == "soon_hours" {
			offer = stepper.SoonHoursOffer(nowFromMs(in.NowMs), rung)
		} else {
			offer = stepper.GetTimeOfferLine(in.Identity, dayHint, window, rung, pref, nowFromMs(in.NowMs), tzLocation(in.LeadTZ, in.AgentTZ))
		}
		return Decision{
			Action:           ActionSpeak,
			Line:             offer.Line,
			AdvanceStepIndex: -1,
			OfferedPair:      domain.TimeOfferPair{First: offer.First, Second: offer.Second, Valid: true},
		}
	}

	dayHint := "today"
	if containsTomorrow(txt) {
		dayHint = "tomorrow"
	}

	switch {
	case current.IsDayChoiceQuestion:
		if isExactOrOfferedClockTime(txt, in.PreviousOfferedPair) {
			return Decision{}, false // falls through to step 8 acceptance
		}
		if IsDayOnly(txt) {
			return offerLine(dayHint, "", 0, TimePreference(txt)), true
		}
	case current.IsExactTimeQuestion:
		if isExactOrOfferedClockTime(txt, in.PreviousOfferedPair) {
			return Decision{}, false
		}
		if IsWindowOnly(txt) {
			return offerLine(dayHint, "", 0, TimePreference(txt)), true
		}
	}

	if TimePreference(txt) == "soon_hours" {
		return offerLine(dayHint, "", 0, "soon_hours"), true
	}
	if IsDayPlusWindow(txt) {
		return offerLine(dayHint, "", 1, TimePreference(txt)), true
	}
	if IsIndecision(txt) {
		return offerLine(dayHint, "", 1, TimePreference(txt)), true
	}

	return Decision{}, false
}

func isExactOrOfferedClockTime(text string, prev domain.TimeOfferPair) bool {
	if bookinggate.ContainsExactClockTime(text) {
		return true
	}
	if !prev.Valid {
		return false
	}
	lower := strings.ToLower(text)
	for _, pick := range []string{"first", "second", "either"} {
		if strings.Contains(lower, pick) {
			return true
		}
	}
	return bookinggate.IsAffirmativeConfirmation(text)
}

// ShouldTreatCommitAsRealAnswer implements spec §4.7 step 8's
// acceptance rule: text is required for time/open questions; a
// yes/no question may be accepted on audio alone if long enough.
func ShouldTreatCommitAsRealAnswer(stepType domain.StepType, audioMs int64, transcript string) bool {
	switch stepType {
	case domain.StepTimeQuestion, domain.StepOpenQuestion:
		return transcript != ""
	case domain.StepYesNoQuestion:
		return transcript != "" || audioMs >= yesNoAudioMsFloor
	default:
		return transcript != ""
	}
}

func composeRebuttal(text string) string {
	switch {
	case DetectObjection(text):
		return "Totally understand, I'll be quick. Would today or tomorrow work better for a quick call with your agent?"
	default:
		return "Good question — I'm reaching out about the coverage info you requested. Would today or tomorrow work better for a quick call with your agent?"
	}
}

func endsWithStepTwoBookingQuestion(line string, steps []domain.Step) bool {
	step2 := stepAt(steps, 2)
	return step2 != nil && strings.HasSuffix(line, step2.Text)
}

func composeReprompt(stepType domain.StepType, steps []domain.Step, idx int) string {
	switch stepType {
	case domain.StepTimeQuestion:
		return "Sorry, would today or tomorrow work better for a quick call?"
	case domain.StepYesNoQuestion:
		return "Just to confirm, does that work for you?"
	default:
		return stepText(steps, idx)
	}
}

func stepAt(steps []domain.Step, idx int) *domain.Step {
	if idx < 0 || idx >= len(steps) {
		return nil
	}
	return &steps[idx]
}

func stepText(steps []domain.Step, idx int) string {
	if s := stepAt(steps, idx); s != nil {
		return s.Text
	}
	return bookingFallbackLine
}

func containsTomorrow(text string) bool {
	return strings.Contains(strings.ToLower(text), "tomorrow")
}
