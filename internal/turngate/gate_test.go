package turngate

import (
	"testing"

	"github.com/covecrm/dialer-bridge/internal/domain"
	"github.com/stretchr/testify/require"
)

func baseSteps() []domain.Step {
	return []domain.Step{
		{Text: "Hi there, is now an okay time?", Type: domain.StepStatement},
		{Text: "Did you want the coverage amount near your mortgage balance?", Type: domain.StepYesNoQuestion},
		{Text: "Would today or tomorrow work better for a quick call?", Type: domain.StepTimeQuestion, IsDayChoiceQuestion: true},
		{Text: "Great, you're on the calendar.", Type: domain.StepStatement},
	}
}

func TestDecideBusyQueuesPending(t *testing.T) {
	in := Input{Flags: domain.Flags{AISpeaking: true}, ScriptSteps: baseSteps()}
	d := Decide(in)
	require.Equal(t, ActionQueuePending, d.Action)
}

func TestDecideLowSignalDropped(t *testing.T) {
	in := Input{ScriptSteps: baseSteps(), AudioMs: 100, Transcript: ""}
	d := Decide(in)
	require.Equal(t, ActionDropLowSignal, d.Action)
}

func TestDecideLowSignalAwaitsTranscriptWhenSpokeRecently(t *testing.T) {
	in := Input{ScriptSteps: baseSteps(), AudioMs: 100, Transcript: "", SpeechSeenRecently: true, SpokeDurationMs: 300}
	d := Decide(in)
	require.Equal(t, ActionAwaitTranscript, d.Action)
}

func TestDecideFillerArmsGrace(t *testing.T) {
	in := Input{ScriptSteps: baseSteps(), AudioMs: 400, Transcript: "um"}
	d := Decide(in)
	require.Equal(t, ActionArmFillerGrace, d.Action)
}

func TestDecideGreetingReplyAdvancesDeferred(t *testing.T) {
	in := Input{
		Phase:       domain.PhaseAwaitingGreetingReply,
		ScriptSteps: baseSteps(),
		AudioMs:     500,
		Transcript:  "yes",
	}
	d := Decide(in)
	require.Equal(t, ActionSpeak, d.Action)
	require.True(t, d.DeferAdvance)
	require.Equal(t, 1, d.AdvanceStepIndex)
}

func TestDecideObjectionProducesRebuttal(t *testing.T) {
	in := Input{ScriptSteps: baseSteps(), AudioMs: 1000, Transcript: "who is this, I'm not interested"}
	d := Decide(in)
	require.Equal(t, ActionSpeak, d.Action)
	require.True(t, d.IsRebuttal)
}

func TestDecideYesNoAcceptedOnAudioAlone(t *testing.T) {
	in := Input{
		ScriptSteps:     baseSteps(),
		ScriptStepIndex: 1,
		AudioMs:         1300,
		Transcript:      "",
	}
	d := Decide(in)
	require.Equal(t, ActionSpeak, d.Action)
	require.Equal(t, 2, d.AdvanceStepIndex)
}

func TestDecideDiscoveryCapSubstitutesFallback(t *testing.T) {
	// Step 0 -> 1 is the discovery ("coverage"/"balance") line; with the
	// cap already hit, it must be replaced by the booking fallback.
	in := Input{
		ScriptSteps:     baseSteps(),
		ScriptStepIndex: 0,
		AudioMs:         1000,
		Transcript:      "sure",
		DiscoveryCount:  2,
	}
	d := Decide(in)
	require.Equal(t, ActionSpeak, d.Action)
	require.True(t, d.SubstitutedFallback)
	require.Equal(t, bookingFallbackLine, d.Line)
}

func TestShouldTreatCommitAsRealAnswerTimeRequiresText(t *testing.T) {
	require.False(t, ShouldTreatCommitAsRealAnswer(domain.StepTimeQuestion, 2000, ""))
	require.True(t, ShouldTreatCommitAsRealAnswer(domain.StepTimeQuestion, 2000, "2pm"))
}
