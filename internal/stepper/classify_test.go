package stepper

import (
	"testing"

	"github.com/covecrm/dialer-bridge/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestClassifyTimeQuestion(t *testing.T) {
	s := classify(`Would today or tomorrow work better for a quick call with your agent?`)
	require.Equal(t, domain.StepTimeQuestion, s.Type)
	require.True(t, s.IsDayChoiceQuestion)
}

func TestClassifyExactTimeQuestion(t *testing.T) {
	s := classify(`What time works best for a quick call?`)
	require.Equal(t, domain.StepTimeQuestion, s.Type)
	require.True(t, s.IsExactTimeQuestion)
}

func TestClassifyYesNo(t *testing.T) {
	s := classify(`Did you want to keep the coverage amount near your current mortgage balance?`)
	require.Equal(t, domain.StepYesNoQuestion, s.Type)
}

func TestClassifyOpen(t *testing.T) {
	s := classify(`What made you request info on this?`)
	require.Equal(t, domain.StepOpenQuestion, s.Type)
}

func TestClassifyStatement(t *testing.T) {
	s := classify(`Great, you're on the calendar.`)
	require.Equal(t, domain.StepStatement, s.Type)
}

func TestExtractStepsDedupsAndFallsBack(t *testing.T) {
	steps := ExtractSteps(`
Say: "Hi there"
Say: "Hi there"
Then ask: "Is now okay?"
`)
	require.Len(t, steps, 2)

	steps = ExtractSteps("no structured lines here")
	require.Len(t, steps, 1)
}

func TestScriptStepIdempotence(t *testing.T) {
	a := BuildScriptSet(domain.ScriptMortgageProtection)
	b := BuildScriptSet(domain.ScriptMortgageProtection)
	require.Equal(t, a.Steps, b.Steps)
}
