package bridge

import (
	"testing"

	"github.com/covecrm/dialer-bridge/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestPhaseControllerSessionUpdatedTransitions(t *testing.T) {
	call := domain.NewCall("stream-1", "call-1")
	p := NewPhaseController(call)

	p.OnSessionUpdated()

	require.Equal(t, domain.PhaseAwaitingGreetingReply, call.Phase)
	require.True(t, call.Flags.OpenAIReady)
}

func TestPhaseControllerFirstOutboundDeltaAdvancesDeferredStep(t *testing.T) {
	call := domain.NewCall("stream-1", "call-1")
	p := NewPhaseController(call)
	p.OnSessionUpdated()
	p.ArmGreetingAdvance(1)

	p.OnFirstOutboundDelta()

	require.Equal(t, domain.PhaseInCall, call.Phase)
	require.Equal(t, 1, call.ScriptStepIndex)
	require.False(t, call.Flags.GreetingAdvPending)
}

func TestPhaseControllerFirstOutboundDeltaNoOpOutsideGreeting(t *testing.T) {
	call := domain.NewCall("stream-1", "call-1")
	call.Phase = domain.PhaseInCall
	p := NewPhaseController(call)

	p.OnFirstOutboundDelta()

	require.Equal(t, domain.PhaseInCall, call.Phase)
}

func TestPhaseControllerEndTransitionsToEnded(t *testing.T) {
	call := domain.NewCall("stream-1", "call-1")
	p := NewPhaseController(call)

	p.End()

	require.Equal(t, domain.PhaseEnded, call.Phase)
}
