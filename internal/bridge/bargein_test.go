package bridge

import (
	"context"
	"testing"

	"github.com/covecrm/dialer-bridge/internal/domain"
	"github.com/stretchr/testify/require"
)

func loudFrame() []byte {
	f := make([]byte, 160)
	for i := range f {
		f[i] = 0x00
	}
	return f
}

func TestBargeInInactiveWhenNotSpeaking(t *testing.T) {
	call := domain.NewCall("s1", "c1")
	phase := NewPhaseController(call)
	b := NewBargeInController(call, phase, nil)

	fired := b.OnInboundFrame(context.Background(), loudFrame(), 1000)

	require.False(t, fired)
	require.Equal(t, int64(0), call.BargeInAudioMs)
}

func TestBargeInIgnoresSilenceWhileActive(t *testing.T) {
	call := domain.NewCall("s1", "c1")
	call.Flags.AISpeaking = true
	call.Flags.ResponseInFlight = true
	phase := NewPhaseController(call)
	b := NewBargeInController(call, phase, nil)

	silence := make([]byte, 160)
	for i := range silence {
		silence[i] = 0xFF
	}

	fired := b.OnInboundFrame(context.Background(), silence, 1000)

	require.False(t, fired)
	require.Equal(t, int64(0), call.BargeInAudioMs)
}

func TestBargeInAccumulatesBelowThreshold(t *testing.T) {
	call := domain.NewCall("s1", "c1")
	call.Flags.AISpeaking = true
	call.Flags.ResponseInFlight = true
	call.Timing.AIAudioStartedAt = 1000
	phase := NewPhaseController(call)
	b := NewBargeInController(call, phase, nil)

	// Only 100ms of cooldown elapsed, well under the 650ms floor, so
	// no cancel should fire even though the frame is loud.
	fired := b.OnInboundFrame(context.Background(), loudFrame(), 1100)

	require.False(t, fired)
	require.Equal(t, int64(20), call.BargeInAudioMs)
	require.Len(t, call.RingBuffer, 1)
}
