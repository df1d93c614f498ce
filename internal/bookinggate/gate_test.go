package bookinggate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdmitExactTime(t *testing.T) {
	require.True(t, Admit("let's do 2pm", time.Time{}, time.Now()))
}

func TestAdmitAffirmativeWithinWindow(t *testing.T) {
	now := time.Now()
	require.True(t, Admit("yes that works", now.Add(-2*time.Minute), now))
}

func TestAdmitAffirmativeOutsideWindowRejected(t *testing.T) {
	now := time.Now()
	require.False(t, Admit("yes that works", now.Add(-10*time.Minute), now))
}

func TestAdmitBareAffirmativeNoPriorTimeRejected(t *testing.T) {
	require.False(t, Admit("yes", time.Time{}, time.Now()))
}

func TestAdmitVagueDayRejected(t *testing.T) {
	require.False(t, Admit("tomorrow afternoon", time.Time{}, time.Now()))
}

func TestNormalizeStartTimeVariants(t *testing.T) {
	tISO, err := NormalizeStartTime("2026-08-01T18:00:00Z")
	require.NoError(t, err)
	require.Equal(t, 2026, tISO.Year())

	tSec, err := NormalizeStartTime("1735689600")
	require.NoError(t, err)
	require.False(t, tSec.IsZero())

	tMs, err := NormalizeStartTime("1735689600000")
	require.NoError(t, err)
	require.Equal(t, tSec, tMs)
}

func TestResolveLeadTZPrecedence(t *testing.T) {
	require.Equal(t, "America/New_York", ResolveLeadTZ("America/New_York", "America/Chicago", "America/Denver"))
	require.Equal(t, "America/Chicago", ResolveLeadTZ("", "America/Chicago", "America/Denver"))
	require.Equal(t, "America/Denver", ResolveLeadTZ("bogus", "", "America/Denver"))
	require.Equal(t, "America/Phoenix", ResolveLeadTZ("", "", ""))
}

func TestResolveAgentTZPrefersCRM(t *testing.T) {
	require.Equal(t, "America/Denver", ResolveAgentTZ("America/Denver", "America/Chicago"))
}
