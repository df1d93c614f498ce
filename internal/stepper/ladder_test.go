package stepper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetTimeOfferLineDeterministic(t *testing.T) {
	loc, _ := time.LoadLocation("America/Phoenix")
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, loc)
	id := OfferIdentity{LeadID: "lead-1", SessionID: "sess-1", CallID: "call-1", FirstName: "Sam", AgentName: "Jordan"}

	o1 := GetTimeOfferLine(id, "tomorrow", "", 0, "", now, loc)
	o2 := GetTimeOfferLine(id, "tomorrow", "", 0, "", now, loc)
	require.Equal(t, o1.First, o2.First)
	require.Equal(t, o1.Second, o2.Second)
}

func TestGetTimeOfferLineTodayNeverPastCutoff(t *testing.T) {
	loc, _ := time.LoadLocation("America/Phoenix")
	// Late in the evening window so the fallback-to-tomorrow path is exercised too.
	now := time.Date(2026, 7, 30, 17, 40, 0, 0, loc)
	id := OfferIdentity{LeadID: "lead-2", SessionID: "sess-2", CallID: "call-2"}

	o := GetTimeOfferLine(id, "today", "", 0, "", now, loc)
	cutoff := ceilToNext30(now.Add(30 * time.Minute))
	require.False(t, o.First.Before(cutoff), "offered time %v must not be before cutoff %v", o.First, cutoff)
}

func TestHashSeedStableAndVariesByRung(t *testing.T) {
	s0 := HashSeed("l", "s", "c", "p", "e", "f", "a", "today", "evening", 0)
	s0b := HashSeed("l", "s", "c", "p", "e", "f", "a", "today", "evening", 0)
	s1 := HashSeed("l", "s", "c", "p", "e", "f", "a", "today", "evening", 1)
	require.Equal(t, s0, s0b)
	require.NotEqual(t, s0, s1)
}

func TestResolveTZPrecedence(t *testing.T) {
	loc := ResolveTZ("America/New_York", "America/Chicago")
	require.Equal(t, "America/New_York", loc.String())

	loc = ResolveTZ("not-a-tz", "America/Chicago")
	require.Equal(t, "America/Chicago", loc.String())

	loc = ResolveTZ("", "")
	require.Equal(t, "America/Phoenix", loc.String())
}
