package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBillableAmountRoundsDown(t *testing.T) {
	start := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	end := start.Add(90*time.Second + 700*time.Millisecond)

	seconds, cost := BillableAmount(start, end, 0.08)
	require.Equal(t, int64(90), seconds)
	require.InDelta(t, 0.12, cost, 0.0001)
}

func TestBillableAmountFloorsNegativeDuration(t *testing.T) {
	start := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	end := start.Add(-5 * time.Second)

	seconds, cost := BillableAmount(start, end, 0.08)
	require.Equal(t, int64(0), seconds)
	require.Equal(t, 0.0, cost)
}
