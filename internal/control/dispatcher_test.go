package control

import (
	"encoding/json"
	"testing"

	"github.com/covecrm/dialer-bridge/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestParseBookAppointmentFillsIdentity(t *testing.T) {
	raw := json.RawMessage(`{"startTimeUtc":"2026-08-01T18:00:00Z","durationMinutes":30,"leadTimeZone":"America/New_York","agentTimeZone":"America/Phoenix","notes":"wants callback","source":"ai_dialer"}`)
	req, err := ParseBookAppointment(raw, "sess-1", "lead-1")
	require.NoError(t, err)
	require.Equal(t, "sess-1", req.AICallSessionID)
	require.Equal(t, "lead-1", req.LeadID)
	require.Equal(t, 30, req.DurationMinutes)
}

func TestParseBookAppointmentRejectsEmpty(t *testing.T) {
	_, err := ParseBookAppointment(nil, "sess-1", "lead-1")
	require.Error(t, err)
}

func TestValidOutcomesCoversSpecSet(t *testing.T) {
	for _, o := range []string{"booked", "not_interested", "no_answer", "callback", "do_not_call", "disconnected", "unknown"} {
		require.True(t, validOutcomes[domain.FinalOutcome(o)], o)
	}
}
