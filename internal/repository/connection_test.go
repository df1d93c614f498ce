package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetEnvOrDefaultFallsBackWhenUnset(t *testing.T) {
	t.Setenv("DB_HOST_TEST_UNSET", "")
	require.Equal(t, "fallback", getEnvOrDefault("DB_HOST_TEST_UNSET", "fallback"))
}

func TestGetEnvOrDefaultUsesSetValue(t *testing.T) {
	t.Setenv("DB_HOST_TEST_SET", "db.internal")
	require.Equal(t, "db.internal", getEnvOrDefault("DB_HOST_TEST_SET", "fallback"))
}

func TestGetEnvIntOrDefaultParsesValidInt(t *testing.T) {
	t.Setenv("DB_PORT_TEST", "6543")
	require.Equal(t, 6543, getEnvIntOrDefault("DB_PORT_TEST", 5432))
}

func TestGetEnvIntOrDefaultFallsBackOnGarbage(t *testing.T) {
	t.Setenv("DB_PORT_TEST_BAD", "not-a-number")
	require.Equal(t, 5432, getEnvIntOrDefault("DB_PORT_TEST_BAD", 5432))
}

func TestCallEventTableName(t *testing.T) {
	require.Equal(t, "call_events", CallEvent{}.TableName())
}
