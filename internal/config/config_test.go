package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()
	require.Equal(t, "4000", cfg.Port)
	require.Equal(t, "gpt-realtime", cfg.OpenAIRealtimeModel)
	require.False(t, cfg.PubSubEnabled())
}

func TestLoadFromEnvPortPrefersPORT(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("AI_VOICE_SERVER_PORT", "9001")
	cfg := LoadFromEnv()
	require.Equal(t, "9000", cfg.Port)
}

func TestLoadFromEnvPubSubEnabledWhenProjectSet(t *testing.T) {
	t.Setenv("PUBSUB_PROJECT_ID", "my-project")
	cfg := LoadFromEnv()
	require.True(t, cfg.PubSubEnabled())
}
