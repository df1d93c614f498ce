// Package config loads the bridge's environment-driven configuration,
// following the teacher's getEnv/getEnvAsInt/getEnvAsBool/splitString
// helper pattern (spec §6's Configuration table plus the ambient
// additions SPEC_FULL.md calls for: logging, database, redis, pubsub).
package config

import (
	"os"
	"strconv"
)

// Config holds every environment-driven setting the bridge needs.
type Config struct {
	Port string

	CRMBaseURL     string
	CRMCronKey     string
	CRMAgentKey    string

	OpenAIAPIKey        string
	OpenAIRealtimeModel string
	OpenAIRealtimeURL   string

	VendorCostPerMinuteUSD float64

	LogEnv string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PubSubProjectID   string
	PubSubTopicName   string
	PubSubConvPrefix  string

	InstanceID string
}

// LoadFromEnv reads every setting from the process environment,
// falling back to sane local-dev defaults.
func LoadFromEnv() *Config {
	return &Config{
		Port: getEnv("PORT", getEnv("AI_VOICE_SERVER_PORT", "4000")),

		CRMBaseURL:  getEnv("COVECRM_BASE_URL", "http://localhost:8090"),
		CRMCronKey:  getEnv("AI_DIALER_CRON_KEY", ""),
		CRMAgentKey: getEnv("AI_DIALER_AGENT_KEY", ""),

		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIRealtimeModel: getEnv("OPENAI_REALTIME_MODEL", "gpt-realtime"),
		OpenAIRealtimeURL:   getEnv("OPENAI_REALTIME_URL", "wss://api.openai.com/v1/realtime"),

		VendorCostPerMinuteUSD: getEnvAsFloat("AI_DIALER_VENDOR_COST_PER_MIN_USD", 0.08),

		LogEnv: getEnv("LOG_ENV", "production"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		PubSubProjectID:  getEnv("PUBSUB_PROJECT_ID", ""),
		PubSubTopicName:  getEnv("PUBSUB_TOPIC_NAME", "dialer-bridge-conversation-metrics"),
		PubSubConvPrefix: getEnv("PUBSUB_CONV_METRICS_PREFIX", ""),

		InstanceID: getEnv("BRIDGE_INSTANCE_ID", "dialer-bridge-0"),
	}
}

// PubSubEnabled reports whether a project id was configured; absent
// one, UsageReporter skips the metrics fan-out entirely.
func (c *Config) PubSubEnabled() bool {
	return c.PubSubProjectID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
