// Package config loads service configuration from the environment.
//
// Every knob has a default suitable for local development; production
// deployments override via environment variables (optionally loaded from a
// .env file by the caller before Load is invoked).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the root configuration for the callcore service.
type Config struct {
	// HTTPPort is the listen port for the API server.
	HTTPPort string

	// AppURL is the public base URL of the application, used for
	// return-url whitelisting on widget sessions.
	AppURL string

	// CronSecret authorizes the scheduler tick endpoint. When empty the
	// endpoint answers 503 and refuses to run.
	CronSecret string

	// AnthropicAPIKey enables the AI analysis and agent-builder features.
	// When empty those endpoints answer 503 and webhook ingress skips the
	// analysis task.
	AnthropicAPIKey string

	// HubSpotClientID and HubSpotClientSecret are the OAuth app credentials
	// used to refresh CRM B access tokens.
	HubSpotClientID     string
	HubSpotClientSecret string

	// CalendarClientID and CalendarClientSecret are the OAuth app
	// credentials for the calendar vendor. Optional; without them
	// calendar actions fail as unconfigured.
	CalendarClientID     string
	CalendarClientSecret string

	// ProviderBWebhookSecret and ProviderCWebhookSecret are the
	// provider-wide webhook signing secrets. Provider A signs with the
	// tenant's own API key and needs no global secret.
	ProviderBWebhookSecret string
	ProviderCWebhookSecret string

	// Redis backs the AI-builder rate limiter. Empty addr disables
	// limiting (requests are allowed).
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Scheduler *SchedulerConfig
	Tasks     *TasksConfig
	Retention *RetentionConfig
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	redisDB, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		HTTPPort:               getEnvOrDefault("HTTP_PORT", "8080"),
		AppURL:                 getEnvOrDefault("APP_URL", os.Getenv("NEXT_PUBLIC_APP_URL")),
		CronSecret:             os.Getenv("CRON_SECRET"),
		AnthropicAPIKey:        os.Getenv("ANTHROPIC_API_KEY"),
		HubSpotClientID:        os.Getenv("HUBSPOT_CLIENT_ID"),
		HubSpotClientSecret:    os.Getenv("HUBSPOT_CLIENT_SECRET"),
		CalendarClientID:       os.Getenv("CALENDAR_CLIENT_ID"),
		CalendarClientSecret:   os.Getenv("CALENDAR_CLIENT_SECRET"),
		ProviderBWebhookSecret: os.Getenv("PROVIDER_B_WEBHOOK_SECRET"),
		ProviderCWebhookSecret: os.Getenv("PROVIDER_C_WEBHOOK_SECRET"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                redisDB,
		Scheduler:              DefaultSchedulerConfig(),
		Tasks:                  DefaultTasksConfig(),
		Retention:              DefaultRetentionConfig(),
	}

	if err := cfg.Scheduler.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Tasks.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Retention.loadEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// AnalysisEnabled reports whether AI analysis/builder features are usable.
func (c *Config) AnalysisEnabled() bool {
	return c.AnthropicAPIKey != ""
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
