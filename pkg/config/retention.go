package config

import "time"

// RetentionConfig controls data retention and cleanup behavior.
type RetentionConfig struct {
	// TriggerLogDays is how many days to keep trigger audit rows.
	TriggerLogDays int

	// ExecutionLogDays is how many days to keep workflow execution logs.
	ExecutionLogDays int

	// EventTTL is the maximum age of broadcast catch-up Event rows before
	// deletion. The bus is not durable; old rows are only useful briefly.
	EventTTL time.Duration

	// CleanupInterval is how often the cleanup loop runs.
	CleanupInterval time.Duration
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		TriggerLogDays:   90,
		ExecutionLogDays: 90,
		EventTTL:         1 * time.Hour,
		CleanupInterval:  12 * time.Hour,
	}
}

func (c *RetentionConfig) loadEnv() error {
	var err error
	if c.TriggerLogDays, err = envInt("RETENTION_TRIGGER_LOG_DAYS", c.TriggerLogDays); err != nil {
		return err
	}
	if c.ExecutionLogDays, err = envInt("RETENTION_EXECUTION_LOG_DAYS", c.ExecutionLogDays); err != nil {
		return err
	}
	if c.EventTTL, err = envDuration("RETENTION_EVENT_TTL", c.EventTTL); err != nil {
		return err
	}
	if c.CleanupInterval, err = envDuration("RETENTION_CLEANUP_INTERVAL", c.CleanupInterval); err != nil {
		return err
	}
	return nil
}
