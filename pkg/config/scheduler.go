package config

import "time"

// SchedulerConfig controls how a scheduler tick drains due jobs.
// The tick itself is driven by an external cron hitting the API.
type SchedulerConfig struct {
	// BatchSize is the maximum number of due jobs one tick will lease.
	// Bounded so a tick fits inside the cron driver's 60-second budget.
	BatchSize int

	// JobTimeout is the soft deadline for dispatching one job. A timed-out
	// dispatch follows the same retry path as a failed one.
	JobTimeout time.Duration

	// LateWarnThreshold is how far past scheduled_at a job may be dispatched
	// before the tick logs a warning.
	LateWarnThreshold time.Duration
}

// DefaultSchedulerConfig returns the built-in scheduler defaults.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		BatchSize:         50,
		JobTimeout:        25 * time.Second,
		LateWarnThreshold: 5 * time.Minute,
	}
}

func (c *SchedulerConfig) loadEnv() error {
	var err error
	if c.BatchSize, err = envInt("SCHEDULER_BATCH_SIZE", c.BatchSize); err != nil {
		return err
	}
	if c.JobTimeout, err = envDuration("SCHEDULER_JOB_TIMEOUT", c.JobTimeout); err != nil {
		return err
	}
	if c.LateWarnThreshold, err = envDuration("SCHEDULER_LATE_WARN_THRESHOLD", c.LateWarnThreshold); err != nil {
		return err
	}
	return nil
}
