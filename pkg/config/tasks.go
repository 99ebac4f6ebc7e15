package config

import "time"

// TasksConfig controls the background task pool that runs post-ack work
// (broadcast, usage accumulation, AI analysis, workflow execution).
type TasksConfig struct {
	// Workers is the number of task worker goroutines.
	Workers int

	// QueueSize is the buffered task queue capacity. When full, new tasks
	// are dropped with a log entry rather than blocking the HTTP handler.
	QueueSize int

	// ShutdownTimeout is the max time to wait for in-flight tasks during
	// graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultTasksConfig returns the built-in task pool defaults.
func DefaultTasksConfig() *TasksConfig {
	return &TasksConfig{
		Workers:         8,
		QueueSize:       256,
		ShutdownTimeout: 30 * time.Second,
	}
}

func (c *TasksConfig) loadEnv() error {
	var err error
	if c.Workers, err = envInt("TASK_WORKERS", c.Workers); err != nil {
		return err
	}
	if c.QueueSize, err = envInt("TASK_QUEUE_SIZE", c.QueueSize); err != nil {
		return err
	}
	if c.ShutdownTimeout, err = envDuration("TASK_SHUTDOWN_TIMEOUT", c.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}
