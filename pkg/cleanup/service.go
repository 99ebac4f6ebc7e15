// Package cleanup provides data retention and cleanup services.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"k8s.io/utils/clock"

	"github.com/paradyne-ai/callcore/pkg/config"
)

// RetentionStore is the subset of the store used by the cleanup loop.
type RetentionStore interface {
	DeleteTriggerLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteExecutionLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service periodically enforces retention policies:
//   - Removes trigger audit rows past their retention window
//   - Removes workflow execution logs past their retention window
//   - Removes broadcast Event rows past their TTL
//
// All operations are idempotent and safe to run from multiple pods.
type Service struct {
	config *config.RetentionConfig
	store  RetentionStore
	clock  clock.PassiveClock

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, store RetentionStore, clk clock.PassiveClock) *Service {
	return &Service{
		config: cfg,
		store:  store,
		clock:  clk,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"trigger_log_days", s.config.TriggerLogDays,
		"execution_log_days", s.config.ExecutionLogDays,
		"event_ttl", s.config.EventTTL,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.cleanupTriggerLogs(ctx)
	s.cleanupExecutionLogs(ctx)
	s.cleanupEvents(ctx)
}

func (s *Service) cleanupTriggerLogs(ctx context.Context) {
	cutoff := s.clock.Now().AddDate(0, 0, -s.config.TriggerLogDays)
	count, err := s.store.DeleteTriggerLogsBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: trigger log cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted old trigger logs", "count", count)
	}
}

func (s *Service) cleanupExecutionLogs(ctx context.Context) {
	cutoff := s.clock.Now().AddDate(0, 0, -s.config.ExecutionLogDays)
	count, err := s.store.DeleteExecutionLogsBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: execution log cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted old execution logs", "count", count)
	}
}

func (s *Service) cleanupEvents(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.config.EventTTL)
	count, err := s.store.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: event cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: cleaned up expired events", "count", count)
	}
}
