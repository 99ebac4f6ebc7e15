// Package scheduler drains the scheduled-call queue. A tick is driven by an
// external cron hitting the API; it leases due jobs one at a time via a
// status CAS, re-checks the calling window, and dispatches through the shared
// Dispatcher. Multiple replicas may tick concurrently; the lease keeps each
// job owned by at most one worker.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/utils/clock"

	"github.com/paradyne-ai/callcore/pkg/config"
	"github.com/paradyne-ai/callcore/pkg/events"
	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/services"
	"github.com/paradyne-ai/callcore/pkg/store"
	"github.com/paradyne-ai/callcore/pkg/timezone"
)

type schedulerStore interface {
	DueScheduledCalls(ctx context.Context, now time.Time, limit int) ([]models.ScheduledCall, error)
	LeaseScheduledCall(ctx context.Context, id string) (bool, error)
	RescheduleCall(ctx context.Context, id string, at time.Time, timezoneDelayed bool) error
	CompleteScheduledCall(ctx context.Context, id, externalCallID string) error
	RetryScheduledCall(ctx context.Context, id string, at time.Time, errMsg string) error
	FailScheduledCall(ctx context.Context, id, errMsg string) error
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
}

// Dispatcher places one resolved outbound call. Implemented by
// services.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, req services.DispatchRequest) (*models.Call, error)
}

// TickReport counts the outcomes of one tick. The cron endpoint echoes it to
// the caller.
type TickReport struct {
	// Due is how many pending jobs the batch select returned.
	Due int `json:"due"`
	// Leased is how many of those this worker won the CAS for.
	Leased int `json:"leased"`
	// Skipped jobs were leased by a concurrent worker first.
	Skipped     int `json:"skipped"`
	Dispatched  int `json:"dispatched"`
	Rescheduled int `json:"rescheduled"`
	Retried     int `json:"retried"`
	Failed      int `json:"failed"`
	// Errors counts jobs whose outcome could not be recorded; they stay
	// in_progress for operators to reconcile.
	Errors    int   `json:"errors"`
	ElapsedMS int64 `json:"elapsed_ms"`
}

// Scheduler drains due scheduled calls. One instance is shared by all ticks;
// it holds no per-tick state.
type Scheduler struct {
	store      schedulerStore
	dispatcher Dispatcher
	oracle     *timezone.Oracle
	sink       events.EventSink
	cfg        *config.SchedulerConfig
	clock      clock.PassiveClock
}

// New wires a Scheduler.
func New(st schedulerStore, d Dispatcher, oracle *timezone.Oracle, sink events.EventSink, cfg *config.SchedulerConfig, clk clock.PassiveClock) *Scheduler {
	return &Scheduler{
		store:      st,
		dispatcher: d,
		oracle:     oracle,
		sink:       sink,
		cfg:        cfg,
		clock:      clk,
	}
}

// ProcessDue runs one tick: select due jobs, lease each, and dispatch.
// Jobs are processed sequentially; per-job failures are recorded on the row
// and never abort the batch. Only the batch select itself can return an
// error.
func (s *Scheduler) ProcessDue(ctx context.Context) (*TickReport, error) {
	started := s.clock.Now()
	now := started.UTC()
	report := &TickReport{}

	due, err := s.store.DueScheduledCalls(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list due scheduled calls: %w", err)
	}
	report.Due = len(due)

	for i := range due {
		job := &due[i]

		leased, err := s.store.LeaseScheduledCall(ctx, job.ID)
		if err != nil {
			slog.Error("Failed to lease scheduled call", "scheduled_call_id", job.ID, "error", err)
			report.Errors++
			continue
		}
		if !leased {
			report.Skipped++
			continue
		}
		report.Leased++

		s.processJob(ctx, job, now, report)
	}

	report.ElapsedMS = s.clock.Now().Sub(started).Milliseconds()
	if report.Due > 0 {
		slog.Info("Scheduler tick complete",
			"due", report.Due,
			"leased", report.Leased,
			"dispatched", report.Dispatched,
			"rescheduled", report.Rescheduled,
			"retried", report.Retried,
			"failed", report.Failed,
			"skipped", report.Skipped,
			"errors", report.Errors,
			"elapsed_ms", report.ElapsedMS)
	}
	return report, nil
}

// processJob handles one leased job: window re-check, dispatch, and outcome
// bookkeeping.
func (s *Scheduler) processJob(ctx context.Context, job *models.ScheduledCall, now time.Time, report *TickReport) {
	log := slog.With("scheduled_call_id", job.ID, "tenant_id", job.TenantID)

	if late := now.Sub(job.ScheduledAt); late > s.cfg.LateWarnThreshold {
		log.Warn("Dispatching scheduled call late",
			"late_by", late.Round(time.Second), "scheduled_at", job.ScheduledAt)
	}

	tenant, err := s.store.GetTenant(ctx, job.TenantID)
	if errors.Is(err, store.ErrNotFound) {
		s.recordFailure(ctx, job, fmt.Errorf("tenant %s no longer exists", job.TenantID), false, report)
		return
	}
	if err != nil {
		s.recordFailure(ctx, job, fmt.Errorf("failed to load tenant: %w", err), true, report)
		return
	}

	// The window may have changed between enqueue and now, or the job may
	// have been enqueued by an explicit scheduled_at that lands outside it.
	if job.LeadTimezone != nil && *job.LeadTimezone != "" {
		zone := *job.LeadTimezone
		window := tenant.CallingWindow()
		open, werr := s.oracle.InWindow(zone, window)
		if werr != nil {
			log.Warn("Window evaluation failed, dispatching anyway", "zone", zone, "error", werr)
		} else if !open {
			at, nerr := s.oracle.NextOpen(zone, window)
			if nerr != nil {
				s.recordFailure(ctx, job, fmt.Errorf("failed to compute next window opening: %w", nerr), false, report)
				return
			}
			if err := s.store.RescheduleCall(ctx, job.ID, at, true); err != nil {
				log.Error("Failed to reschedule call", "error", err)
				report.Errors++
				return
			}
			report.Rescheduled++
			log.Info("Scheduled call pushed to next window opening", "zone", zone, "next_open", at)
			return
		}
	}

	agent, err := s.store.GetAgent(ctx, job.AgentID)
	if errors.Is(err, store.ErrNotFound) {
		s.recordFailure(ctx, job, fmt.Errorf("agent %s no longer exists", job.AgentID), false, report)
		return
	}
	if err != nil {
		s.recordFailure(ctx, job, fmt.Errorf("failed to load agent: %w", err), true, report)
		return
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	call, err := s.dispatcher.Dispatch(dispatchCtx, services.DispatchRequest{
		TenantID:        job.TenantID,
		SubTenantID:     job.SubTenantID,
		Agent:           agent,
		To:              job.PhoneNumber,
		From:            deref(job.FromNumber),
		ContactID:       deref(job.ContactID),
		ContactName:     deref(job.ContactName),
		LeadTimezone:    deref(job.LeadTimezone),
		Source:          job.TriggerSource,
		ScheduledCallID: job.ID,
		ScheduledAt:     &job.ScheduledAt,
		Metadata:        job.Metadata,
	})
	if err != nil {
		s.recordFailure(ctx, job, err, retryable(err), report)
		return
	}

	if err := s.store.CompleteScheduledCall(ctx, job.ID, call.ExternalID); err != nil {
		// The provider accepted the call; leave the row in_progress rather
		// than risk a duplicate dispatch on the next tick.
		log.Error("Failed to mark scheduled call completed",
			"external_call_id", call.ExternalID, "error", err)
		report.Errors++
		return
	}
	report.Dispatched++

	job.Status = models.ScheduleCompleted
	job.ExternalCallID = &call.ExternalID
	s.publish(ctx, events.EventTypeScheduleCompleted, job)

	log.Info("Scheduled call dispatched",
		"external_call_id", call.ExternalID,
		"provider", agent.Provider,
		"attempt", job.RetryCount+1)
}

// recordFailure applies the retry bookkeeping for one failed dispatch.
// Transient failures consume one retry and return the job to pending with
// scheduled_at untouched, so the next tick re-picks it. Permanent failures
// and an exhausted budget mark the row failed.
func (s *Scheduler) recordFailure(ctx context.Context, job *models.ScheduledCall, cause error, transient bool, report *TickReport) {
	log := slog.With("scheduled_call_id", job.ID, "tenant_id", job.TenantID)
	msg := cause.Error()

	if transient && job.RetryCount+1 < job.MaxRetries {
		if err := s.store.RetryScheduledCall(ctx, job.ID, job.ScheduledAt, msg); err != nil {
			log.Error("Failed to record dispatch retry", "error", err)
			report.Errors++
			return
		}
		report.Retried++
		log.Warn("Scheduled call dispatch failed, will retry",
			"attempt", job.RetryCount+1, "max_retries", job.MaxRetries, "error", cause)
		return
	}

	if err := s.store.FailScheduledCall(ctx, job.ID, msg); err != nil {
		log.Error("Failed to record dispatch failure", "error", err)
		report.Errors++
		return
	}
	report.Failed++

	job.Status = models.ScheduleFailed
	job.ErrorMessage = &msg
	s.publish(ctx, events.EventTypeScheduleFailed, job)

	log.Error("Scheduled call failed permanently",
		"attempts", job.RetryCount+1, "max_retries", job.MaxRetries, "error", cause)
}

func (s *Scheduler) publish(ctx context.Context, eventType string, job *models.ScheduledCall) {
	if err := s.sink.PublishScheduleEvent(ctx, job.TenantID,
		events.NewScheduleEventPayload(eventType, job)); err != nil {
		slog.Warn("Failed to publish schedule event",
			"scheduled_call_id", job.ID, "type", eventType, "error", err)
	}
}

// retryable classifies a dispatch failure. Transient upstream errors and the
// per-job deadline may heal on a later tick; provider 4xx and resolution
// failures will not.
func retryable(err error) bool {
	var ue *services.UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
