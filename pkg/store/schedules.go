package store

import (
	"context"
	"fmt"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// InsertScheduledCall enqueues a future call. original_scheduled_at is
// stamped from the initial scheduled_at so window deferrals stay auditable.
func (s *Store) InsertScheduledCall(ctx context.Context, sc *models.ScheduledCall) (*models.ScheduledCall, error) {
	var out models.ScheduledCall
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO scheduled_calls (tenant_id, sub_tenant_id, agent_id, phone_number,
			from_number, contact_id, contact_name, lead_timezone, trigger_source,
			metadata, scheduled_at, original_scheduled_at, timezone_delayed, max_retries)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11, $12, $13)
		RETURNING *`,
		sc.TenantID, sc.SubTenantID, sc.AgentID, sc.PhoneNumber,
		sc.FromNumber, sc.ContactID, sc.ContactName, sc.LeadTimezone, sc.TriggerSource,
		sc.Metadata, sc.ScheduledAt, sc.TimezoneDelayed, sc.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to insert scheduled call: %w", err)
	}
	return &out, nil
}

// GetScheduledCall fetches a scheduled call by id.
func (s *Store) GetScheduledCall(ctx context.Context, id string) (*models.ScheduledCall, error) {
	var sc models.ScheduledCall
	err := s.db.GetContext(ctx, &sc, `SELECT * FROM scheduled_calls WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "scheduled call")
	}
	return &sc, nil
}

// DueScheduledCalls returns pending rows whose time has come, oldest first.
func (s *Store) DueScheduledCalls(ctx context.Context, now time.Time, limit int) ([]models.ScheduledCall, error) {
	var due []models.ScheduledCall
	err := s.db.SelectContext(ctx, &due, `
		SELECT * FROM scheduled_calls
		WHERE status = 'pending' AND scheduled_at <= $1
		ORDER BY scheduled_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due scheduled calls: %w", err)
	}
	return due, nil
}

// LeaseScheduledCall claims a pending row for processing via compare-and-set
// on status. Returns false when another worker already claimed it; exactly
// one concurrent caller wins.
func (s *Store) LeaseScheduledCall(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_calls SET status = 'in_progress', updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("failed to lease scheduled call: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read lease result: %w", err)
	}
	return n == 1, nil
}

// RescheduleCall releases a leased row back to pending at a new time,
// typically because the lead's calling window closed between enqueue and
// dispatch. Does not consume a retry.
func (s *Store) RescheduleCall(ctx context.Context, id string, at time.Time, timezoneDelayed bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_calls SET
			status = 'pending',
			scheduled_at = $2,
			timezone_delayed = timezone_delayed OR $3,
			updated_at = now()
		WHERE id = $1`, id, at, timezoneDelayed)
	if err != nil {
		return fmt.Errorf("failed to reschedule call: %w", err)
	}
	return nil
}

// CompleteScheduledCall marks a leased row dispatched, recording the
// provider's call id.
func (s *Store) CompleteScheduledCall(ctx context.Context, id, externalCallID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_calls SET
			status = 'completed',
			external_call_id = $2,
			error_message = NULL,
			completed_at = now(),
			updated_at = now()
		WHERE id = $1`, id, externalCallID)
	if err != nil {
		return fmt.Errorf("failed to complete scheduled call: %w", err)
	}
	return nil
}

// RetryScheduledCall returns a leased row to pending after a dispatch
// failure, consuming one retry and recording the error.
func (s *Store) RetryScheduledCall(ctx context.Context, id string, at time.Time, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_calls SET
			status = 'pending',
			scheduled_at = $2,
			retry_count = retry_count + 1,
			error_message = $3,
			updated_at = now()
		WHERE id = $1`, id, at, errMsg)
	if err != nil {
		return fmt.Errorf("failed to retry scheduled call: %w", err)
	}
	return nil
}

// FailScheduledCall marks a leased row permanently failed.
func (s *Store) FailScheduledCall(ctx context.Context, id, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_calls SET
			status = 'failed',
			error_message = $2,
			completed_at = now(),
			updated_at = now()
		WHERE id = $1`, id, errMsg)
	if err != nil {
		return fmt.Errorf("failed to fail scheduled call: %w", err)
	}
	return nil
}

// CancelScheduledCall cancels a pending row. Rows already leased or finished
// are left alone; returns whether the cancel took effect.
func (s *Store) CancelScheduledCall(ctx context.Context, tenantID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_calls SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND status = 'pending'`, id, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel scheduled call: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read cancel result: %w", err)
	}
	return n == 1, nil
}

// CountPendingScheduledCalls reports the pending backlog size, used by the
// health endpoint.
func (s *Store) CountPendingScheduledCalls(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM scheduled_calls WHERE status = 'pending'`)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending scheduled calls: %w", err)
	}
	return n, nil
}
