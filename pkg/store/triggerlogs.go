package store

import (
	"context"
	"fmt"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// InsertTriggerLog records a trigger attempt for audit. Payloads must be
// redacted before they reach here.
func (s *Store) InsertTriggerLog(ctx context.Context, tl *models.TriggerLog) (*models.TriggerLog, error) {
	var out models.TriggerLog
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO trigger_logs (tenant_id, source, status, agent_id, phone_number,
			lead_timezone, scheduled_call_id, call_external_id, error_message, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING *`,
		tl.TenantID, tl.Source, tl.Status, tl.AgentID, tl.PhoneNumber,
		tl.LeadTimezone, tl.ScheduledCallID, tl.CallExternalID, tl.ErrorMessage, tl.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to insert trigger log: %w", err)
	}
	return &out, nil
}

// ListTriggerLogs returns a tenant's most recent trigger logs.
func (s *Store) ListTriggerLogs(ctx context.Context, tenantID string, limit int) ([]models.TriggerLog, error) {
	var logs []models.TriggerLog
	err := s.db.SelectContext(ctx, &logs, `
		SELECT * FROM trigger_logs
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trigger logs: %w", err)
	}
	return logs, nil
}

// DeleteTriggerLogsBefore removes logs older than the cutoff and reports how
// many were deleted.
func (s *Store) DeleteTriggerLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM trigger_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete trigger logs: %w", err)
	}
	return res.RowsAffected()
}
