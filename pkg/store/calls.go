package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// GetCall fetches a call by id.
func (s *Store) GetCall(ctx context.Context, id string) (*models.Call, error) {
	var c models.Call
	err := s.db.GetContext(ctx, &c, `SELECT * FROM calls WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "call")
	}
	return &c, nil
}

// GetTenantCall fetches a call by id scoped to a tenant.
func (s *Store) GetTenantCall(ctx context.Context, tenantID, id string) (*models.Call, error) {
	var c models.Call
	err := s.db.GetContext(ctx, &c,
		`SELECT * FROM calls WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return nil, notFound(err, "call")
	}
	return &c, nil
}

// GetCallByExternalID fetches a call by the provider's id for it.
func (s *Store) GetCallByExternalID(ctx context.Context, provider models.Provider, externalID string) (*models.Call, error) {
	var c models.Call
	err := s.db.GetContext(ctx, &c,
		`SELECT * FROM calls WHERE provider = $1 AND external_id = $2`,
		provider, externalID)
	if err != nil {
		return nil, notFound(err, "call")
	}
	return &c, nil
}

// ListActiveCalls returns a tenant's calls that have not reached a terminal
// status, newest first.
func (s *Store) ListActiveCalls(ctx context.Context, tenantID string) ([]models.Call, error) {
	var calls []models.Call
	err := s.db.SelectContext(ctx, &calls, `
		SELECT * FROM calls
		WHERE tenant_id = $1 AND status IN ('queued', 'in_progress')
		ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active calls: %w", err)
	}
	return calls, nil
}

// InsertCall records a call the dispatcher just placed. If a webhook beat us
// to the row, attribution and metadata are merged without touching the
// lifecycle fields the webhook already set.
func (s *Store) InsertCall(ctx context.Context, c *models.Call) (*models.Call, error) {
	var out models.Call
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO calls (tenant_id, sub_tenant_id, agent_id, provider, external_id,
			direction, status, from_number, to_number, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (provider, external_id) DO UPDATE SET
			sub_tenant_id = COALESCE(calls.sub_tenant_id, EXCLUDED.sub_tenant_id),
			agent_id = COALESCE(calls.agent_id, EXCLUDED.agent_id),
			metadata = calls.metadata || EXCLUDED.metadata,
			updated_at = now()
		RETURNING *`,
		c.TenantID, c.SubTenantID, c.AgentID, c.Provider, c.ExternalID,
		c.Direction, c.Status, c.FromNumber, c.ToNumber, c.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to insert call: %w", err)
	}
	return &out, nil
}

// UpsertCallFromEvent applies a provider lifecycle event to the call row,
// creating it if the event arrived before we recorded the call. Terminal
// rows are never modified: late started/updated events and duplicate
// terminal deliveries leave the row untouched. Returns the current row and
// whether the event was applied.
func (s *Store) UpsertCallFromEvent(ctx context.Context, c *models.Call) (*models.Call, bool, error) {
	var out models.Call
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO calls (tenant_id, sub_tenant_id, agent_id, provider, external_id,
			direction, status, from_number, to_number, started_at, ended_at,
			duration_seconds, cost_cents, ended_reason, voicemail, transcript, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (provider, external_id) DO UPDATE SET
			status = CASE
				WHEN calls.status = 'in_progress' AND EXCLUDED.status = 'queued'
					THEN calls.status
				ELSE EXCLUDED.status
			END,
			started_at = COALESCE(calls.started_at, EXCLUDED.started_at),
			ended_at = COALESCE(EXCLUDED.ended_at, calls.ended_at),
			duration_seconds = GREATEST(calls.duration_seconds, EXCLUDED.duration_seconds),
			cost_cents = GREATEST(calls.cost_cents, EXCLUDED.cost_cents),
			ended_reason = COALESCE(EXCLUDED.ended_reason, calls.ended_reason),
			voicemail = calls.voicemail OR EXCLUDED.voicemail,
			transcript = COALESCE(EXCLUDED.transcript, calls.transcript),
			metadata = calls.metadata || EXCLUDED.metadata,
			updated_at = now()
		WHERE calls.status NOT IN ('completed', 'failed')
		RETURNING *`,
		c.TenantID, c.SubTenantID, c.AgentID, c.Provider, c.ExternalID,
		c.Direction, c.Status, c.FromNumber, c.ToNumber, c.StartedAt, c.EndedAt,
		c.DurationSeconds, c.CostCents, c.EndedReason, c.Voicemail, c.Transcript, c.Metadata)
	if errors.Is(err, sql.ErrNoRows) {
		existing, gerr := s.GetCallByExternalID(ctx, c.Provider, c.ExternalID)
		if gerr != nil {
			return nil, false, gerr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to apply call event: %w", err)
	}
	return &out, true, nil
}

// UpdateCallAnalysis stores AI analysis results on a call. Analysis lands
// after the call is terminal, so this bypasses the lifecycle guard.
func (s *Store) UpdateCallAnalysis(ctx context.Context, id string, res models.AnalysisResult) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE calls SET sentiment = $2, summary = $3, topics = $4, score = $5, updated_at = now()
		WHERE id = $1`,
		id, res.Sentiment, res.Summary, models.StringList(res.Topics), res.Score)
	if err != nil {
		return fmt.Errorf("failed to update call analysis: %w", err)
	}
	return nil
}

// UpdateCallTranscript stores transcript and summary delivered after the
// call ended (provider post-call analysis events). Nil fields keep the
// current value.
func (s *Store) UpdateCallTranscript(ctx context.Context, id string, transcript, summary *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE calls SET
			transcript = COALESCE($2, transcript),
			summary = COALESCE($3, summary),
			updated_at = now()
		WHERE id = $1`,
		id, transcript, summary)
	if err != nil {
		return fmt.Errorf("failed to update call transcript: %w", err)
	}
	return nil
}
