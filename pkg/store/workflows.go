package store

import (
	"context"
	"fmt"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// ListWorkflowsForTrigger returns enabled workflows matching a trigger for a
// tenant, scoped to the agent or tenant-wide (NULL agent_id), in creation
// order.
func (s *Store) ListWorkflowsForTrigger(ctx context.Context, tenantID string, agentID *string, trigger models.WorkflowTrigger) ([]models.Workflow, error) {
	var wfs []models.Workflow
	err := s.db.SelectContext(ctx, &wfs, `
		SELECT * FROM workflows
		WHERE tenant_id = $1 AND enabled AND trigger = $2
			AND (agent_id IS NULL OR agent_id = $3)
		ORDER BY created_at`, tenantID, trigger, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	return wfs, nil
}

// CreateWorkflow inserts a workflow. Used by provisioning and tests.
func (s *Store) CreateWorkflow(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	var out models.Workflow
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO workflows (tenant_id, agent_id, name, enabled, trigger, conditions, actions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *`,
		wf.TenantID, wf.AgentID, wf.Name, wf.Enabled, wf.Trigger, wf.Conditions, wf.Actions)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}
	return &out, nil
}

// InsertExecutionLog records the outcome of one workflow run against a call.
func (s *Store) InsertExecutionLog(ctx context.Context, el *models.ExecutionLog) (*models.ExecutionLog, error) {
	var out models.ExecutionLog
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO workflow_execution_logs (workflow_id, call_id, tenant_id, status,
			actions_total, actions_succeeded, actions_failed, actions_skipped,
			results, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING *`,
		el.WorkflowID, el.CallID, el.TenantID, el.Status,
		el.ActionsTotal, el.ActionsSucceeded, el.ActionsFailed, el.ActionsSkipped,
		el.Results, el.StartedAt, el.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert execution log: %w", err)
	}
	return &out, nil
}

// ListExecutionLogsByCall returns execution logs for a call, oldest first.
func (s *Store) ListExecutionLogsByCall(ctx context.Context, callID string) ([]models.ExecutionLog, error) {
	var logs []models.ExecutionLog
	err := s.db.SelectContext(ctx, &logs, `
		SELECT * FROM workflow_execution_logs
		WHERE call_id = $1
		ORDER BY created_at`, callID)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}
	return logs, nil
}

// DeleteExecutionLogsBefore removes execution logs older than the cutoff and
// reports how many were deleted.
func (s *Store) DeleteExecutionLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM workflow_execution_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete execution logs: %w", err)
	}
	return res.RowsAffected()
}
