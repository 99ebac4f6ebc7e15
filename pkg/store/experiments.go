package store

import (
	"context"
	"fmt"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// GetRunningExperimentForAgent returns the agent's running experiment with
// its variants in position order, or ErrNotFound when none is running.
func (s *Store) GetRunningExperimentForAgent(ctx context.Context, agentID string) (*models.Experiment, error) {
	var exp models.Experiment
	err := s.db.GetContext(ctx, &exp, `
		SELECT * FROM experiments
		WHERE agent_id = $1 AND status = 'running'`, agentID)
	if err != nil {
		return nil, notFound(err, "experiment")
	}
	if err := s.db.SelectContext(ctx, &exp.Variants, `
		SELECT * FROM experiment_variants
		WHERE experiment_id = $1
		ORDER BY position`, exp.ID); err != nil {
		return nil, fmt.Errorf("failed to list experiment variants: %w", err)
	}
	return &exp, nil
}

// CreateExperiment inserts an experiment and its variants atomically.
// Variant structural rules (weights, control) are enforced by the caller.
func (s *Store) CreateExperiment(ctx context.Context, exp *models.Experiment) (*models.Experiment, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var out models.Experiment
	err = tx.GetContext(ctx, &out, `
		INSERT INTO experiments (tenant_id, agent_id, name, status)
		VALUES ($1, $2, $3, $4)
		RETURNING *`,
		exp.TenantID, exp.AgentID, exp.Name, exp.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("running experiment for agent %s: %w", exp.AgentID, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create experiment: %w", err)
	}

	for i, v := range exp.Variants {
		var created models.Variant
		err = tx.GetContext(ctx, &created, `
			INSERT INTO experiment_variants (experiment_id, position, name, weight, is_control, prompt_override)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING *`,
			out.ID, i, v.Name, v.Weight, v.IsControl, v.PromptOverride)
		if err != nil {
			return nil, fmt.Errorf("failed to create experiment variant: %w", err)
		}
		out.Variants = append(out.Variants, created)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit experiment: %w", err)
	}
	return &out, nil
}

// UpdateExperimentStatus transitions an experiment's status. Promoting a
// second experiment to running for the same agent violates the partial
// unique index and returns ErrDuplicate.
func (s *Store) UpdateExperimentStatus(ctx context.Context, id string, status models.ExperimentStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE experiments SET status = $2, updated_at = now()
		WHERE id = $1`, id, status)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("running experiment: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to update experiment status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("experiment: %w", ErrNotFound)
	}
	return nil
}
