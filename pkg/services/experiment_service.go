package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/store"
)

type experimentStore interface {
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	GetRunningExperimentForAgent(ctx context.Context, agentID string) (*models.Experiment, error)
	CreateExperiment(ctx context.Context, exp *models.Experiment) (*models.Experiment, error)
	UpdateExperimentStatus(ctx context.Context, id string, status models.ExperimentStatus) error
}

// ExperimentService manages per-agent A/B experiments. Structural rules are
// enforced here: variant weights sum to 100 with exactly one control, and at
// most one experiment per agent may be running.
type ExperimentService struct {
	store experimentStore
}

// NewExperimentService creates an ExperimentService.
func NewExperimentService(st experimentStore) *ExperimentService {
	return &ExperimentService{store: st}
}

// Create validates and stores an experiment with its variants. Empty status
// defaults to draft.
func (s *ExperimentService) Create(ctx context.Context, exp *models.Experiment) (*models.Experiment, error) {
	if exp.TenantID == "" {
		return nil, NewValidationError("tenant_id", "required")
	}
	if exp.AgentID == "" {
		return nil, NewValidationError("agent_id", "required")
	}
	if exp.Name == "" {
		return nil, NewValidationError("name", "required")
	}
	if exp.Status == "" {
		exp.Status = models.ExperimentDraft
	}
	if !exp.Status.Valid() {
		return nil, NewValidationError("status", fmt.Sprintf("unknown status %q", exp.Status))
	}
	if err := validateVariants(exp.Variants); err != nil {
		return nil, err
	}

	agent, err := s.store.GetAgent(ctx, exp.AgentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("agent %s: %w", exp.AgentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}
	if agent.TenantID != exp.TenantID {
		return nil, fmt.Errorf("agent %s: %w", exp.AgentID, ErrNotFound)
	}

	created, err := s.store.CreateExperiment(ctx, exp)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, fmt.Errorf("agent %s already has a running experiment: %w", exp.AgentID, ErrAlreadyExists)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create experiment: %w", err)
	}
	return created, nil
}

// SetStatus transitions an experiment. Promoting a second experiment to
// running for the same agent fails with ErrAlreadyExists.
func (s *ExperimentService) SetStatus(ctx context.Context, id string, status models.ExperimentStatus) error {
	if !status.Valid() {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	err := s.store.UpdateExperimentStatus(ctx, id, status)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("another experiment is already running for this agent: %w", ErrAlreadyExists)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("experiment %s: %w", id, ErrNotFound)
	case err != nil:
		return fmt.Errorf("failed to update experiment status: %w", err)
	}
	return nil
}

func validateVariants(variants []models.Variant) error {
	if len(variants) < 2 {
		return NewValidationError("variants", "at least two variants required")
	}
	sum := 0
	controls := 0
	for _, v := range variants {
		if v.Name == "" {
			return NewValidationError("variants", "variant name required")
		}
		if v.Weight <= 0 || v.Weight > 100 {
			return NewValidationError("variants", fmt.Sprintf("variant %q weight must be in 1..100", v.Name))
		}
		sum += v.Weight
		if v.IsControl {
			controls++
		}
	}
	if sum != 100 {
		return NewValidationError("variants", fmt.Sprintf("weights must sum to 100, got %d", sum))
	}
	if controls != 1 {
		return NewValidationError("variants", fmt.Sprintf("exactly one control required, got %d", controls))
	}
	return nil
}

// VariantIdentity builds the stable selection identity for one logical call:
// the scheduled-call id when the call is queue-driven, otherwise the phone
// number plus the explicit schedule instant. Retries of the same logical
// call hash to the same bucket.
func VariantIdentity(scheduledCallID, phoneNumber string, scheduledAt *time.Time) string {
	if scheduledCallID != "" {
		return scheduledCallID
	}
	if scheduledAt != nil {
		return phoneNumber + "|" + scheduledAt.UTC().Format(time.RFC3339)
	}
	return phoneNumber
}

// PickVariant selects a variant by cumulative weight over an FNV-1a hash of
// the identity mod 100. Weights sum to 100, so the walk always lands;
// the final variant absorbs any rounding drift from legacy rows.
func PickVariant(exp *models.Experiment, identity string) *models.Variant {
	if exp == nil || len(exp.Variants) == 0 {
		return nil
	}
	h := fnv.New32a()
	h.Write([]byte(identity))
	bucket := int(h.Sum32() % 100)

	acc := 0
	for i := range exp.Variants {
		acc += exp.Variants[i].Weight
		if bucket < acc {
			return &exp.Variants[i]
		}
	}
	return &exp.Variants[len(exp.Variants)-1]
}
