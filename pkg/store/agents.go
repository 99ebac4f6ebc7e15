package store

import (
	"context"
	"fmt"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// GetAgent fetches an agent by id.
func (s *Store) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	var a models.Agent
	err := s.db.GetContext(ctx, &a, `SELECT * FROM agents WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "agent")
	}
	return &a, nil
}

// GetAgentByExternalID resolves an agent from the id a provider knows it by.
// Webhooks identify agents this way.
func (s *Store) GetAgentByExternalID(ctx context.Context, provider models.Provider, externalID string) (*models.Agent, error) {
	var a models.Agent
	err := s.db.GetContext(ctx, &a,
		`SELECT * FROM agents WHERE provider = $1 AND external_id = $2`,
		provider, externalID)
	if err != nil {
		return nil, notFound(err, "agent")
	}
	return &a, nil
}

// ListAgentsByTenant returns a tenant's agents ordered by creation.
func (s *Store) ListAgentsByTenant(ctx context.Context, tenantID string) ([]models.Agent, error) {
	var agents []models.Agent
	err := s.db.SelectContext(ctx, &agents,
		`SELECT * FROM agents WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, nil
}

// CreateAgent inserts an agent. Used by provisioning and tests.
func (s *Store) CreateAgent(ctx context.Context, a *models.Agent) (*models.Agent, error) {
	var out models.Agent
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO agents (tenant_id, sub_tenant_id, name, provider, external_id,
			config, widget_enabled, widget_config)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *`,
		a.TenantID, a.SubTenantID, a.Name, a.Provider, a.ExternalID,
		a.Config, a.WidgetEnabled, a.WidgetConfig)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("agent %s/%s: %w", a.Provider, a.ExternalID, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return &out, nil
}
