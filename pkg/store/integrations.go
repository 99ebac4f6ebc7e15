package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// GetIntegrationConfig fetches a tenant's config for one integration.
// Disabled configs are returned; callers check Enabled.
func (s *Store) GetIntegrationConfig(ctx context.Context, tenantID string, integration models.Integration) (*models.IntegrationConfig, error) {
	var ic models.IntegrationConfig
	err := s.db.GetContext(ctx, &ic, `
		SELECT * FROM integration_configs
		WHERE tenant_id = $1 AND integration = $2`, tenantID, integration)
	if err != nil {
		return nil, notFound(err, "integration config")
	}
	return &ic, nil
}

// UpsertIntegrationConfig creates or replaces a tenant's integration config.
func (s *Store) UpsertIntegrationConfig(ctx context.Context, ic *models.IntegrationConfig) (*models.IntegrationConfig, error) {
	var out models.IntegrationConfig
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO integration_configs (tenant_id, integration, enabled, config)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, integration) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			config = EXCLUDED.config,
			updated_at = now()
		RETURNING *`,
		ic.TenantID, ic.Integration, ic.Enabled, ic.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert integration config: %w", err)
	}
	return &out, nil
}

// PatchIntegrationConfig merges fields into a tenant's integration config,
// used to persist rotated OAuth tokens without clobbering other keys.
func (s *Store) PatchIntegrationConfig(ctx context.Context, tenantID string, integration models.Integration, patch map[string]any) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to marshal config patch: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE integration_configs SET config = config || $3::jsonb, updated_at = now()
		WHERE tenant_id = $1 AND integration = $2`,
		tenantID, integration, raw)
	if err != nil {
		return fmt.Errorf("failed to patch integration config: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read patch result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("integration config: %w", ErrNotFound)
	}
	return nil
}
