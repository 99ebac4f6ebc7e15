package store

import (
	"context"
	"fmt"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// GetTenant fetches a tenant by id.
func (s *Store) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.GetContext(ctx, &t, `SELECT * FROM tenants WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "tenant")
	}
	return &t, nil
}

// GetTenantByPartnerKey resolves a tenant from its partner API key. Keys are
// matched exactly; callers must not pass an empty key.
func (s *Store) GetTenantByPartnerKey(ctx context.Context, key string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.GetContext(ctx, &t, `SELECT * FROM tenants WHERE partner_api_key = $1`, key)
	if err != nil {
		return nil, notFound(err, "tenant")
	}
	return &t, nil
}

// GetTenantByIntegrationAccount resolves the tenant whose integration config
// carries the given account identifier, e.g. crm_a/location_id or
// crm_b/portal_id arriving on trigger webhooks.
func (s *Store) GetTenantByIntegrationAccount(ctx context.Context, integration models.Integration, configKey, value string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.GetContext(ctx, &t, `
		SELECT t.* FROM tenants t
		JOIN integration_configs ic ON ic.tenant_id = t.id
		WHERE ic.integration = $1 AND ic.enabled AND ic.config ->> $2 = $3`,
		integration, configKey, value)
	if err != nil {
		return nil, notFound(err, "tenant")
	}
	return &t, nil
}

// GetSubTenant fetches a sub-tenant by id.
func (s *Store) GetSubTenant(ctx context.Context, id string) (*models.SubTenant, error) {
	var st models.SubTenant
	err := s.db.GetContext(ctx, &st, `SELECT * FROM sub_tenants WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "sub-tenant")
	}
	return &st, nil
}

// CreateTenant inserts a tenant. Used by provisioning and tests.
func (s *Store) CreateTenant(ctx context.Context, t *models.Tenant) (*models.Tenant, error) {
	var out models.Tenant
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO tenants (name, partner_api_key, provider_a_key, provider_b_key, provider_c_key,
			window_enabled, window_start_hour, window_end_hour, window_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING *`,
		t.Name, t.PartnerAPIKey, t.ProviderAKey, t.ProviderBKey, t.ProviderCKey,
		t.WindowEnabled, t.WindowStartHour, t.WindowEndHour, t.WindowDays)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("tenant: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	return &out, nil
}

// CreateSubTenant inserts a sub-tenant. Used by provisioning and tests.
func (s *Store) CreateSubTenant(ctx context.Context, st *models.SubTenant) (*models.SubTenant, error) {
	var out models.SubTenant
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO sub_tenants (tenant_id, name, provider_a_key, provider_b_key, provider_c_key,
			billing_type, per_minute_rate_cents, ai_analysis_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *`,
		st.TenantID, st.Name, st.ProviderAKey, st.ProviderBKey, st.ProviderCKey,
		st.BillingType, st.PerMinuteRateCents, st.AIAnalysisEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to create sub-tenant: %w", err)
	}
	return &out, nil
}
