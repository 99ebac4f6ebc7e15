package store

import (
	"context"
	"fmt"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// GetPhoneNumber fetches a tenant's phone number record by E.164 value.
func (s *Store) GetPhoneNumber(ctx context.Context, tenantID string, e164 string) (*models.PhoneNumber, error) {
	var p models.PhoneNumber
	err := s.db.GetContext(ctx, &p,
		`SELECT * FROM phone_numbers WHERE tenant_id = $1 AND e164 = $2`,
		tenantID, e164)
	if err != nil {
		return nil, notFound(err, "phone number")
	}
	return &p, nil
}

// GetPhoneByProviderNumber finds the owner of a provider-facing number.
// Inbound webhooks carry only the dialed number.
func (s *Store) GetPhoneByProviderNumber(ctx context.Context, provider models.Provider, e164 string) (*models.PhoneNumber, error) {
	var p models.PhoneNumber
	err := s.db.GetContext(ctx, &p,
		`SELECT * FROM phone_numbers WHERE provider = $1 AND e164 = $2 LIMIT 1`,
		provider, e164)
	if err != nil {
		return nil, notFound(err, "phone number")
	}
	return &p, nil
}

// ListPhoneNumbersByTenant returns a tenant's numbers ordered by creation.
func (s *Store) ListPhoneNumbersByTenant(ctx context.Context, tenantID string) ([]models.PhoneNumber, error) {
	var phones []models.PhoneNumber
	err := s.db.SelectContext(ctx, &phones,
		`SELECT * FROM phone_numbers WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phone numbers: %w", err)
	}
	return phones, nil
}

// CreatePhoneNumber inserts a phone number. Used by provisioning and tests.
func (s *Store) CreatePhoneNumber(ctx context.Context, p *models.PhoneNumber) (*models.PhoneNumber, error) {
	var out models.PhoneNumber
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO phone_numbers (tenant_id, sub_tenant_id, e164, provider, external_id,
			inbound_agent_id, outbound_agent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *`,
		p.TenantID, p.SubTenantID, p.E164, p.Provider, p.ExternalID,
		p.InboundAgentID, p.OutboundAgentID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("phone number %s: %w", p.E164, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create phone number: %w", err)
	}
	return &out, nil
}
