package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// tenantLevelSubTenant is the sub_tenant_id sentinel for tenant-level usage
// rows; the primary key covers both scopes with one column.
var tenantLevelSubTenant = uuid.Nil.String()

// AddUsage accumulates one completed call into the monthly counter,
// atomically. subTenantID nil accumulates at tenant level.
func (s *Store) AddUsage(ctx context.Context, tenantID string, subTenantID *string, period string, seconds, amountCents int64) error {
	sub := tenantLevelSubTenant
	if subTenantID != nil {
		sub = *subTenantID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_counters (tenant_id, sub_tenant_id, period, seconds, amount_cents, calls)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (tenant_id, sub_tenant_id, period) DO UPDATE SET
			seconds = usage_counters.seconds + EXCLUDED.seconds,
			amount_cents = usage_counters.amount_cents + EXCLUDED.amount_cents,
			calls = usage_counters.calls + 1,
			updated_at = now()`,
		tenantID, sub, period, seconds, amountCents)
	if err != nil {
		return fmt.Errorf("failed to add usage: %w", err)
	}
	return nil
}

// GetUsage fetches one period's counter. subTenantID nil reads the
// tenant-level row.
func (s *Store) GetUsage(ctx context.Context, tenantID string, subTenantID *string, period string) (*models.UsageCounter, error) {
	sub := tenantLevelSubTenant
	if subTenantID != nil {
		sub = *subTenantID
	}
	var uc models.UsageCounter
	err := s.db.GetContext(ctx, &uc, `
		SELECT * FROM usage_counters
		WHERE tenant_id = $1 AND sub_tenant_id = $2 AND period = $3`,
		tenantID, sub, period)
	if err != nil {
		return nil, notFound(err, "usage counter")
	}
	return &uc, nil
}
