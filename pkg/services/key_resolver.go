package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/store"
)

// KeySource tags which account level supplied a resolved provider key.
type KeySource string

// Key sources.
const (
	KeySourceSubTenant KeySource = "subtenant"
	KeySourceTenant    KeySource = "tenant"
)

type keyResolverStore interface {
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	GetSubTenant(ctx context.Context, id string) (*models.SubTenant, error)
}

// KeyResolver picks the provider API key for one call: the sub-tenant
// override when present, otherwise the tenant key. It reads the store on
// every resolution so key rotations take effect immediately; callers must
// not cache results across requests.
type KeyResolver struct {
	store keyResolverStore
}

// NewKeyResolver creates a KeyResolver over the given store.
func NewKeyResolver(st keyResolverStore) *KeyResolver {
	return &KeyResolver{store: st}
}

// Resolve returns the API key for (tenant, subTenant, provider) and the
// level it came from. A sub-tenant that belongs to a different tenant is an
// authorization failure, never a fallback. Missing keys at both levels
// return ErrNotConfigured.
func (r *KeyResolver) Resolve(ctx context.Context, tenantID string, subTenantID *string, p models.Provider) (string, KeySource, error) {
	if !p.Valid() {
		return "", "", NewValidationError("provider", fmt.Sprintf("unknown provider %q", p))
	}

	if subTenantID != nil && *subTenantID != "" {
		st, err := r.store.GetSubTenant(ctx, *subTenantID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Dangling reference: no override, fall through to the tenant key.
		case err != nil:
			return "", "", fmt.Errorf("failed to load sub-tenant: %w", err)
		case st.TenantID != tenantID:
			return "", "", NewAuthorizationError("sub-tenant does not belong to tenant")
		default:
			if key := st.ProviderKey(p); key != nil && *key != "" {
				return *key, KeySourceSubTenant, nil
			}
		}
	}

	t, err := r.store.GetTenant(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return "", "", fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to load tenant: %w", err)
	}
	if key := t.ProviderKey(p); key != nil && *key != "" {
		return *key, KeySourceTenant, nil
	}
	return "", "", fmt.Errorf("provider %s key for tenant %s: %w", p, tenantID, ErrNotConfigured)
}
