package provider

import (
	"fmt"
	"net/http"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// Config carries per-vendor base URL overrides and a shared HTTP client.
// Zero values select production endpoints and a default client.
type Config struct {
	BaseURLA   string
	BaseURLB   string
	BaseURLC   string
	HTTPClient *http.Client
}

// Registry resolves adapters by provider name. Adapters are stateless with
// respect to tenants, so one registry serves the whole process.
type Registry struct {
	adapters map[models.Provider]Adapter
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		adapters: map[models.Provider]Adapter{
			models.ProviderA: NewAdapterA(cfg.BaseURLA, cfg.HTTPClient),
			models.ProviderB: NewAdapterB(cfg.BaseURLB, cfg.HTTPClient),
			models.ProviderC: NewAdapterC(cfg.BaseURLC, cfg.HTTPClient),
		},
	}
}

// Get returns the adapter for p or ErrUnknownProvider.
func (r *Registry) Get(p models.Provider) (Adapter, error) {
	adapter, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	return adapter, nil
}
