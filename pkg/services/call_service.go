package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/provider"
	"github.com/paradyne-ai/callcore/pkg/store"
)

type callStore interface {
	GetTenantCall(ctx context.Context, tenantID, id string) (*models.Call, error)
	ListActiveCalls(ctx context.Context, tenantID string) ([]models.Call, error)
	ListAgentsByTenant(ctx context.Context, tenantID string) ([]models.Agent, error)
}

// ActiveCall is one live call as reported by a provider or, for calls the
// provider no longer lists, by the store.
type ActiveCall struct {
	CallID          string               `json:"call_id,omitempty"`
	Provider        models.Provider      `json:"provider"`
	ExternalID      string               `json:"external_id"`
	AgentExternalID string               `json:"agent_external_id,omitempty"`
	Status          models.CallStatus    `json:"status"`
	Direction       models.CallDirection `json:"direction,omitempty"`
	FromNumber      string               `json:"from_number,omitempty"`
	ToNumber        string               `json:"to_number,omitempty"`
	StartedAt       *time.Time           `json:"started_at,omitempty"`
	DurationSeconds int                  `json:"duration_seconds,omitempty"`
	Source          string               `json:"source"` // "provider" or "store"
}

// CallService serves call control and live views: ending calls, listing a
// tenant's active calls across providers, and the synthesized live view.
type CallService struct {
	store    callStore
	registry *provider.Registry
	keys     *KeyResolver
}

// NewCallService wires a CallService.
func NewCallService(st callStore, registry *provider.Registry, keys *KeyResolver) *CallService {
	return &CallService{store: st, registry: registry, keys: keys}
}

// EndCall hangs up a live call. The provider defaults to the one that owns
// the call; the row itself is updated by the provider's ended webhook, not
// here.
func (s *CallService) EndCall(ctx context.Context, tenantID, callID string, p models.Provider) error {
	call, err := s.getCall(ctx, tenantID, callID)
	if err != nil {
		return err
	}
	if call.Status.Terminal() {
		return fmt.Errorf("call %s is already %s: %w", callID, call.Status, ErrInvalidInput)
	}

	if p == "" {
		p = call.Provider
	}
	if !p.Valid() {
		return NewValidationError("provider", fmt.Sprintf("unknown provider %q", p))
	}
	adapter, err := s.registry.Get(p)
	if err != nil {
		return NewValidationError("provider", fmt.Sprintf("unknown provider %q", p))
	}

	key, _, err := s.keys.Resolve(ctx, tenantID, call.SubTenantID, p)
	if err != nil {
		return err
	}
	if err := adapter.End(ctx, key, call.ExternalID); err != nil {
		return upstreamFromProvider(p, err)
	}

	slog.Info("Call end requested", "tenant_id", tenantID, "call_id", callID, "provider", p)
	return nil
}

// ActiveCalls lists the tenant's ongoing calls. Providers with a configured
// key are queried live for the tenant's agents; stored active rows the
// providers did not report are appended so a provider outage never hides a
// call we know about.
func (s *CallService) ActiveCalls(ctx context.Context, tenantID string) ([]ActiveCall, error) {
	agents, err := s.store.ListAgentsByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	agentIDs := map[models.Provider][]string{}
	for _, a := range agents {
		agentIDs[a.Provider] = append(agentIDs[a.Provider], a.ExternalID)
	}

	stored, err := s.store.ListActiveCalls(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	storedByExternal := make(map[string]*models.Call, len(stored))
	for i := range stored {
		storedByExternal[string(stored[i].Provider)+"/"+stored[i].ExternalID] = &stored[i]
	}

	var out []ActiveCall
	reported := map[string]bool{}
	for _, p := range []models.Provider{models.ProviderA, models.ProviderB, models.ProviderC} {
		ids := agentIDs[p]
		if len(ids) == 0 {
			continue
		}
		key, _, err := s.keys.Resolve(ctx, tenantID, nil, p)
		if errors.Is(err, ErrNotConfigured) {
			continue
		}
		if err != nil {
			return nil, err
		}
		adapter, err := s.registry.Get(p)
		if err != nil {
			continue
		}

		snaps, err := adapter.ListActiveCalls(ctx, key, ids)
		if err != nil {
			slog.Warn("Failed to list active calls from provider",
				"tenant_id", tenantID, "provider", p, "error", err)
			continue
		}
		for _, snap := range snaps {
			ac := ActiveCall{
				Provider:        p,
				ExternalID:      snap.ExternalID,
				AgentExternalID: snap.AgentExternalID,
				Status:          snap.Status,
				Direction:       snap.Direction,
				FromNumber:      snap.From,
				ToNumber:        snap.To,
				StartedAt:       snap.StartedAt,
				DurationSeconds: snap.DurationSeconds,
				Source:          "provider",
			}
			lookup := string(p) + "/" + snap.ExternalID
			if row := storedByExternal[lookup]; row != nil {
				ac.CallID = row.ID
			}
			reported[lookup] = true
			out = append(out, ac)
		}
	}

	for i := range stored {
		row := &stored[i]
		if reported[string(row.Provider)+"/"+row.ExternalID] {
			continue
		}
		out = append(out, ActiveCall{
			CallID:          row.ID,
			Provider:        row.Provider,
			ExternalID:      row.ExternalID,
			Status:          row.Status,
			Direction:       row.Direction,
			FromNumber:      strValue(row.FromNumber),
			ToNumber:        strValue(row.ToNumber),
			StartedAt:       row.StartedAt,
			DurationSeconds: row.DurationSeconds,
			Source:          "store",
		})
	}
	return out, nil
}

// LiveCall synthesizes the current view of one call, preferring stored state
// and refreshing non-terminal rows from the provider. Provider failures
// degrade to the stored row.
func (s *CallService) LiveCall(ctx context.Context, tenantID, callID string, p models.Provider) (*models.Call, error) {
	call, err := s.getCall(ctx, tenantID, callID)
	if err != nil {
		return nil, err
	}
	if call.Status.Terminal() {
		return call, nil
	}

	if p == "" {
		p = call.Provider
	}
	adapter, err := s.registry.Get(p)
	if err != nil {
		return call, nil
	}
	key, _, err := s.keys.Resolve(ctx, tenantID, call.SubTenantID, p)
	if err != nil {
		slog.Debug("Live view served from store, no provider key", "call_id", callID, "provider", p)
		return call, nil
	}

	snap, err := adapter.FetchCall(ctx, key, call.ExternalID)
	if err != nil {
		slog.Warn("Live view served from store, provider fetch failed",
			"call_id", callID, "provider", p, "error", err)
		return call, nil
	}

	// The snapshot only advances what the store has not seen yet; it never
	// walks a call backwards.
	if !(call.Status == models.CallInProgress && snap.Status == models.CallQueued) {
		call.Status = snap.Status
	}
	if snap.DurationSeconds > call.DurationSeconds {
		call.DurationSeconds = snap.DurationSeconds
	}
	if snap.CostCents > call.CostCents {
		call.CostCents = snap.CostCents
	}
	if call.StartedAt == nil {
		call.StartedAt = snap.StartedAt
	}
	if call.EndedAt == nil {
		call.EndedAt = snap.EndedAt
	}
	if call.Transcript == nil {
		call.Transcript = capTranscript(snap.Transcript)
	}
	if call.Summary == nil {
		call.Summary = snap.Summary
	}
	return call, nil
}

func (s *CallService) getCall(ctx context.Context, tenantID, callID string) (*models.Call, error) {
	call, err := s.store.GetTenantCall(ctx, tenantID, callID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("call %s: %w", callID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load call: %w", err)
	}
	return call, nil
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
