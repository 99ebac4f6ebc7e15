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

type dispatchStore interface {
	GetRunningExperimentForAgent(ctx context.Context, agentID string) (*models.Experiment, error)
	InsertCall(ctx context.Context, c *models.Call) (*models.Call, error)
}

// DispatchRequest is one resolved outbound call: agent, destination, and the
// correlation fields stamped into call metadata. The phone numbers are
// already E.164.
type DispatchRequest struct {
	TenantID    string
	SubTenantID *string
	Agent       *models.Agent
	To          string
	From        string
	ContactID   string
	ContactName string

	// LeadTimezone is the zone resolved for the destination, empty when the
	// number has no zone.
	LeadTimezone string
	Source       models.TriggerSource

	// ScheduledCallID carries the queue row id when the scheduler dispatches;
	// empty for immediate trigger dispatch. It anchors variant selection so
	// retries of the same job pick the same variant.
	ScheduledCallID string
	ScheduledAt     *time.Time

	Metadata map[string]any
}

// Dispatcher places outbound calls: key resolution, variant selection, the
// provider initiate call, and the canonical call row. Trigger ingress and
// the scheduler both dispatch through here.
type Dispatcher struct {
	store    dispatchStore
	registry *provider.Registry
	keys     *KeyResolver
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(st dispatchStore, registry *provider.Registry, keys *KeyResolver) *Dispatcher {
	return &Dispatcher{store: st, registry: registry, keys: keys}
}

// Dispatch places the call and records it. The returned call is the stored
// row, which carries the provider's external id in ExternalID.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (*models.Call, error) {
	agent := req.Agent
	adapter, err := d.registry.Get(agent.Provider)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", agent.ID, err)
	}

	key, keySource, err := d.keys.Resolve(ctx, req.TenantID, req.SubTenantID, agent.Provider)
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{
		"trigger_source": string(req.Source),
	}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	if req.LeadTimezone != "" {
		metadata["lead_timezone"] = req.LeadTimezone
	}
	if req.ContactID != "" {
		metadata["contact_id"] = req.ContactID
	}
	if req.ContactName != "" {
		metadata["contact_name"] = req.ContactName
	}
	if req.ScheduledCallID != "" {
		metadata["scheduled_call_id"] = req.ScheduledCallID
	}

	promptOverride := ""
	exp, err := d.store.GetRunningExperimentForAgent(ctx, agent.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load running experiment: %w", err)
	}
	if exp != nil {
		identity := VariantIdentity(req.ScheduledCallID, req.To, req.ScheduledAt)
		if v := PickVariant(exp, identity); v != nil {
			metadata["experiment_id"] = exp.ID
			metadata["variant_id"] = v.ID
			if v.PromptOverride != nil {
				promptOverride = *v.PromptOverride
			}
		}
	}

	res, err := adapter.Initiate(ctx, key, provider.InitiateRequest{
		AgentExternalID: agent.ExternalID,
		To:              req.To,
		From:            req.From,
		Metadata:        metadata,
		PromptOverride:  promptOverride,
	})
	if err != nil {
		return nil, upstreamFromProvider(agent.Provider, err)
	}

	from := nilIfEmpty(req.From)
	call, err := d.store.InsertCall(ctx, &models.Call{
		TenantID:    req.TenantID,
		SubTenantID: req.SubTenantID,
		AgentID:     &agent.ID,
		Provider:    agent.Provider,
		ExternalID:  res.ExternalCallID,
		Direction:   models.DirectionOutbound,
		Status:      models.CallQueued,
		FromNumber:  from,
		ToNumber:    &req.To,
		Metadata:    metadata,
	})
	if err != nil {
		// The provider accepted the call; the webhook upsert will recreate
		// the row, losing only our attribution metadata.
		slog.Error("Failed to record dispatched call", "external_call_id", res.ExternalCallID, "error", err)
		return nil, fmt.Errorf("failed to record dispatched call: %w", err)
	}

	slog.Info("Outbound call dispatched",
		"tenant_id", req.TenantID,
		"agent_id", agent.ID,
		"provider", agent.Provider,
		"external_call_id", res.ExternalCallID,
		"key_source", keySource,
		"trigger_source", req.Source)
	return call, nil
}

// upstreamFromProvider converts a provider adapter failure into the service
// error vocabulary so handlers can map it to a status code.
func upstreamFromProvider(p models.Provider, err error) error {
	var pe *provider.Error
	if errors.As(err, &pe) {
		return &UpstreamError{
			System:     "provider_" + string(p),
			StatusCode: pe.StatusCode,
			Message:    pe.Message,
			Transient:  pe.Transient,
		}
	}
	return &UpstreamError{System: "provider_" + string(p), Message: err.Error(), Transient: true}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
