package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/provider"
	"github.com/paradyne-ai/callcore/pkg/store"
)

// defaultWidgetColor is the embeddable widget's primary color when the
// agent's widget config does not set one.
const defaultWidgetColor = "#0f172a"

type widgetStore interface {
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
}

// WidgetSession is the browser voice session grant returned to the embed
// script: the provider session plus the display config.
type WidgetSession struct {
	Session   *provider.WebSession `json:"session"`
	AgentName string               `json:"agent_name"`
	Provider  models.Provider      `json:"provider"`
	Config    models.JSONMap       `json:"config"`
}

// WidgetService opens short-lived provider web sessions for widget-enabled
// agents. The endpoint is public; the agent id is the capability, and
// agents without the widget flag read as missing.
type WidgetService struct {
	store    widgetStore
	registry *provider.Registry
	keys     *KeyResolver
}

// NewWidgetService wires a WidgetService.
func NewWidgetService(st widgetStore, registry *provider.Registry, keys *KeyResolver) *WidgetService {
	return &WidgetService{store: st, registry: registry, keys: keys}
}

// CreateSession opens a web voice session for the agent and returns it with
// the widget display config, primary color defaulted.
func (s *WidgetService) CreateSession(ctx context.Context, agentID string) (*WidgetSession, error) {
	agent, err := s.store.GetAgent(ctx, agentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}
	if !agent.WidgetEnabled {
		// Indistinguishable from a missing agent on purpose.
		return nil, fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
	}

	adapter, err := s.registry.Get(agent.Provider)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", agentID, err)
	}
	key, _, err := s.keys.Resolve(ctx, agent.TenantID, agent.SubTenantID, agent.Provider)
	if err != nil {
		return nil, err
	}

	sess, err := adapter.CreateWebSession(ctx, key, agent.ExternalID)
	if errors.Is(err, provider.ErrWebSessionUnsupported) {
		return nil, NewValidationError("provider", fmt.Sprintf("provider %s does not support web sessions", agent.Provider))
	}
	if err != nil {
		return nil, upstreamFromProvider(agent.Provider, err)
	}

	cfg := models.JSONMap{}
	for k, v := range agent.WidgetConfig {
		cfg[k] = v
	}
	if _, ok := cfg["primary_color"]; !ok {
		cfg["primary_color"] = defaultWidgetColor
	}

	slog.Info("Widget session created", "agent_id", agent.ID, "provider", agent.Provider)
	return &WidgetSession{
		Session:   sess,
		AgentName: agent.Name,
		Provider:  agent.Provider,
		Config:    cfg,
	}, nil
}
