package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/paradyne-ai/callcore/pkg/events"
	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/provider"
	"github.com/paradyne-ai/callcore/pkg/store"
	"github.com/paradyne-ai/callcore/pkg/tasks"
	"github.com/paradyne-ai/callcore/pkg/workflow"
)

type webhookStore interface {
	GetAgentByExternalID(ctx context.Context, p models.Provider, externalID string) (*models.Agent, error)
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	GetSubTenant(ctx context.Context, id string) (*models.SubTenant, error)
	GetCallByExternalID(ctx context.Context, p models.Provider, externalID string) (*models.Call, error)
	UpsertCallFromEvent(ctx context.Context, c *models.Call) (*models.Call, bool, error)
	UpdateCallTranscript(ctx context.Context, id string, transcript, summary *string) error
	UpdateCallAnalysis(ctx context.Context, id string, res models.AnalysisResult) error
	ListWorkflowsForTrigger(ctx context.Context, tenantID string, agentID *string, trigger models.WorkflowTrigger) ([]models.Workflow, error)
}

// CallAnalyzer derives sentiment, summary, topics and a score from a call
// transcript. Nil disables the analysis path.
type CallAnalyzer interface {
	AnalyzeCall(ctx context.Context, call *models.Call) (*models.AnalysisResult, error)
}

// WebhookSecrets carries the deployment-wide webhook signing secrets.
// Provider A signs with the tenant's API key instead and has no entry here.
type WebhookSecrets struct {
	ProviderB string
	ProviderC string
}

// WebhookService ingests provider callbacks: signature verification, event
// normalization, the call upsert, and the post-ack fan-out (broadcast,
// usage, AI analysis, workflows) on the background pool.
type WebhookService struct {
	store    webhookStore
	registry *provider.Registry
	pool     *tasks.Pool
	sink     events.EventSink
	executor *workflow.Executor
	analyzer CallAnalyzer
	usage    *UsageService
	secrets  WebhookSecrets
}

// NewWebhookService wires a WebhookService. analyzer may be nil when AI
// analysis is disabled.
func NewWebhookService(st webhookStore, registry *provider.Registry, pool *tasks.Pool, sink events.EventSink, executor *workflow.Executor, analyzer CallAnalyzer, usage *UsageService, secrets WebhookSecrets) *WebhookService {
	return &WebhookService{
		store:    st,
		registry: registry,
		pool:     pool,
		sink:     sink,
		executor: executor,
		analyzer: analyzer,
		usage:    usage,
		secrets:  secrets,
	}
}

// HandleEvent processes one provider webhook delivery. Authentication
// failures return an AuthenticationError; every other outcome (including
// unknown agents and ignored event kinds) is acked by the handler, so
// non-auth errors are for logging only.
func (s *WebhookService) HandleEvent(ctx context.Context, p models.Provider, r *http.Request, body []byte) error {
	adapter, err := s.registry.Get(p)
	if err != nil {
		return fmt.Errorf("webhook for unknown provider %q: %w", p, ErrNotFound)
	}

	ev, agent, err := s.authenticate(ctx, adapter, p, r, body)
	if err != nil || ev == nil {
		return err
	}

	switch ev.Kind {
	case provider.KindUnknown:
		slog.Debug("Ignoring webhook event", "provider", p)
		return nil
	case provider.KindAnalyzed:
		return s.handleAnalyzed(ctx, p, agent, ev)
	default:
		return s.handleLifecycle(ctx, agent, ev)
	}
}

// authenticate verifies the delivery and resolves the agent it concerns.
// Provider A signs with the tenant's API key, so the (unverified) body is
// parsed first to find the tenant; the payload is not trusted until the MAC
// checks out. Providers B and C use deployment-wide secrets and verify
// before parsing. A nil event with nil error means "acked and dropped"
// (unknown agent).
func (s *WebhookService) authenticate(ctx context.Context, adapter provider.Adapter, p models.Provider, r *http.Request, body []byte) (*provider.NormalizedEvent, *models.Agent, error) {
	if p != models.ProviderA {
		secret := s.secrets.ProviderB
		if p == models.ProviderC {
			secret = s.secrets.ProviderC
		}
		if err := adapter.VerifyWebhook(r, body, secret); err != nil {
			return nil, nil, NewAuthenticationError("signature verification failed")
		}
	}

	ev, err := adapter.ParseWebhook(body)
	if err != nil {
		if p == models.ProviderA {
			// Unparseable bodies cannot be verified either.
			return nil, nil, NewAuthenticationError("signature verification failed")
		}
		return nil, nil, fmt.Errorf("failed to parse webhook: %w", err)
	}
	if ev.Kind == provider.KindUnknown {
		return ev, nil, nil
	}

	agent, err := s.store.GetAgentByExternalID(ctx, p, ev.Call.AgentExternalID)
	if errors.Is(err, store.ErrNotFound) {
		slog.Warn("Webhook for unknown agent, dropping",
			"provider", p, "agent_external_id", ev.Call.AgentExternalID)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve agent: %w", err)
	}

	if p == models.ProviderA {
		tenant, err := s.store.GetTenant(ctx, agent.TenantID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load tenant: %w", err)
		}
		secret := ""
		if tenant.ProviderAKey != nil {
			secret = *tenant.ProviderAKey
		}
		if err := adapter.VerifyWebhook(r, body, secret); err != nil {
			return nil, nil, NewAuthenticationError("signature verification failed")
		}
	}
	return ev, agent, nil
}

// handleLifecycle applies a started/updated/ended event to the call row and,
// when the row newly reaches a terminal status, schedules the post-ack work.
func (s *WebhookService) handleLifecycle(ctx context.Context, agent *models.Agent, ev *provider.NormalizedEvent) error {
	call, applied, err := s.store.UpsertCallFromEvent(ctx, callFromSnapshot(agent, &ev.Call))
	if err != nil {
		return fmt.Errorf("failed to apply call event: %w", err)
	}
	if !applied {
		slog.Debug("Call event ignored, row is terminal",
			"provider", call.Provider, "external_id", call.ExternalID, "status", call.Status)
		return nil
	}

	if call.Status.Terminal() {
		s.afterCallEnded(ctx, call, agent)
	}
	return nil
}

// handleAnalyzed stores provider post-call enrichment (final transcript,
// summary) and re-runs the analysis gate, since the transcript may land
// after the terminal lifecycle event already did.
func (s *WebhookService) handleAnalyzed(ctx context.Context, p models.Provider, agent *models.Agent, ev *provider.NormalizedEvent) error {
	call, err := s.store.GetCallByExternalID(ctx, p, ev.Call.ExternalID)
	if errors.Is(err, store.ErrNotFound) {
		slog.Warn("Post-call analysis for unknown call, dropping",
			"provider", p, "external_id", ev.Call.ExternalID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load call: %w", err)
	}

	transcript := capTranscript(ev.Call.Transcript)
	if err := s.store.UpdateCallTranscript(ctx, call.ID, transcript, ev.Call.Summary); err != nil {
		return err
	}
	if transcript != nil {
		call.Transcript = transcript
	}
	if ev.Call.Summary != nil {
		call.Summary = ev.Call.Summary
	}

	if call.Status.Terminal() && call.Sentiment == nil {
		s.submitAnalysis(call)
	}
	return nil
}

// afterCallEnded fans the terminal-call work out onto the background pool:
// the broadcast, usage accumulation, AI analysis, and one task per matching
// workflow. The webhook response never waits for any of it.
func (s *WebhookService) afterCallEnded(ctx context.Context, call *models.Call, agent *models.Agent) {
	s.pool.Submit("call-ended-broadcast", func(ctx context.Context) {
		payload := events.NewCallEventPayload(events.EventTypeCallEnded, call)
		if err := s.sink.PublishCallEvent(ctx, call.TenantID, payload); err != nil {
			slog.Error("Failed to broadcast call ended", "call_id", call.ID, "error", err)
		}
	})

	if call.Status == models.CallCompleted && call.DurationSeconds > 0 && call.SubTenantID != nil {
		s.pool.Submit("usage-accumulate", func(ctx context.Context) {
			st, err := s.store.GetSubTenant(ctx, *call.SubTenantID)
			if err != nil {
				slog.Error("Failed to load sub-tenant for usage", "call_id", call.ID, "error", err)
				return
			}
			if err := s.usage.RecordCompletedCall(ctx, call, st); err != nil {
				slog.Error("Failed to record call usage", "call_id", call.ID, "error", err)
			}
		})
	}

	s.submitAnalysis(call)
	s.submitWorkflows(ctx, call, agent)
}

// submitAnalysis enqueues the AI enrichment task when the call qualifies:
// analyzer configured, not voicemail, transcript present, and the
// sub-tenant (when there is one) has analysis enabled.
func (s *WebhookService) submitAnalysis(call *models.Call) {
	if s.analyzer == nil || call.Voicemail {
		return
	}
	if call.Transcript == nil || *call.Transcript == "" {
		return
	}

	s.pool.Submit("call-analysis", func(ctx context.Context) {
		if call.SubTenantID != nil {
			st, err := s.store.GetSubTenant(ctx, *call.SubTenantID)
			if err != nil {
				slog.Error("Failed to load sub-tenant for analysis", "call_id", call.ID, "error", err)
				return
			}
			if !st.AIAnalysisEnabled {
				return
			}
		}

		res, err := s.analyzer.AnalyzeCall(ctx, call)
		if err != nil {
			slog.Error("Call analysis failed", "call_id", call.ID, "error", err)
			return
		}
		if err := s.store.UpdateCallAnalysis(ctx, call.ID, *res); err != nil {
			slog.Error("Failed to store call analysis", "call_id", call.ID, "error", err)
			return
		}

		payload := events.NewCallEventPayload(events.EventTypeCallAnalyzed, call)
		if err := s.sink.PublishCallEvent(ctx, call.TenantID, payload); err != nil {
			slog.Error("Failed to broadcast call analysis", "call_id", call.ID, "error", err)
		}
		slog.Info("Call analyzed", "call_id", call.ID, "sentiment", res.Sentiment, "score", res.Score)
	})
}

// submitWorkflows queues one executor task per workflow matching the ended
// call. The lookup runs in-request (one indexed read); execution is post-ack.
// Inbound calls additionally match inbound_call_ended workflows.
func (s *WebhookService) submitWorkflows(ctx context.Context, call *models.Call, agent *models.Agent) {
	triggers := []models.WorkflowTrigger{models.WorkflowTriggerCallEnded}
	if call.Direction == models.DirectionInbound {
		triggers = append(triggers, models.WorkflowTriggerInboundCallEnded)
	}

	for _, trigger := range triggers {
		workflows, err := s.store.ListWorkflowsForTrigger(ctx, call.TenantID, call.AgentID, trigger)
		if err != nil {
			slog.Error("Failed to list workflows", "call_id", call.ID, "trigger", trigger, "error", err)
			continue
		}
		for i := range workflows {
			wf := workflows[i]
			s.pool.Submit("workflow-"+wf.ID, func(ctx context.Context) {
				if _, err := s.executor.Execute(ctx, &wf, call, agent); err != nil {
					slog.Error("Workflow execution failed",
						"workflow_id", wf.ID, "call_id", call.ID, "error", err)
				}
			})
		}
	}
}

// callFromSnapshot maps a normalized provider snapshot onto the canonical
// call shape, attributing it to the resolved agent and capping the
// transcript.
func callFromSnapshot(agent *models.Agent, snap *provider.CallSnapshot) *models.Call {
	c := &models.Call{
		TenantID:        agent.TenantID,
		SubTenantID:     agent.SubTenantID,
		AgentID:         &agent.ID,
		Provider:        agent.Provider,
		ExternalID:      snap.ExternalID,
		Direction:       snap.Direction,
		Status:          snap.Status,
		FromNumber:      nilIfEmpty(snap.From),
		ToNumber:        nilIfEmpty(snap.To),
		StartedAt:       snap.StartedAt,
		EndedAt:         snap.EndedAt,
		DurationSeconds: snap.DurationSeconds,
		CostCents:       snap.CostCents,
		EndedReason:     nilIfEmpty(snap.EndedReason),
		Voicemail:       snap.Voicemail,
		Transcript:      capTranscript(snap.Transcript),
		Metadata:        models.JSONMap{},
	}
	if c.Direction == "" {
		c.Direction = models.DirectionOutbound
	}
	if len(snap.Meta) > 0 {
		c.Metadata = models.JSONMap(snap.Meta)
	}
	return c
}

// capTranscript enforces the stored transcript cap.
func capTranscript(t *string) *string {
	if t == nil || len(*t) <= models.TranscriptMaxChars {
		return t
	}
	capped := (*t)[:models.TranscriptMaxChars]
	return &capped
}
