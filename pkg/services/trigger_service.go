// Package services implements the business rules between the HTTP layer and
// the store: trigger ingress, provider webhook processing, call control,
// key resolution, experiments, usage, and the widget session flow. Handlers
// translate HTTP to service calls; services own validation, resolution
// ladders, and error classification.
package services

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/paradyne-ai/callcore/pkg/events"
	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/phone"
	"github.com/paradyne-ai/callcore/pkg/provider"
	"github.com/paradyne-ai/callcore/pkg/redact"
	"github.com/paradyne-ai/callcore/pkg/store"
	"github.com/paradyne-ai/callcore/pkg/timezone"
)

// defaultMaxRetries is the dispatch attempt budget for scheduled calls.
const defaultMaxRetries = 3

// triggerReplayWindow bounds how old a timestamped CRM trigger may be.
const triggerReplayWindow = 5 * time.Minute

type triggerStore interface {
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	GetTenantByIntegrationAccount(ctx context.Context, integration models.Integration, configKey, value string) (*models.Tenant, error)
	GetIntegrationConfig(ctx context.Context, tenantID string, integration models.Integration) (*models.IntegrationConfig, error)
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	GetPhoneNumber(ctx context.Context, tenantID string, e164 string) (*models.PhoneNumber, error)
	InsertScheduledCall(ctx context.Context, sc *models.ScheduledCall) (*models.ScheduledCall, error)
	InsertTriggerLog(ctx context.Context, tl *models.TriggerLog) (*models.TriggerLog, error)
}

// TriggerService turns inbound triggers (CRM webhooks, partner API,
// dashboard) into immediate dispatches or scheduled calls. Every outcome
// past authentication writes a TriggerLog row with the redacted payload.
type TriggerService struct {
	store      triggerStore
	dispatcher *Dispatcher
	oracle     *timezone.Oracle
	redactor   *redact.Redactor
	sink       events.EventSink
	now        func() time.Time
}

// NewTriggerService wires a TriggerService.
func NewTriggerService(st triggerStore, dispatcher *Dispatcher, oracle *timezone.Oracle, sink events.EventSink) *TriggerService {
	return &TriggerService{
		store:      st,
		dispatcher: dispatcher,
		oracle:     oracle,
		redactor:   redact.NewRedactor(),
		sink:       sink,
		now:        time.Now,
	}
}

// crmAccountKey maps a CRM trigger source to the integration config key
// holding the CRM-side account id.
func crmAccountKey(source models.TriggerSource) (models.Integration, string, bool) {
	switch source {
	case models.TriggerSourceCRMA:
		return models.IntegrationCRMA, "location_id", true
	case models.TriggerSourceCRMB:
		return models.IntegrationCRMB, "portal_id", true
	}
	return "", "", false
}

// ResolveCRMTenant maps a CRM account id (location for CRM A, portal for
// CRM B) to the owning tenant and its integration config. Unknown accounts
// resolve to an authentication failure so probing reveals nothing.
func (s *TriggerService) ResolveCRMTenant(ctx context.Context, source models.TriggerSource, accountID string) (*models.Tenant, *models.IntegrationConfig, error) {
	integration, key, ok := crmAccountKey(source)
	if !ok {
		return nil, nil, NewValidationError("source", fmt.Sprintf("%q is not a CRM trigger source", source))
	}
	if accountID == "" {
		return nil, nil, NewValidationError(key, "required")
	}

	tenant, err := s.store.GetTenantByIntegrationAccount(ctx, integration, key, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, NewAuthenticationError("unknown account")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve tenant: %w", err)
	}

	icfg, err := s.store.GetIntegrationConfig(ctx, tenant.ID, integration)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, NewAuthenticationError("integration not connected")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load integration config: %w", err)
	}
	if !icfg.Enabled {
		return nil, nil, NewAuthenticationError("integration disabled")
	}
	return tenant, icfg, nil
}

// VerifyTriggerSignature checks a CRM trigger delivery: hex HMAC-SHA256 of
// the raw body under the per-tenant webhook secret, plus a replay window
// when the CRM supplies a timestamp header. Failures return an
// authentication error and the caller must not log the payload.
func (s *TriggerService) VerifyTriggerSignature(icfg *models.IntegrationConfig, signature, timestamp string, body []byte) error {
	secret := icfg.ConfigString("webhook_secret")
	if secret == "" {
		return NewAuthenticationError("no webhook secret configured")
	}
	if signature == "" {
		return NewAuthenticationError("missing signature")
	}
	if timestamp != "" {
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return NewAuthenticationError("malformed timestamp")
		}
		drift := s.now().Sub(time.Unix(ts, 0))
		if drift < -triggerReplayWindow || drift > triggerReplayWindow {
			return NewAuthenticationError("timestamp outside replay window")
		}
	}
	want := provider.SignHexHMAC(secret, body)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return NewAuthenticationError("signature mismatch")
	}
	return nil
}

// Trigger runs the resolution ladder for one authenticated trigger: phone
// normalization, agent resolution, window decision, then schedule or
// dispatch. Every outcome writes a trigger log row.
func (s *TriggerService) Trigger(ctx context.Context, req *models.TriggerRequest) (*models.TriggerResult, error) {
	if req.TenantID == "" {
		return nil, NewValidationError("tenant_id", "required")
	}
	if req.PhoneNumber == "" {
		return nil, s.failTrigger(ctx, req, "", NewValidationError("phone_number", "required"))
	}

	normalized, err := phone.Normalize(req.PhoneNumber)
	if err != nil {
		return nil, s.failTrigger(ctx, req, "", NewValidationError("phone_number", "must be a dialable E.164 number"))
	}
	req.PhoneNumber = normalized

	if req.FromNumber != "" {
		from, err := phone.Normalize(req.FromNumber)
		if err != nil {
			return nil, s.failTrigger(ctx, req, "", NewValidationError("from_number", "must be a dialable E.164 number"))
		}
		req.FromNumber = from
	}

	tenant, err := s.store.GetTenant(ctx, req.TenantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("tenant %s: %w", req.TenantID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}

	agent, err := s.resolveAgent(ctx, req)
	if err != nil {
		return nil, s.failTrigger(ctx, req, "", err)
	}

	subTenantID := agent.SubTenantID
	if req.SubTenantID != "" {
		subTenantID = &req.SubTenantID
	}

	zone, _ := s.oracle.ZoneOf(req.PhoneNumber)

	// Explicit future schedule wins over the window decision.
	now := s.now()
	if req.ScheduledAt != nil && req.ScheduledAt.After(now) {
		return s.schedule(ctx, req, agent, subTenantID, zone, req.ScheduledAt.UTC(), false)
	}

	// A number with no zone skips the window check: the window cannot be
	// evaluated without a zone.
	if zone != "" {
		window := tenant.CallingWindow()
		open, werr := s.oracle.InWindow(zone, window)
		if werr != nil {
			slog.Warn("Window evaluation failed, dispatching immediately", "zone", zone, "error", werr)
		} else if !open {
			at, nerr := s.oracle.NextOpen(zone, window)
			if nerr != nil {
				return nil, s.failTrigger(ctx, req, zone, fmt.Errorf("failed to compute next window opening: %w", nerr))
			}
			return s.schedule(ctx, req, agent, subTenantID, zone, at, true)
		}
	}

	return s.dispatch(ctx, req, agent, subTenantID, zone)
}

// resolveAgent walks the ladder: explicit agent_id, then the integration's
// default agent, then the outbound agent of the matching tenant phone
// number. Agents outside the tenant read as missing.
func (s *TriggerService) resolveAgent(ctx context.Context, req *models.TriggerRequest) (*models.Agent, error) {
	lookup := func(id string) (*models.Agent, error) {
		agent, err := s.store.GetAgent(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load agent: %w", err)
		}
		if agent.TenantID != req.TenantID {
			return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
		}
		return agent, nil
	}

	if req.AgentID != "" {
		return lookup(req.AgentID)
	}
	if req.DefaultAgentID != "" {
		return lookup(req.DefaultAgentID)
	}
	if req.FromNumber != "" {
		pn, err := s.store.GetPhoneNumber(ctx, req.TenantID, req.FromNumber)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to load phone number: %w", err)
		}
		if pn != nil && pn.OutboundAgentID != nil {
			return lookup(*pn.OutboundAgentID)
		}
	}
	return nil, fmt.Errorf("no agent configured for this trigger: %w", ErrNotConfigured)
}

func (s *TriggerService) schedule(ctx context.Context, req *models.TriggerRequest, agent *models.Agent, subTenantID *string, zone string, at time.Time, timezoneDelayed bool) (*models.TriggerResult, error) {
	sc := &models.ScheduledCall{
		TenantID:        req.TenantID,
		SubTenantID:     subTenantID,
		AgentID:         agent.ID,
		PhoneNumber:     req.PhoneNumber,
		FromNumber:      nilIfEmpty(req.FromNumber),
		ContactID:       nilIfEmpty(req.ContactID),
		ContactName:     nilIfEmpty(req.ContactName),
		LeadTimezone:    nilIfEmpty(zone),
		TriggerSource:   req.Source,
		Metadata:        req.Metadata,
		Status:          models.SchedulePending,
		ScheduledAt:     at,
		TimezoneDelayed: timezoneDelayed,
		MaxRetries:      defaultMaxRetries,
	}

	created, err := s.store.InsertScheduledCall(ctx, sc)
	if err != nil {
		return nil, s.failTrigger(ctx, req, zone, fmt.Errorf("failed to schedule call: %w", err))
	}

	if err := s.sink.PublishScheduleEvent(ctx, req.TenantID,
		events.NewScheduleEventPayload(events.EventTypeScheduleCreated, created)); err != nil {
		slog.Warn("Failed to publish schedule event", "scheduled_call_id", created.ID, "error", err)
	}

	s.writeTriggerLog(ctx, req, &models.TriggerLog{
		Status:          models.TriggerScheduled,
		AgentID:         &agent.ID,
		LeadTimezone:    nilIfEmpty(zone),
		ScheduledCallID: &created.ID,
	})

	slog.Info("Trigger scheduled",
		"tenant_id", req.TenantID,
		"agent_id", agent.ID,
		"scheduled_call_id", created.ID,
		"scheduled_at", created.ScheduledAt,
		"timezone_delayed", timezoneDelayed,
		"source", req.Source)

	return &models.TriggerResult{
		Status:          models.TriggerScheduled,
		ScheduledCallID: created.ID,
		ScheduledAt:     &created.ScheduledAt,
		LeadTimezone:    zone,
		Agent:           agent.Name,
		TimezoneDelayed: timezoneDelayed,
	}, nil
}

func (s *TriggerService) dispatch(ctx context.Context, req *models.TriggerRequest, agent *models.Agent, subTenantID *string, zone string) (*models.TriggerResult, error) {
	call, err := s.dispatcher.Dispatch(ctx, DispatchRequest{
		TenantID:     req.TenantID,
		SubTenantID:  subTenantID,
		Agent:        agent,
		To:           req.PhoneNumber,
		From:         req.FromNumber,
		ContactID:    req.ContactID,
		ContactName:  req.ContactName,
		LeadTimezone: zone,
		Source:       req.Source,
		Metadata:     req.Metadata,
	})
	if err != nil {
		return nil, s.failTrigger(ctx, req, zone, err)
	}

	s.writeTriggerLog(ctx, req, &models.TriggerLog{
		Status:         models.TriggerInitiated,
		AgentID:        &agent.ID,
		LeadTimezone:   nilIfEmpty(zone),
		CallExternalID: &call.ExternalID,
	})

	return &models.TriggerResult{
		Status:       models.TriggerInitiated,
		CallID:       call.ID,
		LeadTimezone: zone,
		Agent:        agent.Name,
	}, nil
}

// failTrigger records a failed trigger and returns the original error.
// Authentication failures never reach here; their payloads are not logged.
func (s *TriggerService) failTrigger(ctx context.Context, req *models.TriggerRequest, zone string, cause error) error {
	msg := cause.Error()
	s.writeTriggerLog(ctx, req, &models.TriggerLog{
		Status:       models.TriggerFailed,
		LeadTimezone: nilIfEmpty(zone),
		ErrorMessage: &msg,
	})
	return cause
}

func (s *TriggerService) writeTriggerLog(ctx context.Context, req *models.TriggerRequest, tl *models.TriggerLog) {
	tl.TenantID = nilIfEmpty(req.TenantID)
	tl.Source = req.Source
	tl.PhoneNumber = nilIfEmpty(req.PhoneNumber)
	tl.Payload = s.redactPayload(req)

	if _, err := s.store.InsertTriggerLog(ctx, tl); err != nil {
		slog.Error("Failed to write trigger log", "tenant_id", req.TenantID, "source", req.Source, "error", err)
	}
}

// redactPayload masks secrets in the raw request body and returns it as a
// JSON map for the trigger log. Bodies that do not parse as an object are
// kept under a "raw" key.
func (s *TriggerService) redactPayload(req *models.TriggerRequest) models.JSONMap {
	if len(req.RawPayload) == 0 {
		return models.JSONMap{}
	}
	redacted := s.redactor.RedactBytes(req.RawPayload)
	var m map[string]any
	if err := json.Unmarshal(redacted, &m); err != nil || m == nil {
		return models.JSONMap{"raw": string(redacted)}
	}
	return models.JSONMap(m)
}
