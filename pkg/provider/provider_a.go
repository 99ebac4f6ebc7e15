package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
)

const (
	defaultBaseURLA = "https://api.provider-a.example.com"

	// HeaderSignatureA carries provider A's hex HMAC of the raw body,
	// signed with the tenant's provider key.
	HeaderSignatureA = "x-provider-a-signature"
)

// adapterA speaks the assistant-centric vendor API: calls are placed against
// an assistant id, and webhooks arrive as typed messages wrapping a call
// object. Each tenant signs webhooks with its own API key.
type adapterA struct {
	http *httpClient
}

// NewAdapterA creates the provider A adapter. baseURL and hc are overridable
// for tests; zero values use production defaults.
func NewAdapterA(baseURL string, hc *http.Client) Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURLA
	}
	return &adapterA{http: newHTTPClient(models.ProviderA, baseURL, hc)}
}

func (a *adapterA) Name() models.Provider { return models.ProviderA }

// aNumber is a phone number object on the provider A wire.
type aNumber struct {
	Number string `json:"number,omitempty"`
}

// aCall is provider A's call object, shared by call reads and webhooks.
type aCall struct {
	ID              string         `json:"id,omitempty"`
	AssistantID     string         `json:"assistantId,omitempty"`
	Status          string         `json:"status,omitempty"`
	Type            string         `json:"type,omitempty"`
	StartedAt       string         `json:"startedAt,omitempty"`
	EndedAt         string         `json:"endedAt,omitempty"`
	EndedReason     string         `json:"endedReason,omitempty"`
	DurationSeconds float64        `json:"durationSeconds,omitempty"`
	Cost            float64        `json:"cost,omitempty"`
	Transcript      string         `json:"transcript,omitempty"`
	Summary         string         `json:"summary,omitempty"`
	Customer        *aNumber       `json:"customer,omitempty"`
	PhoneNumber     *aNumber       `json:"phoneNumber,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

type aInitiateRequest struct {
	AssistantID        string         `json:"assistantId"`
	Customer           aNumber        `json:"customer"`
	PhoneNumber        *aNumber       `json:"phoneNumber,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	AssistantOverrides *aOverrides    `json:"assistantOverrides,omitempty"`
}

type aOverrides struct {
	SystemPrompt string `json:"systemPrompt,omitempty"`
}

func (a *adapterA) Initiate(ctx context.Context, apiKey string, req InitiateRequest) (*InitiateResult, error) {
	payload := aInitiateRequest{
		AssistantID: req.AgentExternalID,
		Customer:    aNumber{Number: req.To},
		Metadata:    req.Metadata,
	}
	if req.From != "" {
		payload.PhoneNumber = &aNumber{Number: req.From}
	}
	if req.PromptOverride != "" {
		payload.AssistantOverrides = &aOverrides{SystemPrompt: req.PromptOverride}
	}

	var resp aCall
	if err := a.http.do(ctx, "initiate", http.MethodPost, "/call", bearerAuth(apiKey), payload, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, &Error{Provider: models.ProviderA, Op: "initiate", Message: "response missing call id"}
	}
	return &InitiateResult{ExternalCallID: resp.ID}, nil
}

func (a *adapterA) End(ctx context.Context, apiKey, externalCallID string) error {
	return a.http.do(ctx, "end", http.MethodPost, "/call/"+externalCallID+"/end", bearerAuth(apiKey), nil, nil)
}

func (a *adapterA) FetchCall(ctx context.Context, apiKey, externalCallID string) (*CallSnapshot, error) {
	var resp aCall
	if err := a.http.do(ctx, "fetch_call", http.MethodGet, "/call/"+externalCallID, bearerAuth(apiKey), nil, &resp); err != nil {
		return nil, err
	}
	snap := a.snapshot(resp)
	return &snap, nil
}

func (a *adapterA) ListActiveCalls(ctx context.Context, apiKey string, agentExternalIDs []string) ([]CallSnapshot, error) {
	var resp []aCall
	if err := a.http.do(ctx, "list_active", http.MethodGet, "/call?status=queued,in-progress", bearerAuth(apiKey), nil, &resp); err != nil {
		return nil, err
	}

	var out []CallSnapshot
	for _, c := range resp {
		if len(agentExternalIDs) > 0 && !slices.Contains(agentExternalIDs, c.AssistantID) {
			continue
		}
		out = append(out, a.snapshot(c))
	}
	return out, nil
}

func (a *adapterA) CreateWebSession(ctx context.Context, apiKey, agentExternalID string) (*WebSession, error) {
	var resp struct {
		ID         string `json:"id"`
		WebCallURL string `json:"webCallUrl"`
	}
	payload := map[string]string{"assistantId": agentExternalID}
	if err := a.http.do(ctx, "web_session", http.MethodPost, "/call/web", bearerAuth(apiKey), payload, &resp); err != nil {
		return nil, err
	}
	return &WebSession{SessionID: resp.ID, JoinURL: resp.WebCallURL}, nil
}

func (a *adapterA) VerifyWebhook(r *http.Request, body []byte, secret string) error {
	return verifyHexHMAC(secret, r.Header.Get(HeaderSignatureA), body)
}

// aWebhookEnvelope wraps every provider A delivery. End-of-call reports
// carry duration, cost and transcript beside the call object rather than
// inside it.
type aWebhookEnvelope struct {
	Message struct {
		Type            string  `json:"type"`
		Status          string  `json:"status"`
		EndedReason     string  `json:"endedReason"`
		DurationSeconds float64 `json:"durationSeconds"`
		Cost            float64 `json:"cost"`
		Transcript      string  `json:"transcript"`
		Summary         string  `json:"summary"`
		Call            aCall   `json:"call"`
	} `json:"message"`
}

func (a *adapterA) ParseWebhook(body []byte) (*NormalizedEvent, error) {
	var env aWebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse webhook body: %w", err)
	}
	msg := env.Message
	if msg.Call.ID == "" {
		return nil, fmt.Errorf("webhook missing call id")
	}

	// Report fields (duration, cost, transcript) arrive beside the call
	// object; fold them in before snapshotting.
	call := msg.Call
	if msg.EndedReason != "" {
		call.EndedReason = msg.EndedReason
	}
	if msg.DurationSeconds > 0 {
		call.DurationSeconds = msg.DurationSeconds
	}
	if msg.Cost > 0 {
		call.Cost = msg.Cost
	}
	if msg.Transcript != "" {
		call.Transcript = msg.Transcript
	}
	if msg.Summary != "" {
		call.Summary = msg.Summary
	}

	switch msg.Type {
	case "status-update":
		call.Status = msg.Status
		kind := KindUpdated
		if msg.Status == "in-progress" {
			kind = KindStarted
		}
		if msg.Status == "ended" {
			// Terminal data rides the end-of-call-report; acting here
			// would write a terminal row without duration or cost.
			return &NormalizedEvent{Kind: KindUnknown, Call: a.snapshot(call)}, nil
		}
		return &NormalizedEvent{Kind: kind, Call: a.snapshot(call)}, nil

	case "end-of-call-report":
		call.Status = "ended"
		return &NormalizedEvent{Kind: KindEnded, Call: a.snapshot(call)}, nil

	case "transcript":
		call.Status = "in-progress"
		return &NormalizedEvent{Kind: KindUpdated, Call: a.snapshot(call)}, nil

	default:
		return &NormalizedEvent{Kind: KindUnknown, Call: a.snapshot(call)}, nil
	}
}

// snapshot normalizes an aCall.
func (a *adapterA) snapshot(c aCall) CallSnapshot {
	snap := CallSnapshot{
		ExternalID:      c.ID,
		AgentExternalID: c.AssistantID,
		Status:          aStatus(c.Status, c.EndedReason),
		Direction:       aDirection(c.Type),
		EndedReason:     c.EndedReason,
		DurationSeconds: int(math.Round(c.DurationSeconds)),
		CostCents:       int(math.Round(c.Cost * 100)),
		Voicemail:       c.EndedReason == "voicemail",
		StartedAt:       parseRFC3339(c.StartedAt),
		EndedAt:         parseRFC3339(c.EndedAt),
		Meta:            c.Metadata,
	}
	if c.Customer != nil {
		snap.To = c.Customer.Number
	}
	if c.PhoneNumber != nil {
		snap.From = c.PhoneNumber.Number
	}
	if snap.Direction == models.DirectionInbound {
		// Inbound flips the pair: the customer dialed us.
		snap.From, snap.To = snap.To, snap.From
	}
	if c.Transcript != "" {
		t := c.Transcript
		snap.Transcript = &t
	}
	if c.Summary != "" {
		s := c.Summary
		snap.Summary = &s
	}
	return snap
}

func aStatus(status, endedReason string) models.CallStatus {
	switch status {
	case "queued", "ringing":
		return models.CallQueued
	case "in-progress", "forwarding":
		return models.CallInProgress
	case "ended":
		if aFailedReason(endedReason) {
			return models.CallFailed
		}
		return models.CallCompleted
	default:
		return models.CallQueued
	}
}

// aFailedReason reports whether the call never meaningfully connected.
func aFailedReason(reason string) bool {
	switch reason {
	case "customer-did-not-answer", "customer-busy", "no-answer", "failed":
		return true
	}
	return strings.Contains(reason, "error")
}

func aDirection(callType string) models.CallDirection {
	switch callType {
	case "inboundPhoneCall", "webCall":
		return models.DirectionInbound
	default:
		return models.DirectionOutbound
	}
}

func parseRFC3339(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
