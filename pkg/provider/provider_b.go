package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
)

const (
	defaultBaseURLB = "https://api.provider-b.example.com"

	// HeaderSignatureB carries provider B's hex HMAC of the raw body,
	// signed with the deployment-wide webhook secret.
	HeaderSignatureB = "x-provider-b-signature"

	// listCallsLimitB is the page size provider B caps list-calls at.
	// Active-call listings beyond one page are truncated rather than paged;
	// the dashboard view tolerates that.
	listCallsLimitB = 100
)

// adapterB speaks the agent-centric vendor API: snake_case JSON under /v2,
// millisecond epoch timestamps, and a single deployment-wide webhook secret
// shared across tenants.
type adapterB struct {
	http *httpClient
}

// NewAdapterB creates the provider B adapter. baseURL and hc are overridable
// for tests; zero values use production defaults.
func NewAdapterB(baseURL string, hc *http.Client) Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURLB
	}
	return &adapterB{http: newHTTPClient(models.ProviderB, baseURL, hc)}
}

func (b *adapterB) Name() models.Provider { return models.ProviderB }

// bCall is provider B's call object, shared by call reads and webhooks.
type bCall struct {
	CallID              string         `json:"call_id,omitempty"`
	AgentID             string         `json:"agent_id,omitempty"`
	CallStatus          string         `json:"call_status,omitempty"`
	CallType            string         `json:"call_type,omitempty"`
	Direction           string         `json:"direction,omitempty"`
	FromNumber          string         `json:"from_number,omitempty"`
	ToNumber            string         `json:"to_number,omitempty"`
	StartTimestamp      int64          `json:"start_timestamp,omitempty"`
	EndTimestamp        int64          `json:"end_timestamp,omitempty"`
	DurationMs          int64          `json:"duration_ms,omitempty"`
	DisconnectionReason string         `json:"disconnection_reason,omitempty"`
	Transcript          string         `json:"transcript,omitempty"`
	CallCost            *bCost         `json:"call_cost,omitempty"`
	CallAnalysis        *bAnalysis     `json:"call_analysis,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

// bCost totals are already in cents on the wire.
type bCost struct {
	CombinedCost float64 `json:"combined_cost"`
}

type bAnalysis struct {
	CallSummary   string `json:"call_summary,omitempty"`
	UserSentiment string `json:"user_sentiment,omitempty"`
	InVoicemail   bool   `json:"in_voicemail,omitempty"`
}

type bInitiateRequest struct {
	AgentID        string         `json:"agent_id"`
	ToNumber       string         `json:"to_number"`
	FromNumber     string         `json:"from_number,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	PromptOverride string         `json:"prompt_override,omitempty"`
}

func (b *adapterB) Initiate(ctx context.Context, apiKey string, req InitiateRequest) (*InitiateResult, error) {
	payload := bInitiateRequest{
		AgentID:        req.AgentExternalID,
		ToNumber:       req.To,
		FromNumber:     req.From,
		Metadata:       req.Metadata,
		PromptOverride: req.PromptOverride,
	}

	var resp bCall
	if err := b.http.do(ctx, "initiate", http.MethodPost, "/v2/create-phone-call", bearerAuth(apiKey), payload, &resp); err != nil {
		return nil, err
	}
	if resp.CallID == "" {
		return nil, &Error{Provider: models.ProviderB, Op: "initiate", Message: "response missing call_id"}
	}
	return &InitiateResult{ExternalCallID: resp.CallID}, nil
}

func (b *adapterB) End(ctx context.Context, apiKey, externalCallID string) error {
	return b.http.do(ctx, "end", http.MethodPost, "/v2/end-call/"+externalCallID, bearerAuth(apiKey), nil, nil)
}

func (b *adapterB) FetchCall(ctx context.Context, apiKey, externalCallID string) (*CallSnapshot, error) {
	var resp bCall
	if err := b.http.do(ctx, "fetch_call", http.MethodGet, "/v2/get-call/"+externalCallID, bearerAuth(apiKey), nil, &resp); err != nil {
		return nil, err
	}
	snap := b.snapshot(resp)
	return &snap, nil
}

func (b *adapterB) ListActiveCalls(ctx context.Context, apiKey string, agentExternalIDs []string) ([]CallSnapshot, error) {
	payload := map[string]any{
		"limit":       listCallsLimitB,
		"call_status": []string{"registered", "ongoing"},
	}
	var resp []bCall
	if err := b.http.do(ctx, "list_active", http.MethodPost, "/v2/list-calls", bearerAuth(apiKey), payload, &resp); err != nil {
		return nil, err
	}

	var out []CallSnapshot
	for _, c := range resp {
		if len(agentExternalIDs) > 0 && !slices.Contains(agentExternalIDs, c.AgentID) {
			continue
		}
		out = append(out, b.snapshot(c))
	}
	return out, nil
}

func (b *adapterB) CreateWebSession(ctx context.Context, apiKey, agentExternalID string) (*WebSession, error) {
	var resp struct {
		CallID      string `json:"call_id"`
		AccessToken string `json:"access_token"`
	}
	payload := map[string]string{"agent_id": agentExternalID}
	if err := b.http.do(ctx, "web_session", http.MethodPost, "/v2/create-web-call", bearerAuth(apiKey), payload, &resp); err != nil {
		return nil, err
	}
	return &WebSession{SessionID: resp.CallID, AccessToken: resp.AccessToken}, nil
}

func (b *adapterB) VerifyWebhook(r *http.Request, body []byte, secret string) error {
	return verifyHexHMAC(secret, r.Header.Get(HeaderSignatureB), body)
}

type bWebhookEnvelope struct {
	Event string `json:"event"`
	Call  bCall  `json:"call"`
}

func (b *adapterB) ParseWebhook(body []byte) (*NormalizedEvent, error) {
	var env bWebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse webhook body: %w", err)
	}
	if env.Call.CallID == "" {
		return nil, fmt.Errorf("webhook missing call_id")
	}

	var kind EventKind
	switch env.Event {
	case "call_started":
		kind = KindStarted
		if env.Call.CallStatus == "" {
			env.Call.CallStatus = "ongoing"
		}
	case "call_ended":
		kind = KindEnded
		if env.Call.CallStatus == "" {
			env.Call.CallStatus = "ended"
		}
	case "call_analyzed":
		kind = KindAnalyzed
	default:
		kind = KindUnknown
	}
	return &NormalizedEvent{Kind: kind, Call: b.snapshot(env.Call)}, nil
}

// snapshot normalizes a bCall.
func (b *adapterB) snapshot(c bCall) CallSnapshot {
	snap := CallSnapshot{
		ExternalID:      c.CallID,
		AgentExternalID: c.AgentID,
		Status:          bStatus(c.CallStatus, c.DisconnectionReason),
		Direction:       bDirection(c.Direction, c.CallType),
		From:            c.FromNumber,
		To:              c.ToNumber,
		EndedReason:     c.DisconnectionReason,
		DurationSeconds: int(math.Round(float64(c.DurationMs) / 1000)),
		Voicemail:       c.DisconnectionReason == "voicemail_reached",
		StartedAt:       fromUnixMilli(c.StartTimestamp),
		EndedAt:         fromUnixMilli(c.EndTimestamp),
		Meta:            c.Metadata,
	}
	if snap.DurationSeconds == 0 && c.StartTimestamp > 0 && c.EndTimestamp > c.StartTimestamp {
		snap.DurationSeconds = int(math.Round(float64(c.EndTimestamp-c.StartTimestamp) / 1000))
	}
	if c.CallCost != nil {
		snap.CostCents = int(math.Round(c.CallCost.CombinedCost))
	}
	if c.Transcript != "" {
		t := c.Transcript
		snap.Transcript = &t
	}
	if c.CallAnalysis != nil {
		if c.CallAnalysis.CallSummary != "" {
			s := c.CallAnalysis.CallSummary
			snap.Summary = &s
		}
		if c.CallAnalysis.InVoicemail {
			snap.Voicemail = true
		}
	}
	return snap
}

func bStatus(status, reason string) models.CallStatus {
	switch status {
	case "registered":
		return models.CallQueued
	case "ongoing":
		return models.CallInProgress
	case "ended":
		if bFailedReason(reason) {
			return models.CallFailed
		}
		return models.CallCompleted
	case "error":
		return models.CallFailed
	default:
		return models.CallQueued
	}
}

// bFailedReason reports whether the call never meaningfully connected.
func bFailedReason(reason string) bool {
	switch reason {
	case "dial_no_answer", "dial_busy", "dial_failed", "concurrency_limit_reached",
		"invalid_destination", "telephony_provider_permission_denied":
		return true
	}
	return false
}

func bDirection(direction, callType string) models.CallDirection {
	if direction == "inbound" || callType == "web_call" {
		return models.DirectionInbound
	}
	return models.DirectionOutbound
}

func fromUnixMilli(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
