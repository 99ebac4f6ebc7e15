package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
)

const (
	defaultBaseURLC = "https://api.provider-c.example.com"

	// HeaderSignatureC carries provider C's base64 HMAC over
	// method, path, timestamp and body, signed with the tenant's key.
	HeaderSignatureC = "x-provider-c-signature"
	// HeaderTimestampC is the unix-seconds timestamp the signature covers.
	HeaderTimestampC = "x-provider-c-timestamp"
)

// adapterC speaks the task-centric vendor API: raw-key auth, a single flat
// end-of-call webhook, durations in minutes and no web sessions.
type adapterC struct {
	http *httpClient
	now  func() time.Time
}

// NewAdapterC creates the provider C adapter. baseURL and hc are overridable
// for tests; zero values use production defaults.
func NewAdapterC(baseURL string, hc *http.Client) Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURLC
	}
	return &adapterC{http: newHTTPClient(models.ProviderC, baseURL, hc), now: time.Now}
}

func (c *adapterC) Name() models.Provider { return models.ProviderC }

// cCall is provider C's call object, shared by call reads and the
// end-of-call webhook. Durations come as minutes in call_length with an
// optional corrected_duration in stringly-typed seconds.
type cCall struct {
	CallID            string         `json:"call_id,omitempty"`
	AgentID           string         `json:"agent_id,omitempty"`
	To                string         `json:"to,omitempty"`
	From              string         `json:"from,omitempty"`
	Inbound           bool           `json:"inbound,omitempty"`
	QueueStatus       string         `json:"queue_status,omitempty"`
	Completed         bool           `json:"completed,omitempty"`
	CallLength        float64        `json:"call_length,omitempty"`
	CorrectedDuration string         `json:"corrected_duration,omitempty"`
	Price             float64        `json:"price,omitempty"`
	AnsweredBy        string         `json:"answered_by,omitempty"`
	ErrorMessage      string         `json:"error_message,omitempty"`
	StartedAt         string         `json:"started_at,omitempty"`
	EndAt             string         `json:"end_at,omitempty"`
	Transcript        string         `json:"concatenated_transcript,omitempty"`
	Summary           string         `json:"summary,omitempty"`
	RequestData       map[string]any `json:"request_data,omitempty"`
}

type cInitiateRequest struct {
	PhoneNumber string         `json:"phone_number"`
	From        string         `json:"from,omitempty"`
	AgentID     string         `json:"agent_id"`
	RequestData map[string]any `json:"request_data,omitempty"`
	Task        string         `json:"task,omitempty"`
}

func (c *adapterC) Initiate(ctx context.Context, apiKey string, req InitiateRequest) (*InitiateResult, error) {
	payload := cInitiateRequest{
		PhoneNumber: req.To,
		From:        req.From,
		AgentID:     req.AgentExternalID,
		RequestData: req.Metadata,
		Task:        req.PromptOverride,
	}

	var resp struct {
		Status string `json:"status"`
		CallID string `json:"call_id"`
	}
	if err := c.http.do(ctx, "initiate", http.MethodPost, "/v1/calls", rawAuth(apiKey), payload, &resp); err != nil {
		return nil, err
	}
	if resp.CallID == "" {
		return nil, &Error{Provider: models.ProviderC, Op: "initiate", Message: "response missing call_id"}
	}
	return &InitiateResult{ExternalCallID: resp.CallID}, nil
}

func (c *adapterC) End(ctx context.Context, apiKey, externalCallID string) error {
	return c.http.do(ctx, "end", http.MethodPost, "/v1/calls/"+externalCallID+"/stop", rawAuth(apiKey), nil, nil)
}

func (c *adapterC) FetchCall(ctx context.Context, apiKey, externalCallID string) (*CallSnapshot, error) {
	var resp cCall
	if err := c.http.do(ctx, "fetch_call", http.MethodGet, "/v1/calls/"+externalCallID, rawAuth(apiKey), nil, &resp); err != nil {
		return nil, err
	}
	snap := c.snapshot(resp)
	return &snap, nil
}

func (c *adapterC) ListActiveCalls(ctx context.Context, apiKey string, agentExternalIDs []string) ([]CallSnapshot, error) {
	var resp struct {
		Calls []cCall `json:"calls"`
	}
	if err := c.http.do(ctx, "list_active", http.MethodGet, "/v1/calls?completed=false", rawAuth(apiKey), nil, &resp); err != nil {
		return nil, err
	}

	var out []CallSnapshot
	for _, call := range resp.Calls {
		if len(agentExternalIDs) > 0 && !slices.Contains(agentExternalIDs, call.AgentID) {
			continue
		}
		out = append(out, c.snapshot(call))
	}
	return out, nil
}

func (c *adapterC) CreateWebSession(ctx context.Context, apiKey, agentExternalID string) (*WebSession, error) {
	return nil, ErrWebSessionUnsupported
}

func (c *adapterC) VerifyWebhook(r *http.Request, body []byte, secret string) error {
	return verifyTimestampedHMAC(
		secret,
		r.Header.Get(HeaderSignatureC),
		r.Header.Get(HeaderTimestampC),
		r.Method,
		r.URL.Path,
		body,
		c.now(),
	)
}

// ParseWebhook handles provider C's single flat end-of-call payload; there
// are no mid-call deliveries.
func (c *adapterC) ParseWebhook(body []byte) (*NormalizedEvent, error) {
	var call cCall
	if err := json.Unmarshal(body, &call); err != nil {
		return nil, fmt.Errorf("failed to parse webhook body: %w", err)
	}
	if call.CallID == "" {
		return nil, fmt.Errorf("webhook missing call_id")
	}
	call.Completed = true
	return &NormalizedEvent{Kind: KindEnded, Call: c.snapshot(call)}, nil
}

// snapshot normalizes a cCall.
func (c *adapterC) snapshot(call cCall) CallSnapshot {
	snap := CallSnapshot{
		ExternalID:      call.CallID,
		AgentExternalID: call.AgentID,
		Status:          cStatus(call),
		Direction:       models.DirectionOutbound,
		From:            call.From,
		To:              call.To,
		EndedReason:     cEndedReason(call),
		DurationSeconds: cDurationSeconds(call),
		CostCents:       int(math.Round(call.Price * 100)),
		Voicemail:       call.AnsweredBy == "voicemail",
		StartedAt:       parseRFC3339(call.StartedAt),
		EndedAt:         parseRFC3339(call.EndAt),
		Meta:            call.RequestData,
	}
	if call.Inbound {
		snap.Direction = models.DirectionInbound
	}
	if call.Transcript != "" {
		t := call.Transcript
		snap.Transcript = &t
	}
	if call.Summary != "" {
		s := call.Summary
		snap.Summary = &s
	}
	return snap
}

func cStatus(call cCall) models.CallStatus {
	if call.Completed || call.QueueStatus == "complete" {
		if cFailed(call) {
			return models.CallFailed
		}
		return models.CallCompleted
	}
	switch call.QueueStatus {
	case "started", "in-progress":
		return models.CallInProgress
	default:
		return models.CallQueued
	}
}

// cFailed reports whether the call never meaningfully connected.
func cFailed(call cCall) bool {
	if call.ErrorMessage != "" {
		return true
	}
	switch call.AnsweredBy {
	case "no-answer", "busy", "failed":
		return true
	}
	return false
}

func cEndedReason(call cCall) string {
	if call.ErrorMessage != "" {
		return call.ErrorMessage
	}
	return call.AnsweredBy
}

// cDurationSeconds prefers the corrected seconds figure over the billing
// minutes one.
func cDurationSeconds(call cCall) int {
	if call.CorrectedDuration != "" {
		if secs, err := strconv.ParseFloat(call.CorrectedDuration, 64); err == nil && secs > 0 {
			return int(math.Round(secs))
		}
	}
	return int(math.Round(call.CallLength * 60))
}
