// Package provider adapts the telephony vendors behind a single interface.
// Adapters normalize initiation, call control, and webhook payloads so the
// rest of the system never sees vendor wire formats. API keys are resolved
// per call (sub-tenant key first, then tenant key) and passed in; adapters
// hold no tenant state.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// InitiateRequest is a normalized outbound call request.
type InitiateRequest struct {
	AgentExternalID string
	To              string
	From            string
	Metadata        map[string]any
	// PromptOverride replaces the agent's system prompt for this call
	// (experiment variants). Empty means no override.
	PromptOverride string
}

// InitiateResult carries the provider's id for the new call.
type InitiateResult struct {
	ExternalCallID string
}

// WebSession is a browser voice session grant for the embeddable widget.
type WebSession struct {
	SessionID   string `json:"session_id"`
	AccessToken string `json:"access_token,omitempty"`
	JoinURL     string `json:"join_url,omitempty"`
}

// CallSnapshot is a provider's view of one call, normalized.
type CallSnapshot struct {
	ExternalID      string
	AgentExternalID string
	Status          models.CallStatus
	Direction       models.CallDirection
	From            string
	To              string
	StartedAt       *time.Time
	EndedAt         *time.Time
	DurationSeconds int
	CostCents       int
	EndedReason     string
	Voicemail       bool
	Transcript      *string
	Summary         *string
	Meta            map[string]any
}

// EventKind classifies a normalized webhook event.
type EventKind string

// Event kinds.
const (
	// KindStarted: the call is live.
	KindStarted EventKind = "started"
	// KindUpdated: mid-call status movement.
	KindUpdated EventKind = "updated"
	// KindEnded: terminal; snapshot carries duration, cost and reason.
	KindEnded EventKind = "ended"
	// KindAnalyzed: post-call enrichment (final transcript, summary).
	KindAnalyzed EventKind = "analyzed"
	// KindUnknown: vendor event we deliberately ignore.
	KindUnknown EventKind = "unknown"
)

// NormalizedEvent is one webhook delivery translated to our vocabulary.
type NormalizedEvent struct {
	Kind EventKind
	Call CallSnapshot
}

// Adapter is implemented once per telephony vendor.
type Adapter interface {
	// Name returns the provider this adapter speaks for.
	Name() models.Provider

	// Initiate places an outbound call.
	Initiate(ctx context.Context, apiKey string, req InitiateRequest) (*InitiateResult, error)

	// End instructs the provider to hang up a live call.
	End(ctx context.Context, apiKey, externalCallID string) error

	// FetchCall reads the provider's current view of a call.
	FetchCall(ctx context.Context, apiKey, externalCallID string) (*CallSnapshot, error)

	// ListActiveCalls returns live calls for the given agents. Adapters
	// without a server-side filter fetch a bounded recent page and filter
	// locally.
	ListActiveCalls(ctx context.Context, apiKey string, agentExternalIDs []string) ([]CallSnapshot, error)

	// CreateWebSession opens a browser voice session for the widget.
	// Vendors without web calling return ErrWebSessionUnsupported.
	CreateWebSession(ctx context.Context, apiKey, agentExternalID string) (*WebSession, error)

	// VerifyWebhook authenticates a webhook delivery. The secret is
	// vendor-dependent: a tenant's provider key or a deployment-wide
	// webhook secret.
	VerifyWebhook(r *http.Request, body []byte, secret string) error

	// ParseWebhook translates a raw webhook body into a NormalizedEvent.
	// Events the system ignores come back with KindUnknown.
	ParseWebhook(body []byte) (*NormalizedEvent, error)
}
