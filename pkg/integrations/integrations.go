// Package integrations holds the tenant-facing vendor clients the workflow
// executor dispatches to: CRM A (static API key), CRM B and the calendar
// vendor (OAuth with single-use refresh tokens), the scheduling vendor, and
// the chat webhook. Clients are stateless; per-tenant credentials come from
// the integration config row passed into each call. Retry policy lives in
// the executor — clients only classify failures as retryable or not.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/version"
)

const (
	requestTimeout = 15 * time.Second

	// maxResponseBytes bounds vendor responses. Integration payloads are
	// small; anything larger is a misbehaving endpoint.
	maxResponseBytes = 4 << 20
)

// Error is a classified integration failure. Transient failures (network,
// 429, 5xx) are worth retrying; the rest mean the request itself is wrong.
type Error struct {
	Integration models.Integration
	Op          string
	StatusCode  int
	Message     string
	Transient   bool
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("integration %s: %s returned status %d: %s", e.Integration, e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("integration %s: %s failed: %s", e.Integration, e.Op, e.Message)
}

// Retryable reports whether retrying the same request may succeed.
func (e *Error) Retryable() bool {
	return e.Transient
}

// IsRetryable reports whether err carries a retryable integration failure.
// Unrecognized errors count as retryable; only a definite vendor rejection
// is final.
func IsRetryable(err error) bool {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Transient
	}
	return true
}

// httpClient is the shared vendor transport: bounded timeouts, JSON
// round-trips, and failure classification.
type httpClient struct {
	integration models.Integration
	base        string
	client      *http.Client
}

func newHTTPClient(i models.Integration, base string, hc *http.Client) *httpClient {
	if hc == nil {
		hc = &http.Client{Timeout: requestTimeout}
	}
	return &httpClient{
		integration: i,
		base:        strings.TrimRight(base, "/"),
		client:      hc,
	}
}

// do executes one vendor API call and decodes the JSON response into out
// (out nil skips decoding). setAuth applies the vendor's auth header.
func (h *httpClient) do(ctx context.Context, op, method, path string, setAuth func(*http.Request), payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return &Error{Integration: h.integration, Op: op, Message: fmt.Sprintf("marshal request: %v", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, h.base+path, bytes.NewReader(body))
	if err != nil {
		return &Error{Integration: h.integration, Op: op, Message: err.Error()}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", version.UserAgent())
	setAuth(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return &Error{Integration: h.integration, Op: op, Message: err.Error(), Transient: true}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Integration: h.integration, Op: op, Message: err.Error(), Transient: true}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Integration: h.integration, Op: op,
			StatusCode: resp.StatusCode,
			Message:    truncate(string(data), 300),
			Transient:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &Error{Integration: h.integration, Op: op, Message: fmt.Sprintf("decode response: %v", err)}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func bearerAuth(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

// Config wires the vendor endpoints. Base URLs default to the production
// hosts; tests point them at local servers.
type Config struct {
	CRMABaseURL     string
	CRMBBaseURL     string
	CalendarBaseURL string
	SchedBaseURL    string
	HTTPClient      *http.Client
}

// Clients bundles every integration client the workflow executor needs.
type Clients struct {
	CRMA     *CRMAClient
	CRMB     *CRMBClient
	Calendar *CalendarClient
	Sched    *SchedClient
	Chat     *ChatClient
}

// NewClients builds the full client set. tokens may be nil when no
// OAuth-backed integration is configured; CRM B and calendar calls then
// fail with a configuration error.
func NewClients(cfg Config, tokens *TokenRefresher) *Clients {
	return &Clients{
		CRMA:     NewCRMA(cfg.CRMABaseURL, cfg.HTTPClient),
		CRMB:     NewCRMB(cfg.CRMBBaseURL, cfg.HTTPClient, tokens),
		Calendar: NewCalendar(cfg.CalendarBaseURL, cfg.HTTPClient, tokens),
		Sched:    NewSched(cfg.SchedBaseURL, cfg.HTTPClient),
		Chat:     NewChat(cfg.HTTPClient),
	}
}
