package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/version"
)

const (
	requestTimeout = 10 * time.Second

	// maxResponseBytes bounds vendor responses; transcripts dominate.
	maxResponseBytes = 8 << 20
)

// httpClient is the shared vendor API transport: one circuit breaker per
// provider, bounded timeouts, and failure classification. Vendor outages
// (timeouts, 429, 5xx) trip the breaker; vendor rejections (other 4xx) do
// not — they mean the request itself is wrong.
type httpClient struct {
	provider models.Provider
	base     string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

func newHTTPClient(p models.Provider, base string, hc *http.Client) *httpClient {
	if hc == nil {
		hc = &http.Client{Timeout: requestTimeout}
	}
	return &httpClient{
		provider: p,
		base:     strings.TrimRight(base, "/"),
		client:   hc,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "provider_" + string(p),
			MaxRequests: 3,
			Interval:    2 * time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("Provider circuit state changed",
					"breaker", name, "from", from.String(), "to", to.String())
			},
		}),
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
			return &Error{Provider: h.provider, Op: op, Message: fmt.Sprintf("marshal request: %v", err)}
		}
	}

	result, execErr := h.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, h.base+path, bytes.NewReader(body))
		if err != nil {
			return nil, &Error{Provider: h.provider, Op: op, Message: err.Error()}
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("User-Agent", version.UserAgent())
		setAuth(req)

		resp, err := h.client.Do(req)
		if err != nil {
			return nil, &Error{Provider: h.provider, Op: op, Message: err.Error(), Transient: true}
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, &Error{Provider: h.provider, Op: op, Message: err.Error(), Transient: true}
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return data, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, &Error{
				Provider: h.provider, Op: op,
				StatusCode: resp.StatusCode,
				Message:    truncate(string(data), 300),
				Transient:  true,
			}
		default:
			// The vendor rejected this request; the vendor itself is
			// healthy. Return the error as the result so the breaker
			// records a success.
			return &Error{
				Provider: h.provider, Op: op,
				StatusCode: resp.StatusCode,
				Message:    truncate(string(data), 300),
			}, nil
		}
	})
	if execErr != nil {
		if errors.Is(execErr, gobreaker.ErrOpenState) || errors.Is(execErr, gobreaker.ErrTooManyRequests) {
			return &Error{Provider: h.provider, Op: op, Message: "circuit open", Transient: true}
		}
		return execErr
	}
	if rejected, ok := result.(*Error); ok {
		return rejected
	}
	if data := result.([]byte); out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &Error{Provider: h.provider, Op: op, Message: fmt.Sprintf("decode response: %v", err)}
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

func bearerAuth(key string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+key)
	}
}

func rawAuth(key string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", key)
	}
}
