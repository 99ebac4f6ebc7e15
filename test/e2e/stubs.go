package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// ProviderAStub fakes the provider A call API. It records every initiate
// body, hands out sequential external call ids, and can be told to fail the
// next n attempts to exercise the retry path. Failed attempts never consume
// an id.
type ProviderAStub struct {
	srv *httptest.Server

	mu            sync.Mutex
	attempts      int
	initiates     []map[string]any
	failRemaining int
	failStatus    int
	delay         time.Duration
}

func NewProviderAStub(t *testing.T) *ProviderAStub {
	t.Helper()
	s := &ProviderAStub{}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *ProviderAStub) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/call" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	s.mu.Lock()
	s.attempts++
	fail := s.failRemaining > 0
	if fail {
		s.failRemaining--
	}
	status := s.failStatus
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	w.Header().Set("Content-Type", "application/json")
	if fail {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "injected failure"})
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.initiates = append(s.initiates, body)
	id := fmt.Sprintf("ext-call-%d", len(s.initiates))
	s.mu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "status": "queued"})
}

// URL is the stub's base URL for the adapter registry.
func (s *ProviderAStub) URL() string { return s.srv.URL }

// FailNext makes the next n initiate attempts answer with the given status.
func (s *ProviderAStub) FailNext(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRemaining = n
	s.failStatus = status
}

// SetDelay holds every initiate open for d before answering.
func (s *ProviderAStub) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Attempts counts every initiate hit, including injected failures.
func (s *ProviderAStub) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Initiates returns the decoded bodies of successful initiates, in order.
func (s *ProviderAStub) Initiates() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.initiates))
	copy(out, s.initiates)
	return out
}

// LastExternalID returns the id handed to the most recent successful
// initiate.
func (s *ProviderAStub) LastExternalID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("ext-call-%d", len(s.initiates))
}

// CRMARequest is one call recorded by the CRM A stub.
type CRMARequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// CRMAStub fakes the CRM A REST API for workflow actions. Individual
// endpoints can be failed by path suffix.
type CRMAStub struct {
	srv *httptest.Server

	mu        sync.Mutex
	requests  []CRMARequest
	failPaths map[string]int
}

func NewCRMAStub(t *testing.T) *CRMAStub {
	t.Helper()
	s := &CRMAStub{failPaths: map[string]int{}}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *CRMAStub) handle(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	s.requests = append(s.requests, CRMARequest{Method: r.Method, Path: r.URL.Path, Body: body})
	status := 0
	for suffix, code := range s.failPaths {
		if strings.HasSuffix(r.URL.Path, suffix) {
			status = code
			break
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "injected failure"})
		return
	}

	if strings.HasSuffix(r.URL.Path, "/contacts/upsert") {
		_ = json.NewEncoder(w).Encode(map[string]any{"contact": map[string]any{"id": "crm-contact-1"}})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"succeeded": true})
}

// URL is the stub's base URL for the integration clients.
func (s *CRMAStub) URL() string { return s.srv.URL }

// FailPath makes every request whose path ends in suffix answer with the
// given status.
func (s *CRMAStub) FailPath(suffix string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPaths[suffix] = status
}

// Requests returns everything recorded so far, in arrival order.
func (s *CRMAStub) Requests() []CRMARequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CRMARequest, len(s.requests))
	copy(out, s.requests)
	return out
}
