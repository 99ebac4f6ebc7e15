package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paradyne-ai/callcore/pkg/models"
)

func TestAdapterC_Initiate(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		_, _ = w.Write([]byte(`{"status":"success","call_id":"c-uuid-1"}`))
	}))
	defer server.Close()

	adapter := NewAdapterC(server.URL, server.Client())
	res, err := adapter.Initiate(context.Background(), "key-c", InitiateRequest{
		AgentExternalID: "pathway_77",
		To:              "+13035550123",
		From:            "+13035550100",
		Metadata:        map[string]any{"call_id": "internal-9"},
		PromptOverride:  "Ask about the follow-up visit.",
	})
	require.NoError(t, err)
	assert.Equal(t, "c-uuid-1", res.ExternalCallID)
	assert.Equal(t, "/v1/calls", gotPath)
	// Provider C auth is the bare key, no Bearer prefix.
	assert.Equal(t, "key-c", gotAuth)
	assert.Equal(t, "+13035550123", gotBody["phone_number"])
	assert.Equal(t, "pathway_77", gotBody["agent_id"])
	assert.Equal(t, "Ask about the follow-up visit.", gotBody["task"])
	assert.Equal(t, "internal-9", gotBody["request_data"].(map[string]any)["call_id"])
}

func TestAdapterC_End(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	adapter := NewAdapterC(server.URL, server.Client())
	require.NoError(t, adapter.End(context.Background(), "key-c", "c-uuid-1"))
	assert.Equal(t, "/v1/calls/c-uuid-1/stop", gotPath)
}

func TestAdapterC_FetchCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/calls/c-uuid-1", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"call_id": "c-uuid-1",
			"agent_id": "pathway_77",
			"completed": true,
			"call_length": 1.583,
			"corrected_duration": "95",
			"price": 0.119,
			"answered_by": "human",
			"started_at": "2026-06-09T16:00:00Z",
			"end_at": "2026-06-09T16:01:35Z",
			"to": "+13035550123",
			"from": "+13035550100",
			"concatenated_transcript": "AI: Hello..."
		}`))
	}))
	defer server.Close()

	adapter := NewAdapterC(server.URL, server.Client())
	snap, err := adapter.FetchCall(context.Background(), "key-c", "c-uuid-1")
	require.NoError(t, err)
	assert.Equal(t, models.CallCompleted, snap.Status)
	assert.Equal(t, 95, snap.DurationSeconds) // corrected seconds win over minutes
	assert.Equal(t, 12, snap.CostCents)
	assert.Equal(t, "+13035550123", snap.To)
	assert.False(t, snap.Voicemail)
}

func TestAdapterC_ListActiveCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/calls", r.URL.Path)
		assert.Equal(t, "completed=false", r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"calls":[
			{"call_id": "c1", "agent_id": "pathway_77", "queue_status": "started"},
			{"call_id": "c2", "agent_id": "pathway_08", "queue_status": "queued"}
		]}`))
	}))
	defer server.Close()

	adapter := NewAdapterC(server.URL, server.Client())
	calls, err := adapter.ListActiveCalls(context.Background(), "key-c", []string{"pathway_77"})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "c1", calls[0].ExternalID)
	assert.Equal(t, models.CallInProgress, calls[0].Status)
}

func TestAdapterC_CreateWebSession(t *testing.T) {
	adapter := NewAdapterC("", nil)
	_, err := adapter.CreateWebSession(context.Background(), "key-c", "pathway_77")
	assert.ErrorIs(t, err, ErrWebSessionUnsupported)
}

func TestAdapterC_VerifyWebhook(t *testing.T) {
	adapter := NewAdapterC("", nil)
	body := []byte(`{"call_id":"c-uuid-1","completed":true}`)
	const path = "/webhooks/provider-c"

	sign := func(secret string, ts int64) *http.Request {
		r := httptest.NewRequest(http.MethodPost, path, nil)
		r.Header.Set(HeaderSignatureC, SignTimestampedHMAC(secret, http.MethodPost, path, ts, body))
		r.Header.Set(HeaderTimestampC, strconv.FormatInt(ts, 10))
		return r
	}

	t.Run("accepts a fresh correctly signed request", func(t *testing.T) {
		r := sign("tenant-key", time.Now().Unix())
		assert.NoError(t, adapter.VerifyWebhook(r, body, "tenant-key"))
	})

	t.Run("rejects a stale timestamp", func(t *testing.T) {
		r := sign("tenant-key", time.Now().Add(-10*time.Minute).Unix())
		assert.ErrorIs(t, adapter.VerifyWebhook(r, body, "tenant-key"), ErrBadSignature)
	})

	t.Run("rejects a wrong secret", func(t *testing.T) {
		r := sign("other-key", time.Now().Unix())
		assert.ErrorIs(t, adapter.VerifyWebhook(r, body, "tenant-key"), ErrBadSignature)
	})

	t.Run("rejects a replayed signature on another path", func(t *testing.T) {
		ts := time.Now().Unix()
		r := httptest.NewRequest(http.MethodPost, "/webhooks/other", nil)
		r.Header.Set(HeaderSignatureC, SignTimestampedHMAC("tenant-key", http.MethodPost, path, ts, body))
		r.Header.Set(HeaderTimestampC, strconv.FormatInt(ts, 10))
		assert.ErrorIs(t, adapter.VerifyWebhook(r, body, "tenant-key"), ErrBadSignature)
	})

	t.Run("rejects a garbage timestamp", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, path, nil)
		r.Header.Set(HeaderSignatureC, "sig")
		r.Header.Set(HeaderTimestampC, "not-a-number")
		assert.ErrorIs(t, adapter.VerifyWebhook(r, body, "tenant-key"), ErrBadSignature)
	})
}

func TestAdapterC_ParseWebhook(t *testing.T) {
	adapter := NewAdapterC("", nil)

	t.Run("end of call payload", func(t *testing.T) {
		event, err := adapter.ParseWebhook([]byte(`{
			"call_id": "c-uuid-1",
			"agent_id": "pathway_77",
			"completed": true,
			"call_length": 1.583,
			"price": 0.1185,
			"answered_by": "human",
			"to": "+13035550123",
			"from": "+13035550100",
			"concatenated_transcript": "AI: Hello...",
			"summary": "Scheduled the follow-up.",
			"request_data": {"call_id": "internal-9"}
		}`))
		require.NoError(t, err)
		assert.Equal(t, KindEnded, event.Kind)
		assert.Equal(t, models.CallCompleted, event.Call.Status)
		assert.Equal(t, 95, event.Call.DurationSeconds) // 1.583 minutes
		assert.Equal(t, 12, event.Call.CostCents)
		assert.Equal(t, "internal-9", event.Call.Meta["call_id"])
		require.NotNil(t, event.Call.Summary)
	})

	t.Run("voicemail answer sets the flag", func(t *testing.T) {
		event, err := adapter.ParseWebhook([]byte(`{"call_id":"c-uuid-1","completed":true,"answered_by":"voicemail","call_length":0.5}`))
		require.NoError(t, err)
		assert.Equal(t, models.CallCompleted, event.Call.Status)
		assert.True(t, event.Call.Voicemail)
	})

	t.Run("no answer fails the call", func(t *testing.T) {
		event, err := adapter.ParseWebhook([]byte(`{"call_id":"c-uuid-1","completed":true,"answered_by":"no-answer"}`))
		require.NoError(t, err)
		assert.Equal(t, models.CallFailed, event.Call.Status)
		assert.Equal(t, "no-answer", event.Call.EndedReason)
	})

	t.Run("vendor error message fails the call", func(t *testing.T) {
		event, err := adapter.ParseWebhook([]byte(`{"call_id":"c-uuid-1","completed":true,"error_message":"carrier rejected"}`))
		require.NoError(t, err)
		assert.Equal(t, models.CallFailed, event.Call.Status)
		assert.Equal(t, "carrier rejected", event.Call.EndedReason)
	})

	t.Run("missing call id is an error", func(t *testing.T) {
		_, err := adapter.ParseWebhook([]byte(`{"completed":true}`))
		require.Error(t, err)
	})
}
