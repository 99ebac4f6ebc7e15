package e2e

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paradyne-ai/callcore/pkg/events"
	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/provider"
)

// ────────────────────────────────────────────────────────────
// Seed helpers
// ────────────────────────────────────────────────────────────

// TenantSpec seeds a tenant. Zero window fields leave the calling window
// disabled; an empty ProviderAKey gets a usable default.
type TenantSpec struct {
	Name            string
	ProviderAKey    string
	WindowEnabled   bool
	WindowStartHour int
	WindowEndHour   int
	WindowDays      []int
}

func (app *TestApp) SeedTenant(t *testing.T, spec TenantSpec) *models.Tenant {
	t.Helper()
	name := spec.Name
	if name == "" {
		name = "acme-dental"
	}
	providerKey := spec.ProviderAKey
	if providerKey == "" {
		providerKey = "pa-key-test"
	}
	partnerKey := randomPartnerKey(t)

	tenant, err := app.Store.CreateTenant(context.Background(), &models.Tenant{
		Name:            name,
		PartnerAPIKey:   &partnerKey,
		ProviderAKey:    &providerKey,
		WindowEnabled:   spec.WindowEnabled,
		WindowStartHour: spec.WindowStartHour,
		WindowEndHour:   spec.WindowEndHour,
		WindowDays:      models.IntList(spec.WindowDays),
	})
	require.NoError(t, err)
	return tenant
}

func (app *TestApp) SeedAgent(t *testing.T, tenantID, externalID string) *models.Agent {
	t.Helper()
	agent, err := app.Store.CreateAgent(context.Background(), &models.Agent{
		TenantID:     tenantID,
		Name:         "Reception Follow-up",
		Provider:     models.ProviderA,
		ExternalID:   externalID,
		Config:       models.JSONMap{},
		WidgetConfig: models.JSONMap{},
	})
	require.NoError(t, err)
	return agent
}

// SeedCRMAIntegration connects the tenant to CRM A: the location id routes
// inbound triggers, the webhook secret signs them, and the api key
// authenticates outbound workflow actions.
func (app *TestApp) SeedCRMAIntegration(t *testing.T, tenantID, locationID, defaultAgentID string) *models.IntegrationConfig {
	t.Helper()
	icfg, err := app.Store.UpsertIntegrationConfig(context.Background(), &models.IntegrationConfig{
		TenantID:    tenantID,
		Integration: models.IntegrationCRMA,
		Enabled:     true,
		Config: models.JSONMap{
			"location_id":      locationID,
			"webhook_secret":   crmaWebhookSecret,
			"default_agent_id": defaultAgentID,
			"api_key":          crmaAPIKey,
		},
	})
	require.NoError(t, err)
	return icfg
}

// SeedWorkflow creates an enabled call-ended workflow with no conditions,
// matching any agent.
func (app *TestApp) SeedWorkflow(t *testing.T, tenantID string, actions models.ActionList) *models.Workflow {
	t.Helper()
	wf, err := app.Store.CreateWorkflow(context.Background(), &models.Workflow{
		TenantID:   tenantID,
		Name:       "post-call CRM sync",
		Enabled:    true,
		Trigger:    models.WorkflowTriggerCallEnded,
		Conditions: models.ConditionList{},
		Actions:    actions,
	})
	require.NoError(t, err)
	return wf
}

func (app *TestApp) SeedScheduledCall(t *testing.T, tenantID, agentID string, at time.Time) *models.ScheduledCall {
	t.Helper()
	sc, err := app.Store.InsertScheduledCall(context.Background(), &models.ScheduledCall{
		TenantID:      tenantID,
		AgentID:       agentID,
		PhoneNumber:   "+14155551234",
		TriggerSource: models.TriggerSourceAPI,
		Metadata:      models.JSONMap{},
		Status:        models.SchedulePending,
		ScheduledAt:   at,
		MaxRetries:    3,
	})
	require.NoError(t, err)
	return sc
}

func randomPartnerKey(t *testing.T) string {
	t.Helper()
	buf := make([]byte, 32)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	return "pdy_sk_" + hex.EncodeToString(buf)
}

// ────────────────────────────────────────────────────────────
// HTTP helpers
// ────────────────────────────────────────────────────────────

// TriggerCRMA signs and posts a CRM A trigger. The location_id is folded
// into the payload before signing, since the signature covers the exact
// bytes on the wire.
func (app *TestApp) TriggerCRMA(t *testing.T, locationID string, payload map[string]any, wantStatus int) map[string]any {
	t.Helper()
	body := map[string]any{"location_id": locationID}
	for k, v := range payload {
		body[k] = v
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	sig := provider.SignHexHMAC(crmaWebhookSecret, data)
	return app.postRaw(t, "/trigger/crm-a", data, map[string]string{"x-crm-a-signature": sig}, wantStatus)
}

// PostProviderAWebhook signs body with the given key and delivers it to the
// provider A webhook route.
func (app *TestApp) PostProviderAWebhook(t *testing.T, body []byte, signingKey string, wantStatus int) map[string]any {
	t.Helper()
	sig := provider.SignHexHMAC(signingKey, body)
	return app.postRaw(t, "/webhook/provider-a", body, map[string]string{provider.HeaderSignatureA: sig}, wantStatus)
}

// RunCronTick drives one scheduler pass through the cron endpoint and
// returns the tick report.
func (app *TestApp) RunCronTick(t *testing.T) map[string]any {
	t.Helper()
	report, err := app.tryCronTick()
	require.NoError(t, err)
	return report
}

// tryCronTick is RunCronTick without test assertions. Concurrency tests
// call it from goroutines and join before failing.
func (app *TestApp) tryCronTick() (map[string]any, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, app.BaseURL+"/cron/process-scheduled", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+testCronSecret)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cron tick returned status %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	report, ok := out["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("cron tick response missing data envelope")
	}
	return report, nil
}

func (app *TestApp) postRaw(t *testing.T, path string, body []byte, headers map[string]string, wantStatus int) map[string]any {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, app.BaseURL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Equal(t, wantStatus, resp.StatusCode, "POST %s: unexpected status, body %v", path, result)
	return result
}

// dataOf extracts the success envelope payload.
func dataOf(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	m, ok := resp["data"].(map[string]any)
	require.True(t, ok, "response has no data envelope: %v", resp)
	return m
}

// EndOfCallReport builds a provider A end-of-call-report delivery: 92
// seconds, $0.31, ended by the customer, with transcript and summary.
func EndOfCallReport(t *testing.T, externalID, assistantID, customerNumber string) []byte {
	t.Helper()
	body := map[string]any{
		"message": map[string]any{
			"type":            "end-of-call-report",
			"endedReason":     "customer-ended-call",
			"durationSeconds": 92,
			"cost":            0.31,
			"transcript":      "Agent: Hi, this is the reception desk calling back.\nLead: Great, let's book it.",
			"summary":         "Follow-up booked.",
			"call": map[string]any{
				"id":          externalID,
				"assistantId": assistantID,
				"type":        "outboundPhoneCall",
				"startedAt":   "2026-06-09T18:00:05Z",
				"endedAt":     "2026-06-09T18:01:37Z",
				"customer":    map[string]any{"number": customerNumber},
			},
		},
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return data
}

// ────────────────────────────────────────────────────────────
// Polling helpers
// ────────────────────────────────────────────────────────────

// WaitForCallStatus polls until the provider A call row reaches the wanted
// status. Webhook side effects run on the task pool, so even "synchronous"
// paths are polled.
func (app *TestApp) WaitForCallStatus(t *testing.T, externalID string, want models.CallStatus) *models.Call {
	t.Helper()
	var call *models.Call
	require.Eventually(t, func() bool {
		c, err := app.Store.GetCallByExternalID(context.Background(), models.ProviderA, externalID)
		if err != nil {
			return false
		}
		call = c
		return c.Status == want
	}, 10*time.Second, 50*time.Millisecond, "call %s never reached %s", externalID, want)
	return call
}

// WaitForTenantEvent polls the broadcast catch-up table until an event of
// the given type lands on the tenant channel, and returns its payload.
func (app *TestApp) WaitForTenantEvent(t *testing.T, tenantID, eventType string) map[string]any {
	t.Helper()
	var found map[string]any
	require.Eventually(t, func() bool {
		evs, err := app.Store.EventsSince(context.Background(), events.TenantChannel(tenantID), 0, 100)
		if err != nil {
			return false
		}
		for _, ev := range evs {
			var payload map[string]any
			if json.Unmarshal(ev.Payload, &payload) != nil {
				continue
			}
			if payload["type"] == eventType {
				found = payload
				return true
			}
		}
		return false
	}, 10*time.Second, 50*time.Millisecond, "no %s event on tenant channel", eventType)
	return found
}

// TenantEvents returns every catch-up row currently on the tenant channel.
func (app *TestApp) TenantEvents(t *testing.T, tenantID string) []models.Event {
	t.Helper()
	evs, err := app.Store.EventsSince(context.Background(), events.TenantChannel(tenantID), 0, 100)
	require.NoError(t, err)
	return evs
}

// WaitForExecutionLogs polls until at least n workflow execution logs exist
// for the call.
func (app *TestApp) WaitForExecutionLogs(t *testing.T, callID string, n int) []models.ExecutionLog {
	t.Helper()
	var logs []models.ExecutionLog
	require.Eventually(t, func() bool {
		ls, err := app.Store.ListExecutionLogsByCall(context.Background(), callID)
		if err != nil {
			return false
		}
		logs = ls
		return len(logs) >= n
	}, 10*time.Second, 50*time.Millisecond, "expected %d execution logs for call %s", n, callID)
	return logs
}

// toInt converts the numeric types json decoding produces.
func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case float32:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}
