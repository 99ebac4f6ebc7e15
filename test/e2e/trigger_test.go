package e2e

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// ────────────────────────────────────────────────────────────
// Outside the calling window: schedule, don't dial
// ────────────────────────────────────────────────────────────

func TestE2E_TriggerOutsideWindowSchedules(t *testing.T) {
	// Saturday 17:00 UTC is 10:00 in Los Angeles; the window below allows
	// Monday through Friday only.
	saturday := time.Date(2026, 6, 6, 17, 0, 0, 0, time.UTC)
	app := NewTestApp(t, WithClock(saturday))

	tenant := app.SeedTenant(t, TenantSpec{
		WindowEnabled:   true,
		WindowStartHour: 9,
		WindowEndHour:   20,
		WindowDays:      []int{1, 2, 3, 4, 5},
	})
	agent := app.SeedAgent(t, tenant.ID, "asst-e2e-1")
	app.SeedCRMAIntegration(t, tenant.ID, "loc-e2e-1", agent.ID)

	resp := app.TriggerCRMA(t, "loc-e2e-1", map[string]any{
		"phone_number": "+14155551234",
		"contact_id":   "c-77",
	}, http.StatusOK)
	result := dataOf(t, resp)

	assert.Equal(t, "scheduled", result["status"])
	assert.Equal(t, "America/Los_Angeles", result["lead_timezone"])
	assert.Equal(t, true, result["timezone_delayed"])
	assert.Equal(t, agent.Name, result["agent"])

	scheduledCallID, _ := result["scheduled_call_id"].(string)
	require.NotEmpty(t, scheduledCallID)

	// Monday 09:00 Pacific is 16:00 UTC.
	wantAt := time.Date(2026, 6, 8, 16, 0, 0, 0, time.UTC)
	gotAt, err := time.Parse(time.RFC3339, result["scheduled_at"].(string))
	require.NoError(t, err)
	assert.True(t, gotAt.Equal(wantAt), "scheduled_at = %s, want %s", gotAt, wantAt)

	// No provider traffic.
	assert.Equal(t, 0, app.ProviderA.Attempts())

	// The queue row carries the window decision.
	sc, err := app.Store.GetScheduledCall(context.Background(), scheduledCallID)
	require.NoError(t, err)
	assert.Equal(t, models.SchedulePending, sc.Status)
	assert.True(t, sc.ScheduledAt.Equal(wantAt), "row scheduled_at = %s, want %s", sc.ScheduledAt, wantAt)
	assert.True(t, sc.TimezoneDelayed)
	require.NotNil(t, sc.LeadTimezone)
	assert.Equal(t, "America/Los_Angeles", *sc.LeadTimezone)
	assert.Equal(t, "+14155551234", sc.PhoneNumber)
	assert.Equal(t, models.TriggerSourceCRMA, sc.TriggerSource)
	assert.Equal(t, 3, sc.MaxRetries)

	// Audit trail: one scheduled trigger log pointing at the queue row.
	logs, err := app.Store.ListTriggerLogs(context.Background(), tenant.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.TriggerScheduled, logs[0].Status)
	require.NotNil(t, logs[0].ScheduledCallID)
	assert.Equal(t, scheduledCallID, *logs[0].ScheduledCallID)

	// Dashboards hear about the deferral on the tenant channel.
	ev := app.WaitForTenantEvent(t, tenant.ID, "schedule.created")
	assert.Equal(t, scheduledCallID, ev["scheduled_call_id"])
	assert.Equal(t, "pending", ev["status"])
}

// ────────────────────────────────────────────────────────────
// Inside the window: dial now, then complete via webhook
// ────────────────────────────────────────────────────────────

func TestE2E_TriggerDispatchesAndWebhookCompletes(t *testing.T) {
	// Tuesday 18:00 UTC is 11:00 in Los Angeles, inside the window.
	tuesday := time.Date(2026, 6, 9, 18, 0, 0, 0, time.UTC)
	app := NewTestApp(t, WithClock(tuesday))

	tenant := app.SeedTenant(t, TenantSpec{
		ProviderAKey:    "pa-key-e2e",
		WindowEnabled:   true,
		WindowStartHour: 9,
		WindowEndHour:   20,
		WindowDays:      []int{1, 2, 3, 4, 5},
	})
	agent := app.SeedAgent(t, tenant.ID, "asst-e2e-2")
	app.SeedCRMAIntegration(t, tenant.ID, "loc-e2e-2", agent.ID)

	resp := app.TriggerCRMA(t, "loc-e2e-2", map[string]any{
		"phone_number": "+14155551234",
		"contact_id":   "c-77",
		"metadata":     map[string]any{"campaign": "q3-reactivation"},
	}, http.StatusOK)
	result := dataOf(t, resp)

	assert.Equal(t, "initiated", result["status"])
	assert.Equal(t, "America/Los_Angeles", result["lead_timezone"])
	assert.Equal(t, agent.Name, result["agent"])
	callID, _ := result["call_id"].(string)
	require.NotEmpty(t, callID)

	// The provider saw exactly one initiate carrying our attribution.
	require.Equal(t, 1, app.ProviderA.Attempts())
	initiate := app.ProviderA.Initiates()[0]
	assert.Equal(t, agent.ExternalID, initiate["assistantId"])
	customer, ok := initiate["customer"].(map[string]any)
	require.True(t, ok, "initiate body missing customer: %v", initiate)
	assert.Equal(t, "+14155551234", customer["number"])
	meta, ok := initiate["metadata"].(map[string]any)
	require.True(t, ok, "initiate body missing metadata: %v", initiate)
	assert.Equal(t, "crm_a", meta["trigger_source"])
	assert.Equal(t, "America/Los_Angeles", meta["lead_timezone"])
	assert.Equal(t, "c-77", meta["contact_id"])
	assert.Equal(t, "q3-reactivation", meta["campaign"])

	externalID := app.ProviderA.LastExternalID()

	// The trigger log records the provider call id.
	logs, err := app.Store.ListTriggerLogs(context.Background(), tenant.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.TriggerInitiated, logs[0].Status)
	require.NotNil(t, logs[0].CallExternalID)
	assert.Equal(t, externalID, *logs[0].CallExternalID)

	// The vendor reports the call ended.
	report := EndOfCallReport(t, externalID, agent.ExternalID, "+14155551234")
	ack := dataOf(t, app.PostProviderAWebhook(t, report, "pa-key-e2e", http.StatusOK))
	assert.Equal(t, true, ack["received"])

	call := app.WaitForCallStatus(t, externalID, models.CallCompleted)
	assert.Equal(t, callID, call.ID, "webhook must land on the row created at dispatch")
	assert.Equal(t, 92, call.DurationSeconds)
	assert.Equal(t, 31, call.CostCents)
	require.NotNil(t, call.EndedReason)
	assert.Equal(t, "customer-ended-call", *call.EndedReason)
	require.NotNil(t, call.Summary)
	assert.Equal(t, "Follow-up booked.", *call.Summary)

	// The terminal transition is broadcast for live dashboards.
	ev := app.WaitForTenantEvent(t, tenant.ID, "call.ended")
	assert.Equal(t, call.ID, ev["call_id"])
	assert.Equal(t, externalID, ev["external_id"])
	assert.Equal(t, "completed", ev["status"])
	assert.Equal(t, 92, toInt(ev["duration_seconds"]))
}
