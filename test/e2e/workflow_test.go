package e2e

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// ────────────────────────────────────────────────────────────
// Call-ended workflow: one failing action, the rest still run
// ────────────────────────────────────────────────────────────

func TestE2E_WorkflowPartialFailure(t *testing.T) {
	app := NewTestApp(t)

	tenant := app.SeedTenant(t, TenantSpec{ProviderAKey: "pa-key-wf"})
	agent := app.SeedAgent(t, tenant.ID, "asst-e2e-5")
	app.SeedCRMAIntegration(t, tenant.ID, "loc-e2e-5", agent.ID)

	app.SeedWorkflow(t, tenant.ID, models.ActionList{
		{Type: "crm_a_add_tags", Config: map[string]any{"contact_id": "c-55", "tags": []any{"called", "qualified"}}},
		{Type: "crm_a_add_call_note", Config: map[string]any{"contact_id": "c-55", "body": "Outcome: {{call.summary}}"}},
		{Type: "crm_a_upsert_contact", Config: map[string]any{"name": "Dana Lead"}},
	})

	// The CRM rejects note creation; tags and upsert succeed.
	app.CRMA.FailPath("/notes", http.StatusBadRequest)

	report := EndOfCallReport(t, "ext-call-wf", agent.ExternalID, "+14155551234")
	app.PostProviderAWebhook(t, report, "pa-key-wf", http.StatusOK)

	call := app.WaitForCallStatus(t, "ext-call-wf", models.CallCompleted)
	logs := app.WaitForExecutionLogs(t, call.ID, 1)
	require.Len(t, logs, 1)

	log := logs[0]
	assert.Equal(t, models.WorkflowPartialFailure, log.Status)
	assert.Equal(t, 3, log.ActionsTotal)
	assert.Equal(t, 2, log.ActionsSucceeded)
	assert.Equal(t, 1, log.ActionsFailed)
	assert.Equal(t, 0, log.ActionsSkipped)

	require.Len(t, log.Results, 3)
	assert.Equal(t, "crm_a_add_tags", log.Results[0].Type)
	assert.Equal(t, models.ActionSuccess, log.Results[0].Status)

	assert.Equal(t, "crm_a_add_call_note", log.Results[1].Type)
	assert.Equal(t, models.ActionFailed, log.Results[1].Status)
	assert.Equal(t, 1, log.Results[1].Attempts, "a 400 is permanent and must not be retried")
	assert.Contains(t, log.Results[1].Error, "returned status 400")

	assert.Equal(t, "crm_a_upsert_contact", log.Results[2].Type)
	assert.Equal(t, models.ActionSuccess, log.Results[2].Status)

	// All three actions reached the CRM, in order, fully interpolated.
	reqs := app.CRMA.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "/contacts/c-55/tags", reqs[0].Path)
	assert.Equal(t, "/contacts/c-55/notes", reqs[1].Path)
	assert.Equal(t, "/contacts/upsert", reqs[2].Path)
	assert.Equal(t, "Outcome: Follow-up booked.", reqs[1].Body["body"])
	assert.Equal(t, "+14155551234", reqs[2].Body["phone"], "upsert defaults the phone to the lead number")
	assert.Equal(t, "loc-e2e-5", reqs[2].Body["locationId"])
}
