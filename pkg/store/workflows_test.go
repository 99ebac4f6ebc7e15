package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paradyne-ai/callcore/pkg/models"
)

func TestStore_Workflows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fx := seedFixtures(t, s)

	tenantWide, err := s.CreateWorkflow(ctx, &models.Workflow{
		TenantID: fx.tenant.ID,
		Name:     "log all calls",
		Enabled:  true,
		Trigger:  models.WorkflowTriggerCallEnded,
		Actions:  models.ActionList{{Type: "crm_a_log_call", Config: map[string]any{}}},
	})
	require.NoError(t, err)

	agentScoped, err := s.CreateWorkflow(ctx, &models.Workflow{
		TenantID: fx.tenant.ID,
		AgentID:  &fx.agent.ID,
		Name:     "book on interest",
		Enabled:  true,
		Trigger:  models.WorkflowTriggerCallEnded,
		Conditions: models.ConditionList{
			{Field: "call.sentiment", Operator: models.OpEq, Value: "positive"},
		},
		Actions: models.ActionList{{Type: "calendar_book_event", Config: map[string]any{"duration_minutes": 30}}},
	})
	require.NoError(t, err)

	_, err = s.CreateWorkflow(ctx, &models.Workflow{
		TenantID: fx.tenant.ID,
		Name:     "disabled",
		Enabled:  false,
		Trigger:  models.WorkflowTriggerCallEnded,
	})
	require.NoError(t, err)

	_, err = s.CreateWorkflow(ctx, &models.Workflow{
		TenantID: fx.tenant.ID,
		Name:     "inbound only",
		Enabled:  true,
		Trigger:  models.WorkflowTriggerInboundCallEnded,
	})
	require.NoError(t, err)

	t.Run("agent scope includes tenant-wide workflows", func(t *testing.T) {
		wfs, err := s.ListWorkflowsForTrigger(ctx, fx.tenant.ID, &fx.agent.ID, models.WorkflowTriggerCallEnded)
		require.NoError(t, err)
		require.Len(t, wfs, 2)
		assert.Equal(t, tenantWide.ID, wfs[0].ID)
		assert.Equal(t, agentScoped.ID, wfs[1].ID)
	})

	t.Run("conditions and actions roundtrip", func(t *testing.T) {
		wfs, err := s.ListWorkflowsForTrigger(ctx, fx.tenant.ID, &fx.agent.ID, models.WorkflowTriggerCallEnded)
		require.NoError(t, err)
		require.Len(t, wfs[1].Conditions, 1)
		assert.Equal(t, "call.sentiment", wfs[1].Conditions[0].Field)
		require.Len(t, wfs[1].Actions, 1)
		assert.Equal(t, "calendar_book_event", wfs[1].Actions[0].Type)
		assert.EqualValues(t, 30, wfs[1].Actions[0].Config["duration_minutes"])
	})

	t.Run("nil agent matches only tenant-wide", func(t *testing.T) {
		wfs, err := s.ListWorkflowsForTrigger(ctx, fx.tenant.ID, nil, models.WorkflowTriggerCallEnded)
		require.NoError(t, err)
		require.Len(t, wfs, 1)
		assert.Equal(t, tenantWide.ID, wfs[0].ID)
	})
}

func TestStore_ExecutionLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fx := seedFixtures(t, s)

	wf, err := s.CreateWorkflow(ctx, &models.Workflow{
		TenantID: fx.tenant.ID,
		Name:     "wf",
		Enabled:  true,
		Trigger:  models.WorkflowTriggerCallEnded,
	})
	require.NoError(t, err)

	call, err := s.InsertCall(ctx, &models.Call{
		TenantID:   fx.tenant.ID,
		Provider:   models.ProviderA,
		ExternalID: "call_wf",
		Direction:  models.DirectionOutbound,
		Status:     models.CallCompleted,
	})
	require.NoError(t, err)

	started := time.Now().UTC().Add(-2 * time.Second)
	el, err := s.InsertExecutionLog(ctx, &models.ExecutionLog{
		WorkflowID:       wf.ID,
		CallID:           call.ID,
		TenantID:         fx.tenant.ID,
		Status:           models.WorkflowPartialFailure,
		ActionsTotal:     3,
		ActionsSucceeded: 2,
		ActionsFailed:    1,
		Results: models.ActionResultList{
			{Index: 0, Type: "crm_a_log_call", Status: models.ActionSuccess, Attempts: 1},
			{Index: 1, Type: "sms_send", Status: models.ActionFailed, Attempts: 3, Error: "upstream 500"},
			{Index: 2, Type: "chat_notify", Status: models.ActionSuccess, Attempts: 1},
		},
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowPartialFailure, el.Status)

	logs, err := s.ListExecutionLogsByCall(ctx, call.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Len(t, logs[0].Results, 3)
	assert.Equal(t, "sms_send", logs[0].Results[1].Type)
	assert.Equal(t, "upstream 500", logs[0].Results[1].Error)
}
