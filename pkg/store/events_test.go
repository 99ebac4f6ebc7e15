package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paradyne-ai/callcore/pkg/models"
)

func TestStore_Events(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fx := seedFixtures(t, s)

	channel := "tenant:" + fx.tenant.ID
	for _, payload := range []string{
		`{"type":"call.started","call_id":"c1"}`,
		`{"type":"call.updated","call_id":"c1"}`,
		`{"type":"call.ended","call_id":"c1"}`,
	} {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO events (tenant_id, channel, payload) VALUES ($1, $2, $3)`,
			fx.tenant.ID, channel, payload)
		require.NoError(t, err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (tenant_id, channel, payload) VALUES ($1, $2, $3)`,
		fx.tenant.ID, "tenant:other", `{"type":"call.started"}`)
	require.NoError(t, err)

	t.Run("pages by id within channel", func(t *testing.T) {
		all, err := s.EventsSince(ctx, channel, 0, 10)
		require.NoError(t, err)
		require.Len(t, all, 3)

		rest, err := s.EventsSince(ctx, channel, all[0].ID, 10)
		require.NoError(t, err)
		require.Len(t, rest, 2)
		assert.Greater(t, rest[0].ID, all[0].ID)
		assert.JSONEq(t, `{"type":"call.updated","call_id":"c1"}`, string(rest[0].Payload))
	})

	t.Run("limit caps the page", func(t *testing.T) {
		page, err := s.EventsSince(ctx, channel, 0, 2)
		require.NoError(t, err)
		assert.Len(t, page, 2)
	})

	t.Run("retention delete", func(t *testing.T) {
		n, err := s.DeleteEventsBefore(ctx, time.Now().UTC().Add(time.Minute))
		require.NoError(t, err)
		assert.EqualValues(t, 4, n)

		empty, err := s.EventsSince(ctx, channel, 0, 10)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestStore_TriggerLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fx := seedFixtures(t, s)

	for i, status := range []models.TriggerLogStatus{models.TriggerInitiated, models.TriggerScheduled, models.TriggerFailed} {
		_, err := s.InsertTriggerLog(ctx, &models.TriggerLog{
			TenantID:    &fx.tenant.ID,
			Source:      models.TriggerSourceCRMA,
			Status:      status,
			PhoneNumber: ptrIf(i != 2, "+14155550123"),
			Payload:     models.JSONMap{"contact_id": "c-1"},
		})
		require.NoError(t, err)
	}

	t.Run("list newest first", func(t *testing.T) {
		logs, err := s.ListTriggerLogs(ctx, fx.tenant.ID, 10)
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.Equal(t, models.TriggerFailed, logs[0].Status)
	})

	t.Run("retention delete", func(t *testing.T) {
		n, err := s.DeleteTriggerLogsBefore(ctx, time.Now().UTC().Add(time.Minute))
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)
	})
}

func ptrIf(cond bool, s string) *string {
	if !cond {
		return nil
	}
	return &s
}
