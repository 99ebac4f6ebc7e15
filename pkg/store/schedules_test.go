package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paradyne-ai/callcore/pkg/models"
)

func enqueueAt(t *testing.T, s *Store, fx fixtures, at time.Time) *models.ScheduledCall {
	t.Helper()
	sc, err := s.InsertScheduledCall(context.Background(), &models.ScheduledCall{
		TenantID:      fx.tenant.ID,
		SubTenantID:   &fx.sub.ID,
		AgentID:       fx.agent.ID,
		PhoneNumber:   "+14155550123",
		TriggerSource: models.TriggerSourceAPI,
		Metadata:      models.JSONMap{"contact_id": "c-1"},
		ScheduledAt:   at,
		MaxRetries:    2,
	})
	require.NoError(t, err)
	return sc
}

func TestStore_ScheduledCallQueue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fx := seedFixtures(t, s)
	now := time.Now().UTC()

	t.Run("insert stamps original_scheduled_at", func(t *testing.T) {
		sc := enqueueAt(t, s, fx, now.Add(time.Hour))
		assert.Equal(t, models.SchedulePending, sc.Status)
		require.NotNil(t, sc.OriginalScheduledAt)
		assert.WithinDuration(t, sc.ScheduledAt, *sc.OriginalScheduledAt, time.Millisecond)
	})

	t.Run("due batch returns oldest first and honors limit", func(t *testing.T) {
		oldest := enqueueAt(t, s, fx, now.Add(-3*time.Hour))
		middle := enqueueAt(t, s, fx, now.Add(-2*time.Hour))
		enqueueAt(t, s, fx, now.Add(-1*time.Hour))

		due, err := s.DueScheduledCalls(ctx, now, 2)
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, oldest.ID, due[0].ID)
		assert.Equal(t, middle.ID, due[1].ID)
	})

	t.Run("future rows are not due", func(t *testing.T) {
		due, err := s.DueScheduledCalls(ctx, now, 100)
		require.NoError(t, err)
		for _, sc := range due {
			assert.False(t, sc.ScheduledAt.After(now))
		}
	})

	t.Run("lease wins once", func(t *testing.T) {
		sc := enqueueAt(t, s, fx, now.Add(-time.Minute))

		ok, err := s.LeaseScheduledCall(ctx, sc.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		again, err := s.LeaseScheduledCall(ctx, sc.ID)
		require.NoError(t, err)
		assert.False(t, again)

		got, err := s.GetScheduledCall(ctx, sc.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ScheduleInProgress, got.Status)
	})

	t.Run("reschedule releases lease without consuming retry", func(t *testing.T) {
		sc := enqueueAt(t, s, fx, now.Add(-time.Minute))
		ok, err := s.LeaseScheduledCall(ctx, sc.ID)
		require.NoError(t, err)
		require.True(t, ok)

		nextOpen := now.Add(12 * time.Hour)
		require.NoError(t, s.RescheduleCall(ctx, sc.ID, nextOpen, true))

		got, err := s.GetScheduledCall(ctx, sc.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SchedulePending, got.Status)
		assert.True(t, got.TimezoneDelayed)
		assert.Equal(t, 0, got.RetryCount)
		assert.WithinDuration(t, nextOpen, got.ScheduledAt, time.Millisecond)
		require.NotNil(t, got.OriginalScheduledAt)
		assert.WithinDuration(t, now.Add(-time.Minute), *got.OriginalScheduledAt, time.Second)
	})

	t.Run("retry bumps count and records error", func(t *testing.T) {
		sc := enqueueAt(t, s, fx, now.Add(-time.Minute))
		ok, err := s.LeaseScheduledCall(ctx, sc.ID)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, s.RetryScheduledCall(ctx, sc.ID, now.Add(5*time.Minute), "provider timeout"))

		got, err := s.GetScheduledCall(ctx, sc.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SchedulePending, got.Status)
		assert.Equal(t, 1, got.RetryCount)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, "provider timeout", *got.ErrorMessage)
	})

	t.Run("complete records external call id and clears error", func(t *testing.T) {
		sc := enqueueAt(t, s, fx, now.Add(-time.Minute))
		ok, err := s.LeaseScheduledCall(ctx, sc.ID)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, s.RetryScheduledCall(ctx, sc.ID, now, "first failure"))
		ok, err = s.LeaseScheduledCall(ctx, sc.ID)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, s.CompleteScheduledCall(ctx, sc.ID, "call_ext_9"))

		got, err := s.GetScheduledCall(ctx, sc.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ScheduleCompleted, got.Status)
		require.NotNil(t, got.ExternalCallID)
		assert.Equal(t, "call_ext_9", *got.ExternalCallID)
		assert.Nil(t, got.ErrorMessage)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("fail is terminal", func(t *testing.T) {
		sc := enqueueAt(t, s, fx, now.Add(-time.Minute))
		ok, err := s.LeaseScheduledCall(ctx, sc.ID)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, s.FailScheduledCall(ctx, sc.ID, "max retries exceeded"))

		got, err := s.GetScheduledCall(ctx, sc.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ScheduleFailed, got.Status)

		again, err := s.LeaseScheduledCall(ctx, sc.ID)
		require.NoError(t, err)
		assert.False(t, again)
	})

	t.Run("cancel only touches pending rows", func(t *testing.T) {
		sc := enqueueAt(t, s, fx, now.Add(time.Hour))
		ok, err := s.CancelScheduledCall(ctx, fx.tenant.ID, sc.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		again, err := s.CancelScheduledCall(ctx, fx.tenant.ID, sc.ID)
		require.NoError(t, err)
		assert.False(t, again)
	})
}

// TestStore_LeaseRace drives concurrent leases at one row; the compare-and-set
// must admit exactly one winner.
func TestStore_LeaseRace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fx := seedFixtures(t, s)

	sc := enqueueAt(t, s, fx, time.Now().UTC().Add(-time.Minute))

	const workers = 8
	var wg sync.WaitGroup
	wins := make(chan bool, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.LeaseScheduledCall(ctx, sc.ID)
			assert.NoError(t, err)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for ok := range wins {
		if ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}
