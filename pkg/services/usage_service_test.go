package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paradyne-ai/callcore/pkg/models"
)

func TestPerMinuteCostCents(t *testing.T) {
	tests := []struct {
		name    string
		seconds int
		rate    int
		want    int64
	}{
		{name: "partial minute rounds up", seconds: 95, rate: 10, want: 16},
		{name: "one second over rounds up", seconds: 61, rate: 10, want: 11},
		{name: "exact minute", seconds: 60, rate: 10, want: 10},
		{name: "one second still bills a minute", seconds: 1, rate: 10, want: 1},
		{name: "long call", seconds: 3600, rate: 25, want: 1500},
		{name: "zero duration", seconds: 0, rate: 10, want: 0},
		{name: "negative duration", seconds: -5, rate: 10, want: 0},
		{name: "zero rate", seconds: 95, rate: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PerMinuteCostCents(tt.seconds, tt.rate))
		})
	}
}

func TestPeriod(t *testing.T) {
	t.Run("formats UTC month", func(t *testing.T) {
		assert.Equal(t, "2026-06", Period(time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)))
	})

	t.Run("converts zone before formatting", func(t *testing.T) {
		// 03:00 on March 1st at UTC+5 is still February in UTC.
		plus5 := time.FixedZone("UTC+5", 5*3600)
		assert.Equal(t, "2026-02", Period(time.Date(2026, 3, 1, 3, 0, 0, 0, plus5)))
	})
}

func TestUsageService_RecordCompletedCall(t *testing.T) {
	ctx := context.Background()

	endedAt := time.Date(2026, 6, 9, 18, 30, 0, 0, time.UTC)
	completedCall := func() *models.Call {
		return &models.Call{
			ID:              "call-1",
			TenantID:        "t-1",
			SubTenantID:     lo.ToPtr("st-1"),
			Status:          models.CallCompleted,
			DurationSeconds: 95,
			EndedAt:         &endedAt,
		}
	}

	t.Run("per-minute sub-tenant accrues usage", func(t *testing.T) {
		st := newFakeStore()
		svc := NewUsageService(st)

		err := svc.RecordCompletedCall(ctx, completedCall(), testSubTenant())
		require.NoError(t, err)

		require.Len(t, st.usageAdds, 1)
		add := st.usageAdds[0]
		assert.Equal(t, "t-1", add.tenantID)
		assert.Equal(t, "st-1", *add.subTenantID)
		assert.Equal(t, "2026-06", add.period)
		assert.Equal(t, int64(95), add.seconds)
		assert.Equal(t, int64(16), add.amountCents)
	})

	t.Run("falls back to now when ended_at is missing", func(t *testing.T) {
		st := newFakeStore()
		svc := NewUsageService(st)
		svc.now = func() time.Time { return time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC) }

		call := completedCall()
		call.EndedAt = nil
		require.NoError(t, svc.RecordCompletedCall(ctx, call, testSubTenant()))

		require.Len(t, st.usageAdds, 1)
		assert.Equal(t, "2026-07", st.usageAdds[0].period)
	})

	t.Run("subscription billing records nothing", func(t *testing.T) {
		st := newFakeStore()
		svc := NewUsageService(st)

		sub := testSubTenant()
		sub.BillingType = models.BillingSubscription
		require.NoError(t, svc.RecordCompletedCall(ctx, completedCall(), sub))
		assert.Empty(t, st.usageAdds)
	})

	t.Run("nil sub-tenant records nothing", func(t *testing.T) {
		st := newFakeStore()
		svc := NewUsageService(st)

		require.NoError(t, svc.RecordCompletedCall(ctx, completedCall(), nil))
		assert.Empty(t, st.usageAdds)
	})

	t.Run("failed call records nothing", func(t *testing.T) {
		st := newFakeStore()
		svc := NewUsageService(st)

		call := completedCall()
		call.Status = models.CallFailed
		require.NoError(t, svc.RecordCompletedCall(ctx, call, testSubTenant()))
		assert.Empty(t, st.usageAdds)
	})

	t.Run("zero duration records nothing", func(t *testing.T) {
		st := newFakeStore()
		svc := NewUsageService(st)

		call := completedCall()
		call.DurationSeconds = 0
		require.NoError(t, svc.RecordCompletedCall(ctx, call, testSubTenant()))
		assert.Empty(t, st.usageAdds)
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		st := newFakeStore()
		st.addUsageErr = errors.New("connection reset")
		svc := NewUsageService(st)

		err := svc.RecordCompletedCall(ctx, completedCall(), testSubTenant())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to record call usage")
	})
}

func TestUsageService_Usage(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored counter", func(t *testing.T) {
		st := newFakeStore()
		st.usage["t-1/st-1/2026-06"] = &models.UsageCounter{
			TenantID:    "t-1",
			SubTenantID: "st-1",
			Period:      "2026-06",
			Seconds:     600,
			AmountCents: 100,
			Calls:       4,
		}
		svc := NewUsageService(st)

		counter, err := svc.Usage(ctx, "t-1", lo.ToPtr("st-1"), "2026-06")
		require.NoError(t, err)
		assert.Equal(t, int64(600), counter.Seconds)
		assert.Equal(t, int64(100), counter.AmountCents)
		assert.Equal(t, 4, counter.Calls)
	})

	t.Run("empty period defaults to current month", func(t *testing.T) {
		st := newFakeStore()
		st.usage["t-1//2026-08"] = &models.UsageCounter{TenantID: "t-1", Period: "2026-08", Calls: 2}
		svc := NewUsageService(st)
		svc.now = func() time.Time { return time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC) }

		counter, err := svc.Usage(ctx, "t-1", nil, "")
		require.NoError(t, err)
		assert.Equal(t, "2026-08", counter.Period)
		assert.Equal(t, 2, counter.Calls)
	})

	t.Run("unrecorded period reads as zeroed counter", func(t *testing.T) {
		st := newFakeStore()
		svc := NewUsageService(st)

		counter, err := svc.Usage(ctx, "t-1", lo.ToPtr("st-1"), "2025-01")
		require.NoError(t, err)
		assert.Equal(t, "t-1", counter.TenantID)
		assert.Equal(t, "st-1", counter.SubTenantID)
		assert.Equal(t, "2025-01", counter.Period)
		assert.Zero(t, counter.Seconds)
		assert.Zero(t, counter.AmountCents)
		assert.Zero(t, counter.Calls)
	})

	t.Run("rejects malformed periods", func(t *testing.T) {
		svc := NewUsageService(newFakeStore())

		for _, period := range []string{"2026-13", "2026-00", "garbage", "202606", "2026-6"} {
			_, err := svc.Usage(ctx, "t-1", nil, period)
			require.Error(t, err, "period %q", period)
			assert.True(t, IsValidationError(err), "period %q", period)
		}
	})
}
