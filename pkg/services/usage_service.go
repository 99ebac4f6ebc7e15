package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/store"
)

var periodRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

type usageStore interface {
	AddUsage(ctx context.Context, tenantID string, subTenantID *string, period string, seconds, amountCents int64) error
	GetUsage(ctx context.Context, tenantID string, subTenantID *string, period string) (*models.UsageCounter, error)
}

// UsageService accumulates billable call usage per (tenant, sub-tenant,
// month) and reads the counters back.
type UsageService struct {
	store usageStore
	now   func() time.Time
}

// NewUsageService creates a UsageService.
func NewUsageService(st usageStore) *UsageService {
	return &UsageService{store: st, now: time.Now}
}

// PerMinuteCostCents prices a call at a cents-per-minute rate, rounding the
// final partial minute up.
func PerMinuteCostCents(durationSeconds, rateCents int) int64 {
	if durationSeconds <= 0 || rateCents <= 0 {
		return 0
	}
	return (int64(durationSeconds)*int64(rateCents) + 59) / 60
}

// Period formats t as a UTC billing period, "YYYY-MM".
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// RecordCompletedCall adds one completed call to the usage counters. Only
// per-minute sub-tenants accrue an amount; calls without a duration are
// ignored entirely.
func (s *UsageService) RecordCompletedCall(ctx context.Context, call *models.Call, st *models.SubTenant) error {
	if call.Status != models.CallCompleted || call.DurationSeconds <= 0 {
		return nil
	}
	if st == nil || st.BillingType != models.BillingPerMinute {
		return nil
	}

	endedAt := s.now()
	if call.EndedAt != nil {
		endedAt = *call.EndedAt
	}
	amount := PerMinuteCostCents(call.DurationSeconds, st.PerMinuteRateCents)

	err := s.store.AddUsage(ctx, call.TenantID, call.SubTenantID, Period(endedAt),
		int64(call.DurationSeconds), amount)
	if err != nil {
		return fmt.Errorf("failed to record call usage: %w", err)
	}
	return nil
}

// Usage returns the counter for one period (empty means the current month).
// A period with no recorded calls reads as a zeroed counter.
func (s *UsageService) Usage(ctx context.Context, tenantID string, subTenantID *string, period string) (*models.UsageCounter, error) {
	if period == "" {
		period = Period(s.now())
	}
	if !periodRe.MatchString(period) {
		return nil, NewValidationError("period", "must be formatted YYYY-MM")
	}

	counter, err := s.store.GetUsage(ctx, tenantID, subTenantID, period)
	if errors.Is(err, store.ErrNotFound) {
		zero := &models.UsageCounter{TenantID: tenantID, Period: period}
		if subTenantID != nil {
			zero.SubTenantID = *subTenantID
		}
		return zero, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	return counter, nil
}
