package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paradyne-ai/callcore/pkg/scheduler"
)

func TestProcessScheduledHandler(t *testing.T) {
	t.Run("echoes the tick report", func(t *testing.T) {
		fx := newServerFixture(t)
		fx.ticker.report = &scheduler.TickReport{
			Due:        3,
			Leased:     3,
			Dispatched: 2,
			Retried:    1,
		}
		rec := fx.do(http.MethodPost, "/cron/process-scheduled", nil, bearer(testCronSecret))

		require.Equal(t, http.StatusOK, rec.Code)
		var report scheduler.TickReport
		decodeData(t, rec, &report)
		assert.Equal(t, 3, report.Due)
		assert.Equal(t, 2, report.Dispatched)
		assert.Equal(t, 1, report.Retried)
	})

	t.Run("tick failure is a 500", func(t *testing.T) {
		fx := newServerFixture(t)
		fx.ticker.err = errors.New("select due: connection refused")
		rec := fx.do(http.MethodPost, "/cron/process-scheduled", nil, bearer(testCronSecret))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "scheduler tick failed", decodeError(t, rec).Message)
	})
}
