package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/paradyne-ai/callcore/pkg/version"
)

// healthHandler reports liveness plus dependency detail: database ping and
// pool statistics, worker pool stats, and the pending-schedule backlog. A
// failed ping makes the service unhealthy (503); a failed backlog read only
// degrades it, since triggers can still be served.
func (s *Server) healthHandler(c *echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	checks := map[string]any{}

	report, err := s.db.Check(ctx)
	checks["database"] = report
	if err != nil {
		status = "unhealthy"
	}

	if s.pool != nil {
		checks["worker_pool"] = s.pool.Stats()
	}

	if status != "unhealthy" {
		pending, err := s.store.CountPendingScheduledCalls(ctx)
		if err != nil {
			status = "degraded"
		} else {
			checks["scheduler"] = map[string]int{"pending_calls": pending}
		}
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	return ok(c, code, &HealthResponse{
		Status:  status,
		Version: version.Full(),
		Checks:  checks,
	})
}
