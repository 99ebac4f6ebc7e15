package api

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// processScheduledHandler handles POST /cron/process-scheduled: one
// scheduler tick, with the outcome counts echoed back to the cron driver.
func (s *Server) processScheduledHandler(c *echo.Context) error {
	report, err := s.ticker.ProcessDue(c.Request().Context())
	if err != nil {
		slog.Error("Scheduler tick failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "scheduler tick failed")
	}
	return ok(c, http.StatusOK, report)
}
