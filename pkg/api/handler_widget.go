package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// widgetSessionHandler handles POST /widget/:agentId/session. The route is
// public; CreateSession rejects agents that are not widget-enabled and the
// response carries only what the embed script needs.
func (s *Server) widgetSessionHandler(c *echo.Context) error {
	agentID := c.Param("agentId")
	if agentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent id is required")
	}

	session, err := s.widget.CreateSession(c.Request().Context(), agentID)
	if err != nil {
		return mapServiceError(err)
	}
	return ok(c, http.StatusOK, session)
}
