package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/services"
)

// parseProvider validates the optional ?provider= query parameter. Empty is
// allowed; the service falls back to the provider that owns the call.
func parseProvider(c *echo.Context) (models.Provider, error) {
	v := c.QueryParam("provider")
	if v == "" {
		return "", nil
	}
	p := models.Provider(v)
	if !p.Valid() {
		return "", echo.NewHTTPError(http.StatusBadRequest, "provider must be one of a, b, c")
	}
	return p, nil
}

// endCallHandler handles POST /calls/:id/end.
func (s *Server) endCallHandler(c *echo.Context) error {
	callID := c.Param("id")
	if callID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "call id is required")
	}
	p, err := parseProvider(c)
	if err != nil {
		return err
	}

	tenant := tenantFrom(c)
	if err := s.calls.EndCall(c.Request().Context(), tenant.ID, callID, p); err != nil {
		return mapServiceError(err)
	}
	return ok(c, http.StatusOK, &EndCallResponse{CallID: callID, Status: "ending"})
}

// activeCallsHandler handles GET /calls/active.
func (s *Server) activeCallsHandler(c *echo.Context) error {
	tenant := tenantFrom(c)
	calls, err := s.calls.ActiveCalls(c.Request().Context(), tenant.ID)
	if err != nil {
		return mapServiceError(err)
	}
	if calls == nil {
		calls = []services.ActiveCall{}
	}
	return ok(c, http.StatusOK, calls)
}

// liveCallHandler handles GET /calls/:id/live.
func (s *Server) liveCallHandler(c *echo.Context) error {
	callID := c.Param("id")
	if callID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "call id is required")
	}
	p, err := parseProvider(c)
	if err != nil {
		return err
	}

	tenant := tenantFrom(c)
	call, err := s.calls.LiveCall(c.Request().Context(), tenant.ID, callID, p)
	if err != nil {
		return mapServiceError(err)
	}
	return ok(c, http.StatusOK, call)
}
