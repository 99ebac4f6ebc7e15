package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

// builderHandler handles POST /ai/agent-builder. The endpoint is disabled
// without an Anthropic key and rate limited per tenant when Redis is up.
func (s *Server) builderHandler(c *echo.Context) error {
	if s.builder == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "agent builder is not configured")
	}

	body, err := readBody(c, maxTriggerBody)
	if err != nil {
		return err
	}
	var req BuilderRequest
	if err := bindAndValidate(body, &req); err != nil {
		return err
	}

	tenant := tenantFrom(c)
	if s.limiter != nil {
		allowed, retryAfter := s.limiter.Allow(c.Request().Context(), tenant.ID)
		if !allowed {
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		}
	}

	draft, err := s.builder.BuildAgentDraft(c.Request().Context(), req.Description)
	if err != nil {
		return mapServiceError(err)
	}
	return ok(c, http.StatusOK, draft)
}
