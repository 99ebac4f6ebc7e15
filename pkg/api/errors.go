package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/paradyne-ai/callcore/pkg/services"
)

// mapServiceError converts service-layer errors to HTTP errors. Validation
// messages pass through verbatim; authentication failures stay bland so the
// response never hints at which check rejected the caller.
func mapServiceError(err error) *echo.HTTPError {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validationErr.Error())
	}

	var authErr *services.AuthenticationError
	if errors.As(err, &authErr) {
		slog.Warn("Authentication failed", "reason", authErr.Reason)
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication failed")
	}

	var authzErr *services.AuthorizationError
	if errors.As(err, &authzErr) {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}

	var upstreamErr *services.UpstreamError
	if errors.As(err, &upstreamErr) {
		slog.Error("Upstream failure surfaced to caller",
			"system", upstreamErr.System,
			"status", upstreamErr.StatusCode,
			"error", upstreamErr.Message)
		return echo.NewHTTPError(http.StatusBadGateway, upstreamErr.System+" request failed")
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	case errors.Is(err, services.ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, "resource already exists")
	case errors.Is(err, services.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	case errors.Is(err, services.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	slog.Error("Unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

// errorCode labels a status for the error envelope.
func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusBadGateway:
		return "upstream_error"
	case http.StatusServiceUnavailable:
		return "not_configured"
	default:
		return "internal_error"
	}
}
