package api

import (
	"fmt"
	"log/slog"
	"time"

	echo "github.com/labstack/echo/v5"
)

// securityHeaders sets standard security headers on every response.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			return next(c)
		}
	}
}

// requestLogger emits one structured line per completed request.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			start := time.Now()
			err := next(c)
			status := 0
			if res, _ := echo.UnwrapResponse(c.Response()); res != nil {
				status = res.Status
			}
			slog.Info("HTTP request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds())
			return err
		}
	}
}

// errorEnvelope renders handler errors as the uniform error envelope.
// Handlers return *echo.HTTPError, directly or via mapServiceError; anything
// else is mapped here so no raw error ever reaches the wire.
func errorEnvelope() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}
			he, ok := err.(*echo.HTTPError)
			if !ok {
				he = mapServiceError(err)
			}
			return c.JSON(he.Code, &ErrorResponse{Error: ErrorBody{
				Code:    errorCode(he.Code),
				Message: fmt.Sprint(he.Message),
			}})
		}
	}
}
