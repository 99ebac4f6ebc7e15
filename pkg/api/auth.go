package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"regexp"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/store"
)

// tenantContextKey carries the authenticated tenant through the request.
const tenantContextKey = "auth.tenant"

// partnerKeyPattern is the partner API key wire format: the pdy_sk_ prefix
// followed by 64 lowercase hex characters.
var partnerKeyPattern = regexp.MustCompile(`^pdy_sk_[0-9a-f]{64}$`)

// bearerToken extracts the bearer token from the Authorization header.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

// partnerAuth authenticates partner requests by their bearer key and stashes
// the owning tenant on the context. The format gate runs first so junk keys
// never reach the database.
func (s *Server) partnerAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			key := bearerToken(c.Request())
			if key == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			if !partnerKeyPattern.MatchString(key) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid API key")
			}
			tenant, err := s.store.GetTenantByPartnerKey(c.Request().Context(), key)
			if errors.Is(err, store.ErrNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid API key")
			}
			if err != nil {
				return mapServiceError(err)
			}
			c.Set(tenantContextKey, tenant)
			return next(c)
		}
	}
}

// tenantFrom returns the tenant stashed by partnerAuth.
func tenantFrom(c *echo.Context) *models.Tenant {
	t, _ := c.Get(tenantContextKey).(*models.Tenant)
	return t
}

// cronAuth guards the scheduler tick. An unset CRON_SECRET disables the
// endpoint rather than leaving it open.
func (s *Server) cronAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			if s.cfg.CronSecret == "" {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "cron secret not configured")
			}
			token := bearerToken(c.Request())
			if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.CronSecret)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid cron secret")
			}
			return next(c)
		}
	}
}
