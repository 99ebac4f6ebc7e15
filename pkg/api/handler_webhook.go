package api

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/services"
)

// webhookHandler accepts one provider's callbacks. A failed signature is the
// only non-2xx outcome; processing failures are logged and acked so the
// provider does not redeliver an event we cannot use.
func (s *Server) webhookHandler(p models.Provider) echo.HandlerFunc {
	return func(c *echo.Context) error {
		body, err := readBody(c, maxWebhookBody)
		if err != nil {
			return err
		}
		if err := s.webhooks.HandleEvent(c.Request().Context(), p, c.Request(), body); err != nil {
			if services.IsAuthenticationError(err) {
				return mapServiceError(err)
			}
			slog.Error("Webhook processing failed", "provider", p, "error", err)
		}
		return ok(c, http.StatusOK, &WebhookAck{Received: true})
	}
}
