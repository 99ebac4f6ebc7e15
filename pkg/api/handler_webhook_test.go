package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/services"
)

func TestWebhookHandler(t *testing.T) {
	body := []byte(`{"type":"call_ended","call_id":"ext-1"}`)

	t.Run("routes carry their provider", func(t *testing.T) {
		for path, want := range map[string]models.Provider{
			"/webhook/provider-a": models.ProviderA,
			"/webhook/provider-b": models.ProviderB,
			"/webhook/provider-c": models.ProviderC,
		} {
			fx := newServerFixture(t)
			rec := fx.do(http.MethodPost, path, body, nil)

			require.Equal(t, http.StatusOK, rec.Code, path)
			assert.Equal(t, want, fx.webhooks.provider, path)
			assert.Equal(t, body, fx.webhooks.body, path)
			assert.JSONEq(t, `{"data":{"received":true}}`, rec.Body.String())
		}
	})

	t.Run("signature failure is the only non-2xx outcome", func(t *testing.T) {
		fx := newServerFixture(t)
		fx.webhooks.err = services.NewAuthenticationError("provider_b signature mismatch")
		rec := fx.do(http.MethodPost, "/webhook/provider-b", body, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "authentication failed", decodeError(t, rec).Message)
	})

	t.Run("processing failures are still acked", func(t *testing.T) {
		fx := newServerFixture(t)
		fx.webhooks.err = errors.New("no call row for external id ext-1")
		rec := fx.do(http.MethodPost, "/webhook/provider-a", body, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"data":{"received":true}}`, rec.Body.String())
	})

	t.Run("unknown-entity failures are still acked", func(t *testing.T) {
		fx := newServerFixture(t)
		fx.webhooks.err = services.ErrNotFound
		rec := fx.do(http.MethodPost, "/webhook/provider-c", body, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
