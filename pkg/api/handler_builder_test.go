package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paradyne-ai/callcore/pkg/analysis"
	"github.com/paradyne-ai/callcore/pkg/ratelimit"
)

func builderBody(t *testing.T) []byte {
	t.Helper()
	return mustJSON(t, map[string]string{
		"description": "A friendly receptionist for a dental practice that books cleanings.",
	})
}

func TestBuilderHandler(t *testing.T) {
	t.Run("disabled without an Anthropic key", func(t *testing.T) {
		fx := newServerFixture(t)
		rec := fx.do(http.MethodPost, "/ai/agent-builder", builderBody(t), bearer(testPartnerKey))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "agent builder is not configured", decodeError(t, rec).Message)
	})

	t.Run("requires a partner key", func(t *testing.T) {
		fx := newServerFixture(t)
		fx.server.SetAgentBuilder(&fakeBuilder{})
		rec := fx.do(http.MethodPost, "/ai/agent-builder", builderBody(t), nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("short description", func(t *testing.T) {
		fx := newServerFixture(t)
		fx.server.SetAgentBuilder(&fakeBuilder{})
		body := mustJSON(t, map[string]string{"description": "short"})
		rec := fx.do(http.MethodPost, "/ai/agent-builder", body, bearer(testPartnerKey))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "description must be at least 10 characters", decodeError(t, rec).Message)
	})

	t.Run("returns the draft", func(t *testing.T) {
		fx := newServerFixture(t)
		builder := &fakeBuilder{draft: &analysis.AgentDraft{
			Name:         "Front Desk",
			SystemPrompt: "You are the scheduling assistant for a dental practice.",
			FirstMessage: "Hi, this is the front desk. How can I help?",
		}}
		fx.server.SetAgentBuilder(builder)
		rec := fx.do(http.MethodPost, "/ai/agent-builder", builderBody(t), bearer(testPartnerKey))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, builder.descriptions, 1)

		var draft analysis.AgentDraft
		decodeData(t, rec, &draft)
		assert.Equal(t, "Front Desk", draft.Name)
		assert.NotEmpty(t, draft.SystemPrompt)
	})

	t.Run("rate limits per tenant", func(t *testing.T) {
		fx := newServerFixture(t)
		builder := &fakeBuilder{draft: &analysis.AgentDraft{Name: "Front Desk"}}
		fx.server.SetAgentBuilder(builder)

		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		fx.server.SetRateLimiter(ratelimit.New(rdb, []ratelimit.Limit{
			{Name: "minute", Max: 2, Window: time.Minute},
		}))

		for i := 0; i < 2; i++ {
			rec := fx.do(http.MethodPost, "/ai/agent-builder", builderBody(t), bearer(testPartnerKey))
			require.Equal(t, http.StatusOK, rec.Code)
		}

		rec := fx.do(http.MethodPost, "/ai/agent-builder", builderBody(t), bearer(testPartnerKey))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "rate_limited", decodeError(t, rec).Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Len(t, builder.descriptions, 2, "limited request must not reach the builder")
	})
}
