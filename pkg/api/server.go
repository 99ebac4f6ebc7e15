// Package api is the HTTP boundary: trigger ingress, provider webhooks, the
// cron tick, call control, the public widget endpoint, and the AI agent
// builder. Handlers translate HTTP into service calls and map service errors
// onto the response envelope; the business rules live in pkg/services.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/paradyne-ai/callcore/pkg/analysis"
	"github.com/paradyne-ai/callcore/pkg/config"
	"github.com/paradyne-ai/callcore/pkg/database"
	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/ratelimit"
	"github.com/paradyne-ai/callcore/pkg/scheduler"
	"github.com/paradyne-ai/callcore/pkg/services"
	"github.com/paradyne-ai/callcore/pkg/tasks"
)

// TriggerService is the trigger-ingress surface the handlers consume.
type TriggerService interface {
	ResolveCRMTenant(ctx context.Context, source models.TriggerSource, accountID string) (*models.Tenant, *models.IntegrationConfig, error)
	VerifyTriggerSignature(icfg *models.IntegrationConfig, signature, timestamp string, body []byte) error
	Trigger(ctx context.Context, req *models.TriggerRequest) (*models.TriggerResult, error)
}

// WebhookService ingests one provider callback.
type WebhookService interface {
	HandleEvent(ctx context.Context, p models.Provider, r *http.Request, body []byte) error
}

// CallService serves call control and live call views.
type CallService interface {
	EndCall(ctx context.Context, tenantID, callID string, p models.Provider) error
	ActiveCalls(ctx context.Context, tenantID string) ([]services.ActiveCall, error)
	LiveCall(ctx context.Context, tenantID, callID string, p models.Provider) (*models.Call, error)
}

// WidgetService opens provider web sessions for widget-enabled agents.
type WidgetService interface {
	CreateSession(ctx context.Context, agentID string) (*services.WidgetSession, error)
}

// Ticker drains due scheduled calls. One tick per cron hit.
type Ticker interface {
	ProcessDue(ctx context.Context) (*scheduler.TickReport, error)
}

// AgentBuilder drafts an agent configuration from a free-text description.
type AgentBuilder interface {
	BuildAgentDraft(ctx context.Context, description string) (*analysis.AgentDraft, error)
}

// Store is the slice of the data layer the HTTP boundary needs directly:
// partner-key authentication and the health backlog gauge.
type Store interface {
	GetTenantByPartnerKey(ctx context.Context, key string) (*models.Tenant, error)
	CountPendingScheduledCalls(ctx context.Context) (int, error)
}

// Server owns the echo instance and the HTTP lifecycle.
type Server struct {
	cfg      *config.Config
	echo     *echo.Echo
	httpSrv  *http.Server
	db       *database.Client
	store    Store
	triggers TriggerService
	webhooks WebhookService
	calls    CallService
	widget   WidgetService
	ticker   Ticker
	pool     *tasks.Pool

	// Optional collaborators, nil when their configuration is absent.
	builder AgentBuilder
	limiter *ratelimit.Limiter
}

// NewServer wires the HTTP server and registers all routes. Optional
// collaborators (AI builder, rate limiter) are attached via setters.
func NewServer(cfg *config.Config, db *database.Client, st Store, triggers TriggerService, webhooks WebhookService, calls CallService, widget WidgetService, ticker Ticker, pool *tasks.Pool) *Server {
	e := echo.New()

	s := &Server{
		cfg:      cfg,
		echo:     e,
		db:       db,
		store:    st,
		triggers: triggers,
		webhooks: webhooks,
		calls:    calls,
		widget:   widget,
		ticker:   ticker,
		pool:     pool,
	}
	s.httpSrv = &http.Server{
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.registerRoutes()
	return s
}

// SetAgentBuilder enables the /ai/agent-builder endpoint.
func (s *Server) SetAgentBuilder(b AgentBuilder) {
	s.builder = b
}

// SetRateLimiter enables rate limiting on the AI builder endpoint.
func (s *Server) SetRateLimiter(l *ratelimit.Limiter) {
	s.limiter = l
}

func (s *Server) registerRoutes() {
	e := s.echo

	e.Use(securityHeaders())
	e.Use(requestLogger())
	e.Use(errorEnvelope())

	e.GET("/health", s.healthHandler)

	// Trigger ingress. CRM routes authenticate by payload signature, the
	// partner route by bearer key.
	e.POST("/trigger/crm-a", s.crmATriggerHandler)
	e.POST("/trigger/crm-b", s.crmBTriggerHandler)
	e.POST("/trigger/api", s.apiTriggerHandler, s.partnerAuth())

	// Provider callbacks, one route per provider.
	e.POST("/webhook/provider-a", s.webhookHandler(models.ProviderA))
	e.POST("/webhook/provider-b", s.webhookHandler(models.ProviderB))
	e.POST("/webhook/provider-c", s.webhookHandler(models.ProviderC))

	// Scheduler tick, driven by an external cron.
	e.POST("/cron/process-scheduled", s.processScheduledHandler, s.cronAuth())

	// Public: the agent id is the capability.
	e.POST("/widget/:agentId/session", s.widgetSessionHandler)

	e.POST("/calls/:id/end", s.endCallHandler, s.partnerAuth())
	e.GET("/calls/active", s.activeCallsHandler, s.partnerAuth())
	e.GET("/calls/:id/live", s.liveCallHandler, s.partnerAuth())

	e.POST("/ai/agent-builder", s.builderHandler, s.partnerAuth())
}

// Handler exposes the routing tree, mainly for tests that drive the server
// through httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start begins serving on addr and blocks until the listener closes.
func (s *Server) Start(addr string) error {
	s.httpSrv.Addr = addr
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
