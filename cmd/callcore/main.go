// The callcore server hosts the trigger, webhook, call, and widget APIs and
// runs the background task pool and retention cleanup. Scheduler ticks are
// driven by an external cron hitting /cron/process-scheduled.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"k8s.io/utils/clock"

	"github.com/paradyne-ai/callcore/pkg/analysis"
	"github.com/paradyne-ai/callcore/pkg/api"
	"github.com/paradyne-ai/callcore/pkg/cleanup"
	"github.com/paradyne-ai/callcore/pkg/config"
	"github.com/paradyne-ai/callcore/pkg/database"
	"github.com/paradyne-ai/callcore/pkg/events"
	"github.com/paradyne-ai/callcore/pkg/integrations"
	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/provider"
	"github.com/paradyne-ai/callcore/pkg/ratelimit"
	"github.com/paradyne-ai/callcore/pkg/scheduler"
	"github.com/paradyne-ai/callcore/pkg/services"
	"github.com/paradyne-ai/callcore/pkg/store"
	"github.com/paradyne-ai/callcore/pkg/tasks"
	"github.com/paradyne-ai/callcore/pkg/timezone"
	"github.com/paradyne-ai/callcore/pkg/version"
	"github.com/paradyne-ai/callcore/pkg/workflow"
)

func main() {
	// Load .env if present; production sets real environment variables.
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file loaded, continuing with existing environment", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting callcore",
		"version", version.Full(),
		"http_port", cfg.HTTPPort)

	ctx := context.Background()

	// 1. Database (applies pending migrations)
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	st := store.New(dbClient)

	// 2. Shared stateless infrastructure
	oracle := timezone.NewOracle(timezone.MustLoadEmbeddedTable(), clock.RealClock{})
	registry := provider.NewRegistry(provider.Config{})

	// 3. Integration clients and the workflow executor
	apps := map[models.Integration]integrations.OAuthApp{}
	if cfg.HubSpotClientID != "" {
		apps[models.IntegrationCRMB] = integrations.OAuthApp{
			ClientID:     cfg.HubSpotClientID,
			ClientSecret: cfg.HubSpotClientSecret,
			TokenURL:     integrations.CRMBTokenURL,
		}
	}
	if cfg.CalendarClientID != "" {
		apps[models.IntegrationCalendar] = integrations.OAuthApp{
			ClientID:     cfg.CalendarClientID,
			ClientSecret: cfg.CalendarClientSecret,
			TokenURL:     integrations.CalendarTokenURL,
		}
	}
	tokens := integrations.NewTokenRefresher(st, apps)
	clients := integrations.NewClients(integrations.Config{}, tokens)
	executor := workflow.NewExecutor(st, clients, nil)

	// 4. Background task pool (before the HTTP server so webhook ingress
	// can submit from the first request)
	pool := tasks.NewPool(cfg.Tasks.Workers, cfg.Tasks.QueueSize)
	pool.Start(ctx)

	// 5. Broadcast sink and domain services
	sink := events.NewNotifySink(dbClient.DB.DB)

	keys := services.NewKeyResolver(st)
	dispatcher := services.NewDispatcher(st, registry, keys)
	triggerService := services.NewTriggerService(st, dispatcher, oracle, sink)
	usageService := services.NewUsageService(st)

	// analyzer and builder stay nil interfaces when analysis is disabled;
	// the webhook service and the builder endpoint check for that.
	var analyzer services.CallAnalyzer
	var builder api.AgentBuilder
	if cfg.AnalysisEnabled() {
		a, err := analysis.NewFromAPIKey(cfg.AnthropicAPIKey, "")
		if err != nil {
			slog.Error("Failed to initialize analyzer", "error", err)
			os.Exit(1)
		}
		analyzer = a
		builder = a
		slog.Info("AI analysis enabled", "model", analysis.DefaultModel)
	} else {
		slog.Info("AI analysis disabled, no ANTHROPIC_API_KEY set")
	}

	webhookService := services.NewWebhookService(st, registry, pool, sink, executor, analyzer, usageService, services.WebhookSecrets{
		ProviderB: cfg.ProviderBWebhookSecret,
		ProviderC: cfg.ProviderCWebhookSecret,
	})
	callService := services.NewCallService(st, registry, keys)
	widgetService := services.NewWidgetService(st, registry, keys)

	sched := scheduler.New(st, dispatcher, oracle, sink, cfg.Scheduler, clock.RealClock{})

	// 6. Retention cleanup loop
	cleaner := cleanup.NewService(cfg.Retention, st, clock.RealClock{})
	cleaner.Start(ctx)

	// 7. HTTP server
	httpServer := api.NewServer(cfg, dbClient, st, triggerService, webhookService, callService, widgetService, sched, pool)
	if builder != nil {
		httpServer.SetAgentBuilder(builder)
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		httpServer.SetRateLimiter(ratelimit.New(rdb, ratelimit.BuilderLimits))
		slog.Info("Builder rate limiting enabled", "addr", cfg.RedisAddr)
	}

	// 8. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.HTTPPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("callcore started", "workers", cfg.Tasks.Workers)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown. HTTP first so no new work reaches the pool,
	// then drain the pool's fixed backlog.
	httpCtx, httpCancel := context.WithTimeout(ctx, 10*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	cleaner.Stop()

	poolCtx, poolCancel := context.WithTimeout(ctx, cfg.Tasks.ShutdownTimeout)
	defer poolCancel()
	pool.Stop(poolCtx)

	slog.Info("Shutdown complete")
}
