// Package e2e boots the full call engine over a real PostgreSQL schema with
// stubbed vendors, then drives it through the public HTTP surface the way
// CRMs, providers, and the cron runner do in production.
package e2e

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/paradyne-ai/callcore/pkg/api"
	"github.com/paradyne-ai/callcore/pkg/config"
	"github.com/paradyne-ai/callcore/pkg/database"
	"github.com/paradyne-ai/callcore/pkg/events"
	"github.com/paradyne-ai/callcore/pkg/integrations"
	"github.com/paradyne-ai/callcore/pkg/provider"
	"github.com/paradyne-ai/callcore/pkg/scheduler"
	"github.com/paradyne-ai/callcore/pkg/services"
	"github.com/paradyne-ai/callcore/pkg/store"
	"github.com/paradyne-ai/callcore/pkg/tasks"
	"github.com/paradyne-ai/callcore/pkg/timezone"
	"github.com/paradyne-ai/callcore/pkg/workflow"

	testdb "github.com/paradyne-ai/callcore/test/database"
)

const (
	testCronSecret      = "e2e-cron-secret"
	testProviderBSecret = "e2e-provider-b-secret"
	testProviderCSecret = "e2e-provider-c-secret"

	// crmaWebhookSecret signs inbound CRM A trigger payloads; crmaAPIKey
	// authenticates outbound workflow actions against the CRM A stub.
	crmaWebhookSecret = "e2e-crma-webhook-secret"
	crmaAPIKey        = "e2e-crma-api-key"
)

// defaultTestTime is a Tuesday 18:00 UTC (11:00 in Los Angeles), inside any
// sane business-hours window. Tests that care about the clock pass WithClock.
var defaultTestTime = time.Date(2026, 6, 9, 18, 0, 0, 0, time.UTC)

// TestApp is one fully wired engine instance listening on a local port.
type TestApp struct {
	// Wiring
	Config *config.Config
	DB     *database.Client
	Store  *store.Store

	// Vendor stubs
	ProviderA *ProviderAStub
	CRMA      *CRMAStub

	// Runtime
	Clock     *clocktesting.FakePassiveClock
	Pool      *tasks.Pool
	Scheduler *scheduler.Scheduler
	Server    *api.Server
	BaseURL   string

	t *testing.T
}

type testAppConfig struct {
	at        time.Time
	dbClient  *database.Client
	providerA *ProviderAStub
}

// TestAppOption adjusts how NewTestApp wires the engine.
type TestAppOption func(*testAppConfig)

// WithClock pins the engine's clock to the given instant. Calling windows
// and due-job selection both read this clock.
func WithClock(at time.Time) TestAppOption {
	return func(tc *testAppConfig) { tc.at = at }
}

// WithDBClient reuses an existing database client instead of creating a
// per-test schema. Multi-replica tests point several apps at one schema via
// testdb.SharedTestDB.
func WithDBClient(db *database.Client) TestAppOption {
	return func(tc *testAppConfig) { tc.dbClient = db }
}

// WithProviderAStub shares one provider stub between replicas so its attempt
// counter spans both.
func WithProviderAStub(stub *ProviderAStub) TestAppOption {
	return func(tc *testAppConfig) { tc.providerA = stub }
}

// NewTestApp wires the engine exactly as main does, with a fake passive
// clock, stubbed vendor HTTP, and a migrated throwaway schema. Everything is
// torn down through t.Cleanup.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	tc := &testAppConfig{at: defaultTestTime}
	for _, opt := range opts {
		opt(tc)
	}

	// 1. Database — per-test schema unless the caller shares one.
	dbClient := tc.dbClient
	if dbClient == nil {
		dbClient = testdb.NewTestClient(t)
	}
	st := store.New(dbClient)

	// 2. Clock and timezone oracle — pinned so window math is deterministic.
	clk := clocktesting.NewFakePassiveClock(tc.at)
	oracle := timezone.NewOracle(timezone.MustLoadEmbeddedTable(), clk)

	// 3. Vendor stubs — provider A call API and CRM A REST API.
	providerStub := tc.providerA
	if providerStub == nil {
		providerStub = NewProviderAStub(t)
	}
	crmaStub := NewCRMAStub(t)
	registry := provider.NewRegistry(provider.Config{BaseURLA: providerStub.URL()})
	clients := integrations.NewClients(integrations.Config{CRMABaseURL: crmaStub.URL()}, nil)

	// 4. Async machinery — worker pool, broadcast sink, workflow executor.
	pool := tasks.NewPool(2, 64)
	pool.Start(context.Background())
	sink := events.NewNotifySink(dbClient.DB.DB)
	executor := workflow.NewExecutor(st, clients, nil)

	// 5. Services.
	keys := services.NewKeyResolver(st)
	dispatcher := services.NewDispatcher(st, registry, keys)
	triggers := services.NewTriggerService(st, dispatcher, oracle, sink)
	usage := services.NewUsageService(st)
	webhooks := services.NewWebhookService(st, registry, pool, sink, executor, nil, usage, services.WebhookSecrets{
		ProviderB: testProviderBSecret,
		ProviderC: testProviderCSecret,
	})
	calls := services.NewCallService(st, registry, keys)
	widget := services.NewWidgetService(st, registry, keys)

	// 6. Scheduler — driven by the cron endpoint, never by a background loop.
	cfg := &config.Config{
		CronSecret: testCronSecret,
		Scheduler:  config.DefaultSchedulerConfig(),
		Tasks:      config.DefaultTasksConfig(),
		Retention:  config.DefaultRetentionConfig(),
	}
	sched := scheduler.New(st, dispatcher, oracle, sink, cfg.Scheduler, clk)

	// 7. HTTP server on a real port so signatures cover real request bodies.
	server := api.NewServer(cfg, dbClient, st, triggers, webhooks, calls, widget, sched, pool)
	httpSrv := httptest.NewServer(server.Handler())

	t.Cleanup(func() {
		httpSrv.Close()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		pool.Stop(stopCtx)
	})

	return &TestApp{
		Config:    cfg,
		DB:        dbClient,
		Store:     st,
		ProviderA: providerStub,
		CRMA:      crmaStub,
		Clock:     clk,
		Pool:      pool,
		Scheduler: sched,
		Server:    server,
		BaseURL:   httpSrv.URL,
		t:         t,
	}
}
