package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paradyne-ai/callcore/pkg/analysis"
	"github.com/paradyne-ai/callcore/pkg/config"
	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/scheduler"
	"github.com/paradyne-ai/callcore/pkg/services"
	"github.com/paradyne-ai/callcore/pkg/store"
)

// Fakes record what the handlers passed down so tests can assert the HTTP
// layer's translation without a database or live providers. Happy paths
// through the real services are covered by the e2e suite.

const (
	testCronSecret = "cron-test-secret"
)

// testPartnerKey is a well-formed partner key seeded into the fake store.
var testPartnerKey = "pdy_sk_" + strings.Repeat("ab", 32)

type fakeTriggerService struct {
	tenant     *models.Tenant
	icfg       *models.IntegrationConfig
	resolveErr error
	verifyErr  error
	result     *models.TriggerResult
	triggerErr error

	resolvedSource  models.TriggerSource
	resolvedAccount string
	verifiedSig     string
	verifiedTS      string
	verifiedBody    []byte
	triggered       []*models.TriggerRequest
}

func (f *fakeTriggerService) ResolveCRMTenant(_ context.Context, source models.TriggerSource, accountID string) (*models.Tenant, *models.IntegrationConfig, error) {
	f.resolvedSource = source
	f.resolvedAccount = accountID
	if f.resolveErr != nil {
		return nil, nil, f.resolveErr
	}
	return f.tenant, f.icfg, nil
}

func (f *fakeTriggerService) VerifyTriggerSignature(_ *models.IntegrationConfig, signature, timestamp string, body []byte) error {
	f.verifiedSig = signature
	f.verifiedTS = timestamp
	f.verifiedBody = body
	return f.verifyErr
}

func (f *fakeTriggerService) Trigger(_ context.Context, req *models.TriggerRequest) (*models.TriggerResult, error) {
	f.triggered = append(f.triggered, req)
	if f.triggerErr != nil {
		return nil, f.triggerErr
	}
	return f.result, nil
}

type fakeWebhookService struct {
	err      error
	provider models.Provider
	body     []byte
	events   int
}

func (f *fakeWebhookService) HandleEvent(_ context.Context, p models.Provider, _ *http.Request, body []byte) error {
	f.events++
	f.provider = p
	f.body = body
	return f.err
}

type fakeCallService struct {
	endErr    error
	active    []services.ActiveCall
	activeErr error
	call      *models.Call
	liveErr   error

	endedTenant   string
	endedCall     string
	endedProvider models.Provider
	liveProvider  models.Provider
}

func (f *fakeCallService) EndCall(_ context.Context, tenantID, callID string, p models.Provider) error {
	f.endedTenant = tenantID
	f.endedCall = callID
	f.endedProvider = p
	return f.endErr
}

func (f *fakeCallService) ActiveCalls(_ context.Context, _ string) ([]services.ActiveCall, error) {
	return f.active, f.activeErr
}

func (f *fakeCallService) LiveCall(_ context.Context, _, _ string, p models.Provider) (*models.Call, error) {
	f.liveProvider = p
	return f.call, f.liveErr
}

type fakeWidgetService struct {
	session *services.WidgetSession
	err     error
	agentID string
}

func (f *fakeWidgetService) CreateSession(_ context.Context, agentID string) (*services.WidgetSession, error) {
	f.agentID = agentID
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type fakeTicker struct {
	report *scheduler.TickReport
	err    error
	ticks  int
}

func (f *fakeTicker) ProcessDue(_ context.Context) (*scheduler.TickReport, error) {
	f.ticks++
	return f.report, f.err
}

type fakeBuilder struct {
	draft        *analysis.AgentDraft
	err          error
	descriptions []string
}

func (f *fakeBuilder) BuildAgentDraft(_ context.Context, description string) (*analysis.AgentDraft, error) {
	f.descriptions = append(f.descriptions, description)
	if f.err != nil {
		return nil, f.err
	}
	return f.draft, nil
}

type fakeAPIStore struct {
	tenants    map[string]*models.Tenant
	getErr     error
	pending    int
	pendingErr error

	lookups []string
}

func (f *fakeAPIStore) GetTenantByPartnerKey(_ context.Context, key string) (*models.Tenant, error) {
	f.lookups = append(f.lookups, key)
	if f.getErr != nil {
		return nil, f.getErr
	}
	if t, ok := f.tenants[key]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("tenant: %w", store.ErrNotFound)
}

func (f *fakeAPIStore) CountPendingScheduledCalls(_ context.Context) (int, error) {
	return f.pending, f.pendingErr
}

type serverFixture struct {
	server   *Server
	store    *fakeAPIStore
	triggers *fakeTriggerService
	webhooks *fakeWebhookService
	calls    *fakeCallService
	widget   *fakeWidgetService
	ticker   *fakeTicker
}

func testTenant() *models.Tenant {
	key := testPartnerKey
	return &models.Tenant{
		ID:            "t-1",
		Name:          "Brightline Dental",
		PartnerAPIKey: &key,
	}
}

func testIntegrationConfig() *models.IntegrationConfig {
	return &models.IntegrationConfig{
		ID:          "ic-1",
		TenantID:    "t-1",
		Integration: models.IntegrationCRMA,
		Enabled:     true,
		Config: models.JSONMap{
			"webhook_secret":   "shh",
			"default_agent_id": "ag-default",
		},
	}
}

// newServerFixture wires a Server around fakes and registers the full
// routing tree, so requests exercise routing, middleware, and envelope
// rendering exactly as in production.
func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	tenant := testTenant()
	fx := &serverFixture{
		store: &fakeAPIStore{tenants: map[string]*models.Tenant{testPartnerKey: tenant}},
		triggers: &fakeTriggerService{
			tenant: tenant,
			icfg:   testIntegrationConfig(),
			result: &models.TriggerResult{Status: models.TriggerInitiated, CallID: "call-1", Agent: "Front Desk"},
		},
		webhooks: &fakeWebhookService{},
		calls:    &fakeCallService{},
		widget:   &fakeWidgetService{},
		ticker:   &fakeTicker{report: &scheduler.TickReport{}},
	}
	cfg := &config.Config{CronSecret: testCronSecret}
	fx.server = NewServer(cfg, nil, fx.store, fx.triggers, fx.webhooks, fx.calls, fx.widget, fx.ticker, nil)
	return fx
}

func (fx *serverFixture) do(method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	fx.server.echo.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// decodeError unwraps the error envelope.
func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

// decodeData unwraps the data envelope into v.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
