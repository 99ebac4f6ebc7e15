package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/samber/lo"

	"github.com/paradyne-ai/callcore/pkg/events"
	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/provider"
	"github.com/paradyne-ai/callcore/pkg/store"
)

// fakeStore is the in-memory stand-in for the narrow store interfaces the
// services consume. Maps hold seeded rows; mutating calls are recorded for
// assertions. Methods lock because webhook tests run pool workers against
// the same instance as the request goroutine.
type fakeStore struct {
	mu  sync.Mutex
	seq int

	tenants        map[string]*models.Tenant
	subTenants     map[string]*models.SubTenant
	agents         map[string]*models.Agent
	phones         map[string]*models.PhoneNumber       // tenantID + "/" + e164
	integrations   map[string]*models.IntegrationConfig // tenantID + "/" + integration
	accountTenants map[string]*models.Tenant            // integration + "/" + configKey + "/" + value
	running        map[string]*models.Experiment        // agentID
	calls          map[string]*models.Call              // call id
	workflows      []models.Workflow
	usage          map[string]*models.UsageCounter // tenantID + "/" + subTenantID + "/" + period

	scheduled     []*models.ScheduledCall
	triggerLogs   []*models.TriggerLog
	insertedCalls []*models.Call
	upserted      []*models.Call
	experiments   []*models.Experiment
	transcripts   []transcriptUpdate
	analyses      []analysisUpdate
	usageAdds     []usageAdd
	execLogs      []*models.ExecutionLog
	statusChanges []statusChange

	insertScheduledErr  error
	insertCallErr       error
	createExperimentErr error
	updateStatusErr     error
	addUsageErr         error
	listWorkflowsErr    error
}

type transcriptUpdate struct {
	id         string
	transcript *string
	summary    *string
}

type analysisUpdate struct {
	id  string
	res models.AnalysisResult
}

type usageAdd struct {
	tenantID    string
	subTenantID *string
	period      string
	seconds     int64
	amountCents int64
}

type statusChange struct {
	id     string
	status models.ExperimentStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tenants:        map[string]*models.Tenant{},
		subTenants:     map[string]*models.SubTenant{},
		agents:         map[string]*models.Agent{},
		phones:         map[string]*models.PhoneNumber{},
		integrations:   map[string]*models.IntegrationConfig{},
		accountTenants: map[string]*models.Tenant{},
		running:        map[string]*models.Experiment{},
		calls:          map[string]*models.Call{},
		usage:          map[string]*models.UsageCounter{},
	}
}

func notFoundErr(what string) error {
	return fmt.Errorf("%s: %w", what, store.ErrNotFound)
}

func (f *fakeStore) GetTenant(_ context.Context, id string) (*models.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[id]
	if !ok {
		return nil, notFoundErr("tenant")
	}
	return t, nil
}

func (f *fakeStore) GetSubTenant(_ context.Context, id string) (*models.SubTenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.subTenants[id]
	if !ok {
		return nil, notFoundErr("sub-tenant")
	}
	return st, nil
}

func (f *fakeStore) GetTenantByIntegrationAccount(_ context.Context, integration models.Integration, configKey, value string) (*models.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.accountTenants[string(integration)+"/"+configKey+"/"+value]
	if !ok {
		return nil, notFoundErr("tenant")
	}
	return t, nil
}

func (f *fakeStore) GetIntegrationConfig(_ context.Context, tenantID string, integration models.Integration) (*models.IntegrationConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ic, ok := f.integrations[tenantID+"/"+string(integration)]
	if !ok {
		return nil, notFoundErr("integration config")
	}
	return ic, nil
}

func (f *fakeStore) GetAgent(_ context.Context, id string) (*models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agents[id]
	if !ok {
		return nil, notFoundErr("agent")
	}
	return a, nil
}

func (f *fakeStore) GetAgentByExternalID(_ context.Context, p models.Provider, externalID string) (*models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.agents {
		if a.Provider == p && a.ExternalID == externalID {
			return a, nil
		}
	}
	return nil, notFoundErr("agent")
}

func (f *fakeStore) ListAgentsByTenant(_ context.Context, tenantID string) ([]models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Agent
	for _, a := range f.agents {
		if a.TenantID == tenantID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPhoneNumber(_ context.Context, tenantID, e164 string) (*models.PhoneNumber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pn, ok := f.phones[tenantID+"/"+e164]
	if !ok {
		return nil, notFoundErr("phone number")
	}
	return pn, nil
}

func (f *fakeStore) InsertScheduledCall(_ context.Context, sc *models.ScheduledCall) (*models.ScheduledCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertScheduledErr != nil {
		return nil, f.insertScheduledErr
	}
	f.seq++
	out := *sc
	out.ID = fmt.Sprintf("sc-%d", f.seq)
	out.OriginalScheduledAt = lo.ToPtr(sc.ScheduledAt)
	f.scheduled = append(f.scheduled, &out)
	return &out, nil
}

func (f *fakeStore) InsertTriggerLog(_ context.Context, tl *models.TriggerLog) (*models.TriggerLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	out := *tl
	out.ID = fmt.Sprintf("tl-%d", f.seq)
	f.triggerLogs = append(f.triggerLogs, &out)
	return &out, nil
}

func (f *fakeStore) GetRunningExperimentForAgent(_ context.Context, agentID string) (*models.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exp, ok := f.running[agentID]
	if !ok {
		return nil, notFoundErr("experiment")
	}
	return exp, nil
}

func (f *fakeStore) CreateExperiment(_ context.Context, exp *models.Experiment) (*models.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createExperimentErr != nil {
		return nil, f.createExperimentErr
	}
	f.seq++
	out := *exp
	out.ID = fmt.Sprintf("exp-%d", f.seq)
	f.experiments = append(f.experiments, &out)
	return &out, nil
}

func (f *fakeStore) UpdateExperimentStatus(_ context.Context, id string, status models.ExperimentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateStatusErr != nil {
		return f.updateStatusErr
	}
	f.statusChanges = append(f.statusChanges, statusChange{id: id, status: status})
	return nil
}

func (f *fakeStore) InsertCall(_ context.Context, c *models.Call) (*models.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertCallErr != nil {
		return nil, f.insertCallErr
	}
	f.seq++
	out := *c
	out.ID = fmt.Sprintf("call-%d", f.seq)
	f.calls[out.ID] = &out
	f.insertedCalls = append(f.insertedCalls, &out)
	return &out, nil
}

func (f *fakeStore) GetTenantCall(_ context.Context, tenantID, id string) (*models.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.calls[id]
	if !ok || c.TenantID != tenantID {
		return nil, notFoundErr("call")
	}
	out := *c
	return &out, nil
}

func (f *fakeStore) GetCallByExternalID(_ context.Context, p models.Provider, externalID string) (*models.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.findCallLocked(p, externalID)
	if c == nil {
		return nil, notFoundErr("call")
	}
	out := *c
	return &out, nil
}

func (f *fakeStore) ListActiveCalls(_ context.Context, tenantID string) ([]models.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Call
	for _, c := range f.calls {
		if c.TenantID == tenantID && !c.Status.Terminal() {
			out = append(out, *c)
		}
	}
	return out, nil
}

// UpsertCallFromEvent mirrors the store's merge rules: terminal rows stay
// untouched, in_progress never regresses to queued, counters only grow.
func (f *fakeStore) UpsertCallFromEvent(_ context.Context, c *models.Call) (*models.Call, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing := f.findCallLocked(c.Provider, c.ExternalID)
	if existing != nil && existing.Status.Terminal() {
		out := *existing
		return &out, false, nil
	}

	if existing == nil {
		f.seq++
		row := *c
		row.ID = fmt.Sprintf("call-%d", f.seq)
		f.calls[row.ID] = &row
		existing = &row
	} else {
		if !(existing.Status == models.CallInProgress && c.Status == models.CallQueued) {
			existing.Status = c.Status
		}
		if existing.StartedAt == nil {
			existing.StartedAt = c.StartedAt
		}
		if c.EndedAt != nil {
			existing.EndedAt = c.EndedAt
		}
		if c.DurationSeconds > existing.DurationSeconds {
			existing.DurationSeconds = c.DurationSeconds
		}
		if c.CostCents > existing.CostCents {
			existing.CostCents = c.CostCents
		}
		if c.EndedReason != nil {
			existing.EndedReason = c.EndedReason
		}
		existing.Voicemail = existing.Voicemail || c.Voicemail
		if c.Transcript != nil {
			existing.Transcript = c.Transcript
		}
	}

	out := *existing
	f.upserted = append(f.upserted, &out)
	return &out, true, nil
}

func (f *fakeStore) UpdateCallTranscript(_ context.Context, id string, transcript, summary *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, transcriptUpdate{id: id, transcript: transcript, summary: summary})
	if c, ok := f.calls[id]; ok {
		if transcript != nil {
			c.Transcript = transcript
		}
		if summary != nil {
			c.Summary = summary
		}
	}
	return nil
}

func (f *fakeStore) UpdateCallAnalysis(_ context.Context, id string, res models.AnalysisResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyses = append(f.analyses, analysisUpdate{id: id, res: res})
	if c, ok := f.calls[id]; ok {
		c.Sentiment = lo.ToPtr(res.Sentiment)
		c.Summary = lo.ToPtr(res.Summary)
		c.Topics = res.Topics
		c.Score = lo.ToPtr(res.Score)
	}
	return nil
}

func (f *fakeStore) ListWorkflowsForTrigger(_ context.Context, tenantID string, agentID *string, trigger models.WorkflowTrigger) ([]models.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listWorkflowsErr != nil {
		return nil, f.listWorkflowsErr
	}
	var out []models.Workflow
	for _, wf := range f.workflows {
		if wf.TenantID != tenantID || !wf.Enabled || wf.Trigger != trigger {
			continue
		}
		if wf.AgentID != nil && (agentID == nil || *wf.AgentID != *agentID) {
			continue
		}
		out = append(out, wf)
	}
	return out, nil
}

func (f *fakeStore) InsertExecutionLog(_ context.Context, el *models.ExecutionLog) (*models.ExecutionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	out := *el
	out.ID = fmt.Sprintf("el-%d", f.seq)
	f.execLogs = append(f.execLogs, &out)
	return &out, nil
}

func (f *fakeStore) AddUsage(_ context.Context, tenantID string, subTenantID *string, period string, seconds, amountCents int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addUsageErr != nil {
		return f.addUsageErr
	}
	f.usageAdds = append(f.usageAdds, usageAdd{
		tenantID: tenantID, subTenantID: subTenantID, period: period,
		seconds: seconds, amountCents: amountCents,
	})

	key := tenantID + "/" + strValue(subTenantID) + "/" + period
	counter, ok := f.usage[key]
	if !ok {
		counter = &models.UsageCounter{TenantID: tenantID, SubTenantID: strValue(subTenantID), Period: period}
		f.usage[key] = counter
	}
	counter.Seconds += seconds
	counter.AmountCents += amountCents
	counter.Calls++
	return nil
}

func (f *fakeStore) GetUsage(_ context.Context, tenantID string, subTenantID *string, period string) (*models.UsageCounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counter, ok := f.usage[tenantID+"/"+strValue(subTenantID)+"/"+period]
	if !ok {
		return nil, notFoundErr("usage counter")
	}
	out := *counter
	return &out, nil
}

func (f *fakeStore) findCallLocked(p models.Provider, externalID string) *models.Call {
	for _, c := range f.calls {
		if c.Provider == p && c.ExternalID == externalID {
			return c
		}
	}
	return nil
}

// recordingSink captures published events. Safe for pool workers.
type recordingSink struct {
	mu             sync.Mutex
	callEvents     []events.CallEventPayload
	scheduleEvents []events.ScheduleEventPayload
	err            error
}

func (s *recordingSink) PublishCallEvent(_ context.Context, _ string, p events.CallEventPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.callEvents = append(s.callEvents, p)
	return nil
}

func (s *recordingSink) PublishScheduleEvent(_ context.Context, _ string, p events.ScheduleEventPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.scheduleEvents = append(s.scheduleEvents, p)
	return nil
}

// Fixtures. Tenant t-1 owns sub-tenant st-1 and the test agents; provider C
// deliberately has no tenant key so missing-key paths are reachable.

func testTenant() *models.Tenant {
	return &models.Tenant{
		ID:              "t-1",
		Name:            "Brightline Dental",
		ProviderAKey:    lo.ToPtr("tenant-key-a"),
		ProviderBKey:    lo.ToPtr("tenant-key-b"),
		WindowEnabled:   true,
		WindowStartHour: 9,
		WindowEndHour:   20,
		WindowDays:      models.IntList{1, 2, 3, 4, 5},
	}
}

func testSubTenant() *models.SubTenant {
	return &models.SubTenant{
		ID:                 "st-1",
		TenantID:           "t-1",
		Name:               "Downtown Clinic",
		BillingType:        models.BillingPerMinute,
		PerMinuteRateCents: 10,
		AIAnalysisEnabled:  true,
	}
}

func testProviderAgent(p models.Provider) *models.Agent {
	return &models.Agent{
		ID:         "ag-1",
		TenantID:   "t-1",
		Name:       "Reception",
		Provider:   p,
		ExternalID: "ext-ag-1",
	}
}

// newTestRegistry points all three provider adapters at one local server.
func newTestRegistry(t *testing.T, handler http.Handler) (*provider.Registry, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return provider.NewRegistry(provider.Config{
		BaseURLA:   srv.URL,
		BaseURLB:   srv.URL,
		BaseURLC:   srv.URL,
		HTTPClient: srv.Client(),
	}), srv
}
