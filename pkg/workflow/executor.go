package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"

	"github.com/paradyne-ai/callcore/pkg/integrations"
	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/store"
)

const (
	// actionTimeout bounds each attempt of one action's external call.
	actionTimeout = 15 * time.Second

	// workflowDeadline is the soft budget for one workflow. When it expires
	// mid-run, remaining actions record skipped.
	workflowDeadline = 60 * time.Second

	actionAttempts = 3
	retryBaseDelay = time.Second
	retryMaxJitter = 400 * time.Millisecond
)

// Store is the persistence surface the executor needs.
type Store interface {
	GetIntegrationConfig(ctx context.Context, tenantID string, integration models.Integration) (*models.IntegrationConfig, error)
	InsertExecutionLog(ctx context.Context, el *models.ExecutionLog) (*models.ExecutionLog, error)
}

// IntegrationContext holds the integration config rows resolved for one
// execution. A nil entry means the tenant has no row for that integration.
type IntegrationContext map[models.Integration]*models.IntegrationConfig

// Executor runs workflows against ended calls. One Execute call runs one
// workflow; callers fan independent workflows out across background tasks.
type Executor struct {
	store   Store
	clients *integrations.Clients
	webhook *http.Client

	now         func() time.Time
	deadline    time.Duration
	retryDelay  time.Duration
	validateURL func(string) error
}

// NewExecutor wires the executor. webhookClient serves tenant-supplied
// webhook actions; nil gets a default with the per-attempt timeout.
func NewExecutor(st Store, clients *integrations.Clients, webhookClient *http.Client) *Executor {
	if webhookClient == nil {
		webhookClient = &http.Client{Timeout: actionTimeout}
	}
	return &Executor{
		store:       st,
		clients:     clients,
		webhook:     webhookClient,
		now:         time.Now,
		deadline:    workflowDeadline,
		retryDelay:  retryBaseDelay,
		validateURL: ValidateWebhookURL,
	}
}

// Execute evaluates one workflow's conditions against the call and, when they
// pass, runs its actions in order. Exactly one execution log row is written,
// after the final action settles. The returned log mirrors the stored row.
func (e *Executor) Execute(ctx context.Context, wf *models.Workflow, call *models.Call, agent *models.Agent) (*models.ExecutionLog, error) {
	payload := BuildCallPayload(call, agent)
	startedAt := e.now().UTC()

	if !EvaluateConditions(wf.Conditions, payload) {
		slog.Debug("Workflow conditions not met", "workflow_id", wf.ID, "call_id", call.ID)
		return e.writeLog(ctx, &models.ExecutionLog{
			WorkflowID:     wf.ID,
			CallID:         call.ID,
			TenantID:       wf.TenantID,
			Status:         models.WorkflowSkipped,
			ActionsTotal:   len(wf.Actions),
			ActionsSkipped: len(wf.Actions),
			StartedAt:      startedAt,
			CompletedAt:    e.now().UTC(),
		})
	}

	ictx, err := e.resolveIntegrations(ctx, wf.TenantID, wf.Actions)
	if err != nil {
		return nil, err
	}

	wfCtx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	results := make(models.ActionResultList, 0, len(wf.Actions))
	var succeeded, failed, skipped int
	fatal := false
	timedOut := false

	for i, action := range wf.Actions {
		if wfCtx.Err() != nil && !fatal {
			timedOut = true
		}
		if fatal || timedOut {
			now := e.now().UTC()
			results = append(results, models.ActionResult{
				Index: i, Type: action.Type, Status: models.ActionSkipped,
				StartedAt: now, CompletedAt: now,
			})
			skipped++
			continue
		}

		res := e.runAction(wfCtx, ictx, i, action, payload)
		results = append(results, res)
		switch res.Status {
		case models.ActionSuccess:
			succeeded++
		default:
			failed++
			if CanFatalStop(action.Type) {
				slog.Warn("Workflow stopped on fatal action failure",
					"workflow_id", wf.ID, "call_id", call.ID, "action", action.Type, "index", i)
				fatal = true
			}
		}
	}

	status := aggregateStatus(succeeded, failed, skipped, timedOut)
	if timedOut {
		slog.Warn("Workflow deadline expired, remaining actions skipped",
			"workflow_id", wf.ID, "call_id", call.ID, "skipped", skipped)
	}

	return e.writeLog(ctx, &models.ExecutionLog{
		WorkflowID:       wf.ID,
		CallID:           call.ID,
		TenantID:         wf.TenantID,
		Status:           status,
		ActionsTotal:     len(wf.Actions),
		ActionsSucceeded: succeeded,
		ActionsFailed:    failed,
		ActionsSkipped:   skipped,
		Results:          results,
		StartedAt:        startedAt,
		CompletedAt:      e.now().UTC(),
	})
}

// runAction executes one action with per-attempt timeouts and retry on
// retryable failures. Interpolation happens once; attempts replay the same
// resolved config.
func (e *Executor) runAction(ctx context.Context, ictx IntegrationContext, index int, action models.ActionConfig, payload map[string]any) models.ActionResult {
	res := models.ActionResult{Index: index, Type: action.Type, StartedAt: e.now().UTC()}
	cfg := InterpolateConfig(action.Config, payload)

	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			attemptCtx, cancel := context.WithTimeout(ctx, actionTimeout)
			defer cancel()
			return e.dispatch(attemptCtx, ictx, action.Type, cfg, payload)
		},
		retry.Attempts(actionAttempts),
		retry.Delay(e.retryDelay),
		retry.MaxJitter(retryMaxJitter),
		retry.RetryIf(retryableError),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)

	res.CompletedAt = e.now().UTC()
	res.DurationMs = res.CompletedAt.Sub(res.StartedAt).Milliseconds()
	res.Attempts = attempts
	if err != nil {
		res.Status = models.ActionFailed
		res.Error = err.Error()
		slog.Warn("Workflow action failed",
			"action", action.Type, "index", index, "attempts", attempts, "error", err)
		return res
	}
	res.Status = models.ActionSuccess
	return res
}

// resolveIntegrations fetches each integration config the action list needs,
// once. Missing rows resolve to nil; the action that needs them fails with a
// configuration error instead of aborting the whole execution.
func (e *Executor) resolveIntegrations(ctx context.Context, tenantID string, actions models.ActionList) (IntegrationContext, error) {
	ictx := IntegrationContext{}
	for _, action := range actions {
		integration, ok := RequiredIntegration(action.Type)
		if !ok {
			continue
		}
		if _, seen := ictx[integration]; seen {
			continue
		}
		cfg, err := e.store.GetIntegrationConfig(ctx, tenantID, integration)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				ictx[integration] = nil
				continue
			}
			return nil, fmt.Errorf("failed to resolve %s integration: %w", integration, err)
		}
		ictx[integration] = cfg
	}
	return ictx, nil
}

func (e *Executor) writeLog(ctx context.Context, el *models.ExecutionLog) (*models.ExecutionLog, error) {
	stored, err := e.store.InsertExecutionLog(ctx, el)
	if err != nil {
		return nil, fmt.Errorf("failed to write execution log: %w", err)
	}
	return stored, nil
}

// aggregateStatus folds per-action outcomes into the workflow status. A
// deadline expiry always reads partial_failure: the run was cut short, so the
// log must not claim a clean completion or a total failure.
func aggregateStatus(succeeded, failed, skipped int, timedOut bool) models.WorkflowStatus {
	if timedOut {
		return models.WorkflowPartialFailure
	}
	if failed == 0 && skipped == 0 {
		return models.WorkflowCompleted
	}
	if succeeded == 0 && failed > 0 {
		return models.WorkflowFailed
	}
	return models.WorkflowPartialFailure
}

// retryableError gates retries on the client's own classification. Anything
// unclassified (config errors, template mistakes, unknown action types) is
// final on the first attempt.
func retryableError(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}
