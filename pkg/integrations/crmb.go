package integrations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
)

const defaultCRMBBaseURL = "https://api.crm-b.example.com"

// CRMBTokenURL is CRM B's OAuth token endpoint, registered with the
// TokenRefresher at startup.
const CRMBTokenURL = defaultCRMBBaseURL + "/oauth/v1/token"

// CRMBClient speaks to CRM B, an OAuth vendor with single-use refresh
// tokens. Access tokens come from the TokenRefresher; a 401 on use drops
// the cached token and surfaces as retryable so the retry refreshes.
type CRMBClient struct {
	http   *httpClient
	tokens *TokenRefresher
}

// NewCRMB builds a CRM B client against the given base URL.
func NewCRMB(baseURL string, hc *http.Client, tokens *TokenRefresher) *CRMBClient {
	if baseURL == "" {
		baseURL = defaultCRMBBaseURL
	}
	return &CRMBClient{http: newHTTPClient(models.IntegrationCRMB, baseURL, hc), tokens: tokens}
}

func (c *CRMBClient) doAuthed(ctx context.Context, cfg *models.IntegrationConfig, op, method, path string, payload, out any) error {
	if c.tokens == nil {
		return &Error{Integration: models.IntegrationCRMB, Op: op, Message: "oauth refresher not configured"}
	}
	token, err := c.tokens.AccessToken(ctx, cfg)
	if err != nil {
		return err
	}
	err = c.http.do(ctx, op, method, path, bearerAuth(token), payload, out)
	var ie *Error
	if errors.As(err, &ie) && ie.StatusCode == http.StatusUnauthorized {
		// The vendor rejected a token we believed valid. Drop it so the
		// next attempt refreshes instead of replaying the dead token.
		c.tokens.Invalidate(cfg.TenantID, cfg.Integration)
		ie.Transient = true
	}
	return err
}

// LogCall records a call engagement associated with a contact.
func (c *CRMBClient) LogCall(ctx context.Context, cfg *models.IntegrationConfig, log CallLog) error {
	payload := map[string]any{
		"properties": map[string]any{
			"call_direction":   log.Direction,
			"call_status":      log.Status,
			"call_duration_ms": log.DurationSeconds * 1000,
			"call_body":        log.Notes,
		},
		"associations": []map[string]any{
			{"toObjectId": log.ContactID, "type": "call_to_contact"},
		},
	}
	return c.doAuthed(ctx, cfg, "log_call", http.MethodPost, "/crm/v3/objects/calls", payload, nil)
}

// UpsertContact searches by phone and patches the match, or creates a new
// contact. Returns the CRM's contact id.
func (c *CRMBClient) UpsertContact(ctx context.Context, cfg *models.IntegrationConfig, in ContactUpsert) (string, error) {
	search := map[string]any{
		"filterGroups": []map[string]any{
			{"filters": []map[string]any{
				{"propertyName": "phone", "operator": "EQ", "value": in.Phone},
			}},
		},
		"limit": 1,
	}
	var found struct {
		Total   int `json:"total"`
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := c.doAuthed(ctx, cfg, "upsert_contact", http.MethodPost, "/crm/v3/objects/contacts/search", search, &found); err != nil {
		return "", err
	}

	properties := map[string]any{"phone": in.Phone}
	if in.Name != "" {
		properties["name"] = in.Name
	}
	if in.Email != "" {
		properties["email"] = in.Email
	}
	for k, v := range in.Fields {
		properties[k] = v
	}
	payload := map[string]any{"properties": properties}

	if found.Total > 0 && len(found.Results) > 0 {
		id := found.Results[0].ID
		if err := c.doAuthed(ctx, cfg, "upsert_contact", http.MethodPatch, "/crm/v3/objects/contacts/"+id, payload, nil); err != nil {
			return "", err
		}
		return id, nil
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.doAuthed(ctx, cfg, "upsert_contact", http.MethodPost, "/crm/v3/objects/contacts", payload, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &Error{Integration: models.IntegrationCRMB, Op: "upsert_contact", Message: "response missing contact id"}
	}
	return created.ID, nil
}

// UpdateDealStage moves a deal to a new pipeline stage.
func (c *CRMBClient) UpdateDealStage(ctx context.Context, cfg *models.IntegrationConfig, dealID, stageID string) error {
	payload := map[string]any{"properties": map[string]any{"dealstage": stageID}}
	return c.doAuthed(ctx, cfg, "update_pipeline_stage", http.MethodPatch, "/crm/v3/objects/deals/"+dealID, payload, nil)
}

// Deal opens a sales deal associated with a contact.
type Deal struct {
	ContactID   string
	Name        string
	Stage       string
	AmountCents int
}

// CreateDeal opens a new deal and returns its id.
func (c *CRMBClient) CreateDeal(ctx context.Context, cfg *models.IntegrationConfig, deal Deal) (string, error) {
	properties := map[string]any{"dealname": deal.Name}
	if deal.Stage != "" {
		properties["dealstage"] = deal.Stage
	}
	if deal.AmountCents > 0 {
		properties["amount"] = fmt.Sprintf("%d.%02d", deal.AmountCents/100, deal.AmountCents%100)
	}
	payload := map[string]any{
		"properties": properties,
		"associations": []map[string]any{
			{"toObjectId": deal.ContactID, "type": "deal_to_contact"},
		},
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.doAuthed(ctx, cfg, "create_deal", http.MethodPost, "/crm/v3/objects/deals", payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &Error{Integration: models.IntegrationCRMB, Op: "create_deal", Message: "response missing deal id"}
	}
	return out.ID, nil
}

// Task is a follow-up item assigned against a contact.
type Task struct {
	ContactID string
	Subject   string
	Body      string
	DueAt     *time.Time
}

// CreateTask creates a follow-up task and returns its id.
func (c *CRMBClient) CreateTask(ctx context.Context, cfg *models.IntegrationConfig, task Task) (string, error) {
	properties := map[string]any{
		"task_subject": task.Subject,
		"task_body":    task.Body,
		"task_status":  "NOT_STARTED",
	}
	if task.DueAt != nil {
		properties["task_due_date"] = task.DueAt.UTC().Format(time.RFC3339)
	}
	payload := map[string]any{
		"properties": properties,
		"associations": []map[string]any{
			{"toObjectId": task.ContactID, "type": "task_to_contact"},
		},
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.doAuthed(ctx, cfg, "create_task", http.MethodPost, "/crm/v3/objects/tasks", payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &Error{Integration: models.IntegrationCRMB, Op: "create_task", Message: "response missing task id"}
	}
	return out.ID, nil
}

// UpdateContactField sets one property on a contact.
func (c *CRMBClient) UpdateContactField(ctx context.Context, cfg *models.IntegrationConfig, contactID, field string, value any) error {
	payload := map[string]any{"properties": map[string]any{field: value}}
	return c.doAuthed(ctx, cfg, "update_field", http.MethodPatch, "/crm/v3/objects/contacts/"+contactID, payload, nil)
}

// SetLeadScore writes the CRM's lead score property.
func (c *CRMBClient) SetLeadScore(ctx context.Context, cfg *models.IntegrationConfig, contactID string, score int) error {
	return c.UpdateContactField(ctx, cfg, contactID, "lead_score", fmt.Sprintf("%d", score))
}

// AddNote attaches a note to a contact.
func (c *CRMBClient) AddNote(ctx context.Context, cfg *models.IntegrationConfig, contactID, body string) error {
	payload := map[string]any{
		"properties": map[string]any{"body": body},
		"associations": []map[string]any{
			{"toObjectId": contactID, "type": "note_to_contact"},
		},
	}
	return c.doAuthed(ctx, cfg, "add_call_note", http.MethodPost, "/crm/v3/objects/notes", payload, nil)
}
