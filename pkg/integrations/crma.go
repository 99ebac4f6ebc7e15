package integrations

import (
	"context"
	"net/http"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
)

const defaultCRMABaseURL = "https://api.crm-a.example.com"

// CRMAClient speaks to CRM A. Auth is a static per-tenant API key; every
// write is scoped to the tenant's location id. Config keys: "api_key",
// "location_id".
type CRMAClient struct {
	http *httpClient
}

// NewCRMA builds a CRM A client against the given base URL.
func NewCRMA(baseURL string, hc *http.Client) *CRMAClient {
	if baseURL == "" {
		baseURL = defaultCRMABaseURL
	}
	return &CRMAClient{http: newHTTPClient(models.IntegrationCRMA, baseURL, hc)}
}

func (c *CRMAClient) auth(cfg *models.IntegrationConfig) (func(*http.Request), error) {
	key := cfg.ConfigString("api_key")
	if key == "" {
		return nil, &Error{Integration: models.IntegrationCRMA, Op: "auth", Message: "integration has no api key"}
	}
	return bearerAuth(key), nil
}

// CallLog is a completed call pushed into the CRM's activity stream.
type CallLog struct {
	ContactID       string `json:"contactId"`
	Direction       string `json:"direction"`
	Status          string `json:"status"`
	DurationSeconds int    `json:"durationSeconds"`
	Notes           string `json:"notes,omitempty"`
}

// LogCall records a call activity against a contact.
func (c *CRMAClient) LogCall(ctx context.Context, cfg *models.IntegrationConfig, log CallLog) error {
	auth, err := c.auth(cfg)
	if err != nil {
		return err
	}
	payload := struct {
		LocationID string `json:"locationId"`
		CallLog
	}{cfg.ConfigString("location_id"), log}
	return c.http.do(ctx, "log_call", http.MethodPost, "/calls", auth, payload, nil)
}

// ContactUpsert identifies a contact by phone; name and fields are optional.
type ContactUpsert struct {
	Phone  string         `json:"phone"`
	Name   string         `json:"name,omitempty"`
	Email  string         `json:"email,omitempty"`
	Fields map[string]any `json:"customFields,omitempty"`
}

// UpsertContact creates or updates a contact keyed on phone number and
// returns the CRM's contact id.
func (c *CRMAClient) UpsertContact(ctx context.Context, cfg *models.IntegrationConfig, in ContactUpsert) (string, error) {
	auth, err := c.auth(cfg)
	if err != nil {
		return "", err
	}
	payload := struct {
		LocationID string `json:"locationId"`
		ContactUpsert
	}{cfg.ConfigString("location_id"), in}
	var out struct {
		Contact struct {
			ID string `json:"id"`
		} `json:"contact"`
	}
	if err := c.http.do(ctx, "upsert_contact", http.MethodPost, "/contacts/upsert", auth, payload, &out); err != nil {
		return "", err
	}
	if out.Contact.ID == "" {
		return "", &Error{Integration: models.IntegrationCRMA, Op: "upsert_contact", Message: "response missing contact id"}
	}
	return out.Contact.ID, nil
}

// AddTags appends tags to a contact. Existing tags are preserved.
func (c *CRMAClient) AddTags(ctx context.Context, cfg *models.IntegrationConfig, contactID string, tags []string) error {
	auth, err := c.auth(cfg)
	if err != nil {
		return err
	}
	payload := map[string]any{"tags": tags}
	return c.http.do(ctx, "add_tags", http.MethodPost, "/contacts/"+contactID+"/tags", auth, payload, nil)
}

// RemoveTags detaches tags from a contact. Unknown tags are ignored by the
// CRM.
func (c *CRMAClient) RemoveTags(ctx context.Context, cfg *models.IntegrationConfig, contactID string, tags []string) error {
	auth, err := c.auth(cfg)
	if err != nil {
		return err
	}
	payload := map[string]any{"tags": tags}
	return c.http.do(ctx, "remove_tags", http.MethodDelete, "/contacts/"+contactID+"/tags", auth, payload, nil)
}

// UpdatePipelineStage moves an opportunity to a new stage.
func (c *CRMAClient) UpdatePipelineStage(ctx context.Context, cfg *models.IntegrationConfig, opportunityID, pipelineID, stageID string) error {
	auth, err := c.auth(cfg)
	if err != nil {
		return err
	}
	payload := map[string]any{"pipelineId": pipelineID, "stageId": stageID}
	return c.http.do(ctx, "update_pipeline_stage", http.MethodPut, "/opportunities/"+opportunityID, auth, payload, nil)
}

// Opportunity opens a pipeline entry for a contact.
type Opportunity struct {
	ContactID  string `json:"contactId"`
	PipelineID string `json:"pipelineId"`
	StageID    string `json:"stageId,omitempty"`
	Name       string `json:"name"`
	ValueCents int    `json:"monetaryValue,omitempty"`
	Status     string `json:"status,omitempty"`
}

// CreateOpportunity opens a new opportunity and returns its id.
func (c *CRMAClient) CreateOpportunity(ctx context.Context, cfg *models.IntegrationConfig, opp Opportunity) (string, error) {
	auth, err := c.auth(cfg)
	if err != nil {
		return "", err
	}
	payload := struct {
		LocationID string `json:"locationId"`
		Opportunity
	}{cfg.ConfigString("location_id"), opp}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.http.do(ctx, "create_opportunity", http.MethodPost, "/opportunities", auth, payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &Error{Integration: models.IntegrationCRMA, Op: "create_opportunity", Message: "response missing opportunity id"}
	}
	return out.ID, nil
}

// UpdateContactField sets one field on a contact.
func (c *CRMAClient) UpdateContactField(ctx context.Context, cfg *models.IntegrationConfig, contactID, field string, value any) error {
	auth, err := c.auth(cfg)
	if err != nil {
		return err
	}
	payload := map[string]any{"customFields": map[string]any{field: value}}
	return c.http.do(ctx, "update_field", http.MethodPut, "/contacts/"+contactID, auth, payload, nil)
}

// SetLeadScore writes the CRM's lead score field.
func (c *CRMAClient) SetLeadScore(ctx context.Context, cfg *models.IntegrationConfig, contactID string, score int) error {
	return c.UpdateContactField(ctx, cfg, contactID, "lead_score", score)
}

// Appointment books a contact into a CRM calendar slot.
type Appointment struct {
	CalendarID string    `json:"calendarId"`
	ContactID  string    `json:"contactId"`
	Title      string    `json:"title,omitempty"`
	StartAt    time.Time `json:"startTime"`
	EndAt      time.Time `json:"endTime"`
}

// BookAppointment creates an appointment and returns its id.
func (c *CRMAClient) BookAppointment(ctx context.Context, cfg *models.IntegrationConfig, appt Appointment) (string, error) {
	auth, err := c.auth(cfg)
	if err != nil {
		return "", err
	}
	payload := struct {
		LocationID string `json:"locationId"`
		Appointment
	}{cfg.ConfigString("location_id"), appt}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.http.do(ctx, "book_appointment", http.MethodPost, "/appointments", auth, payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &Error{Integration: models.IntegrationCRMA, Op: "book_appointment", Message: "response missing appointment id"}
	}
	return out.ID, nil
}

// CancelAppointment deletes an appointment.
func (c *CRMAClient) CancelAppointment(ctx context.Context, cfg *models.IntegrationConfig, appointmentID string) error {
	auth, err := c.auth(cfg)
	if err != nil {
		return err
	}
	return c.http.do(ctx, "cancel_appointment", http.MethodDelete, "/appointments/"+appointmentID, auth, nil, nil)
}

// AddCallNote attaches a free-form note to a contact.
func (c *CRMAClient) AddCallNote(ctx context.Context, cfg *models.IntegrationConfig, contactID, body string) error {
	auth, err := c.auth(cfg)
	if err != nil {
		return err
	}
	payload := map[string]any{"body": body}
	return c.http.do(ctx, "add_call_note", http.MethodPost, "/contacts/"+contactID+"/notes", auth, payload, nil)
}

// TriggerWorkflow enrolls a contact into a CRM-side workflow.
func (c *CRMAClient) TriggerWorkflow(ctx context.Context, cfg *models.IntegrationConfig, workflowID, contactID string) error {
	auth, err := c.auth(cfg)
	if err != nil {
		return err
	}
	payload := map[string]any{"contactId": contactID}
	return c.http.do(ctx, "trigger_workflow", http.MethodPost, "/workflows/"+workflowID+"/enroll", auth, payload, nil)
}

// AddToCampaign enrolls a contact into a marketing campaign.
func (c *CRMAClient) AddToCampaign(ctx context.Context, cfg *models.IntegrationConfig, campaignID, contactID string) error {
	auth, err := c.auth(cfg)
	if err != nil {
		return err
	}
	payload := map[string]any{"contactId": contactID}
	return c.http.do(ctx, "add_to_campaign", http.MethodPost, "/campaigns/"+campaignID+"/contacts", auth, payload, nil)
}

// SendSMS sends a text message through the CRM's messaging channel.
func (c *CRMAClient) SendSMS(ctx context.Context, cfg *models.IntegrationConfig, toPhone, message string) error {
	auth, err := c.auth(cfg)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"locationId": cfg.ConfigString("location_id"),
		"type":       "SMS",
		"phone":      toPhone,
		"message":    message,
	}
	return c.http.do(ctx, "send_sms", http.MethodPost, "/messages", auth, payload, nil)
}

// SendEmail sends an email through the CRM's messaging channel.
func (c *CRMAClient) SendEmail(ctx context.Context, cfg *models.IntegrationConfig, toEmail, subject, body string) error {
	auth, err := c.auth(cfg)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"locationId": cfg.ConfigString("location_id"),
		"type":       "Email",
		"email":      toEmail,
		"subject":    subject,
		"body":       body,
	}
	return c.http.do(ctx, "send_email", http.MethodPost, "/messages", auth, payload, nil)
}
