package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paradyne-ai/callcore/pkg/integrations"
	"github.com/paradyne-ai/callcore/pkg/models"
)

// actionError is a classified action failure. Config mistakes are final;
// webhook transport failures mark themselves retryable.
type actionError struct {
	msg       string
	retryable bool
}

func (e *actionError) Error() string   { return e.msg }
func (e *actionError) Retryable() bool { return e.retryable }

func configErrf(format string, args ...any) error {
	return &actionError{msg: fmt.Sprintf(format, args...)}
}

// dispatch routes one action to its integration client. cfg is the
// interpolated action config; payload is the call payload for call-derived
// defaults (lead number, duration, score).
func (e *Executor) dispatch(ctx context.Context, ictx IntegrationContext, actionType string, cfg, payload map[string]any) error {
	if !Known(actionType) {
		return configErrf("unknown action type %q", actionType)
	}

	var icfg *models.IntegrationConfig
	if integration, ok := RequiredIntegration(actionType); ok {
		icfg = ictx[integration]
		if icfg == nil || !icfg.Enabled {
			return configErrf("integration %s is not configured", integration)
		}
	}

	switch actionType {
	case "webhook_get", "webhook_post", "webhook_put", "webhook_delete":
		return e.runWebhook(ctx, actionType, cfg)

	case "crm_a_log_call":
		return e.clients.CRMA.LogCall(ctx, icfg, callLogFrom(cfg, payload))
	case "crm_a_upsert_contact":
		_, err := e.clients.CRMA.UpsertContact(ctx, icfg, contactUpsertFrom(cfg, payload))
		return err
	case "crm_a_add_tags":
		contactID, tags, err := contactTags(cfg)
		if err != nil {
			return err
		}
		return e.clients.CRMA.AddTags(ctx, icfg, contactID, tags)
	case "crm_a_remove_tags":
		contactID, tags, err := contactTags(cfg)
		if err != nil {
			return err
		}
		return e.clients.CRMA.RemoveTags(ctx, icfg, contactID, tags)
	case "crm_a_update_pipeline_stage":
		opportunityID := cfgString(cfg, "opportunity_id")
		if opportunityID == "" {
			return configErrf("action config requires opportunity_id")
		}
		return e.clients.CRMA.UpdatePipelineStage(ctx, icfg, opportunityID,
			cfgString(cfg, "pipeline_id"), cfgString(cfg, "stage_id"))
	case "crm_a_create_opportunity":
		opp := integrations.Opportunity{
			ContactID:  cfgString(cfg, "contact_id"),
			PipelineID: cfgString(cfg, "pipeline_id"),
			StageID:    cfgString(cfg, "stage_id"),
			Name:       cfgString(cfg, "name"),
			Status:     cfgString(cfg, "status"),
		}
		if opp.ContactID == "" || opp.Name == "" {
			return configErrf("action config requires contact_id and name")
		}
		if v, ok := cfgInt(cfg, "value_cents"); ok {
			opp.ValueCents = v
		}
		_, err := e.clients.CRMA.CreateOpportunity(ctx, icfg, opp)
		return err
	case "crm_a_update_contact_field":
		contactID, field := cfgString(cfg, "contact_id"), cfgString(cfg, "field")
		if contactID == "" || field == "" {
			return configErrf("action config requires contact_id and field")
		}
		return e.clients.CRMA.UpdateContactField(ctx, icfg, contactID, field, cfg["value"])
	case "crm_a_set_lead_score":
		contactID, score, err := contactScore(cfg, payload)
		if err != nil {
			return err
		}
		return e.clients.CRMA.SetLeadScore(ctx, icfg, contactID, score)
	case "crm_a_book_appointment":
		start, end, err := bookingSpan(cfg)
		if err != nil {
			return err
		}
		calendarID := cfgString(cfg, "calendar_id")
		if calendarID == "" {
			calendarID = icfg.ConfigString("calendar_id")
		}
		contactID := cfgString(cfg, "contact_id")
		if calendarID == "" || contactID == "" {
			return configErrf("action config requires calendar_id and contact_id")
		}
		_, err = e.clients.CRMA.BookAppointment(ctx, icfg, integrations.Appointment{
			CalendarID: calendarID,
			ContactID:  contactID,
			Title:      cfgString(cfg, "title"),
			StartAt:    start,
			EndAt:      end,
		})
		return err
	case "crm_a_cancel_appointment":
		appointmentID := cfgString(cfg, "appointment_id")
		if appointmentID == "" {
			return configErrf("action config requires appointment_id")
		}
		return e.clients.CRMA.CancelAppointment(ctx, icfg, appointmentID)
	case "crm_a_add_call_note":
		contactID, body := cfgString(cfg, "contact_id"), cfgString(cfg, "body")
		if contactID == "" || body == "" {
			return configErrf("action config requires contact_id and body")
		}
		return e.clients.CRMA.AddCallNote(ctx, icfg, contactID, body)
	case "crm_a_trigger_workflow":
		workflowID, contactID := cfgString(cfg, "workflow_id"), cfgString(cfg, "contact_id")
		if workflowID == "" || contactID == "" {
			return configErrf("action config requires workflow_id and contact_id")
		}
		return e.clients.CRMA.TriggerWorkflow(ctx, icfg, workflowID, contactID)
	case "crm_a_add_to_campaign":
		campaignID, contactID := cfgString(cfg, "campaign_id"), cfgString(cfg, "contact_id")
		if campaignID == "" || contactID == "" {
			return configErrf("action config requires campaign_id and contact_id")
		}
		return e.clients.CRMA.AddToCampaign(ctx, icfg, campaignID, contactID)

	case "crm_b_log_call":
		return e.clients.CRMB.LogCall(ctx, icfg, callLogFrom(cfg, payload))
	case "crm_b_upsert_contact":
		_, err := e.clients.CRMB.UpsertContact(ctx, icfg, contactUpsertFrom(cfg, payload))
		return err
	case "crm_b_update_deal_stage":
		dealID, stageID := cfgString(cfg, "deal_id"), cfgString(cfg, "stage_id")
		if dealID == "" || stageID == "" {
			return configErrf("action config requires deal_id and stage_id")
		}
		return e.clients.CRMB.UpdateDealStage(ctx, icfg, dealID, stageID)
	case "crm_b_create_deal":
		deal := integrations.Deal{
			ContactID: cfgString(cfg, "contact_id"),
			Name:      cfgString(cfg, "name"),
			Stage:     cfgString(cfg, "stage_id"),
		}
		if deal.ContactID == "" || deal.Name == "" {
			return configErrf("action config requires contact_id and name")
		}
		if v, ok := cfgInt(cfg, "amount_cents"); ok {
			deal.AmountCents = v
		}
		_, err := e.clients.CRMB.CreateDeal(ctx, icfg, deal)
		return err
	case "crm_b_update_contact_field":
		contactID, field := cfgString(cfg, "contact_id"), cfgString(cfg, "field")
		if contactID == "" || field == "" {
			return configErrf("action config requires contact_id and field")
		}
		return e.clients.CRMB.UpdateContactField(ctx, icfg, contactID, field, cfg["value"])
	case "crm_b_set_lead_score":
		contactID, score, err := contactScore(cfg, payload)
		if err != nil {
			return err
		}
		return e.clients.CRMB.SetLeadScore(ctx, icfg, contactID, score)
	case "crm_b_add_note":
		contactID, body := cfgString(cfg, "contact_id"), cfgString(cfg, "body")
		if contactID == "" || body == "" {
			return configErrf("action config requires contact_id and body")
		}
		return e.clients.CRMB.AddNote(ctx, icfg, contactID, body)
	case "crm_b_create_task":
		task := integrations.Task{
			ContactID: cfgString(cfg, "contact_id"),
			Subject:   cfgString(cfg, "subject"),
			Body:      cfgString(cfg, "body"),
		}
		if task.ContactID == "" || task.Subject == "" {
			return configErrf("action config requires contact_id and subject")
		}
		if raw := cfgString(cfg, "due_at"); raw != "" {
			due, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return configErrf("invalid due_at %q: %v", raw, err)
			}
			task.DueAt = &due
		}
		_, err := e.clients.CRMB.CreateTask(ctx, icfg, task)
		return err

	case "calendar_book_event":
		start, end, err := bookingSpan(cfg)
		if err != nil {
			return err
		}
		summary := cfgString(cfg, "summary")
		if summary == "" {
			return configErrf("action config requires summary")
		}
		_, err = e.clients.Calendar.BookEvent(ctx, icfg, integrations.EventBooking{
			Summary:   summary,
			StartAt:   start,
			EndAt:     end,
			Attendees: cfgStrings(cfg, "attendees"),
			Notes:     cfgString(cfg, "notes"),
		})
		return err
	case "calendar_cancel_event":
		eventID := cfgString(cfg, "event_id")
		if eventID == "" {
			return configErrf("action config requires event_id")
		}
		return e.clients.Calendar.CancelEvent(ctx, icfg, eventID)
	case "calendar_check_availability":
		start, end, err := bookingSpan(cfg)
		if err != nil {
			return err
		}
		_, err = e.clients.Calendar.CheckAvailability(ctx, icfg, start, end)
		return err

	case "sched_get_availability":
		start, end, err := bookingSpan(cfg)
		if err != nil {
			return err
		}
		_, err = e.clients.Sched.Availability(ctx, icfg, start, end)
		return err
	case "sched_create_booking_link":
		maxUses, _ := cfgInt(cfg, "max_uses")
		_, err := e.clients.Sched.CreateBookingLink(ctx, icfg, maxUses)
		return err
	case "sched_create_booking":
		start, err := cfgTime(cfg, "start")
		if err != nil {
			return err
		}
		name := cfgString(cfg, "invitee_name")
		if name == "" {
			return configErrf("action config requires invitee_name")
		}
		phone := cfgString(cfg, "invitee_phone")
		if phone == "" {
			phone = leadNumber(payload)
		}
		_, err = e.clients.Sched.CreateBooking(ctx, icfg, integrations.Booking{
			InviteeName:  name,
			InviteePhone: phone,
			StartAt:      start,
		})
		return err
	case "sched_cancel_booking":
		bookingID := cfgString(cfg, "booking_id")
		if bookingID == "" {
			return configErrf("action config requires booking_id")
		}
		return e.clients.Sched.CancelBooking(ctx, icfg, bookingID, cfgString(cfg, "reason"))

	case "sms_send":
		to := cfgString(cfg, "to")
		if to == "" {
			to = leadNumber(payload)
		}
		message := cfgString(cfg, "message")
		if to == "" || message == "" {
			return configErrf("action config requires to and message")
		}
		return e.clients.CRMA.SendSMS(ctx, icfg, to, message)
	case "email_send":
		to, body := cfgString(cfg, "to"), cfgString(cfg, "body")
		if to == "" || body == "" {
			return configErrf("action config requires to and body")
		}
		return e.clients.CRMA.SendEmail(ctx, icfg, to, cfgString(cfg, "subject"), body)
	case "chat_notify":
		return e.clients.Chat.Notify(ctx, icfg, chatNotificationFrom(cfg, payload))

	default:
		return configErrf("action type %q has no dispatcher", actionType)
	}
}

// runWebhook performs a tenant-supplied HTTP call. The URL is validated
// post-interpolation so placeholders cannot smuggle in a private target.
func (e *Executor) runWebhook(ctx context.Context, actionType string, cfg map[string]any) error {
	rawURL := cfgString(cfg, "url")
	if rawURL == "" {
		return configErrf("action config requires url")
	}
	if err := e.validateURL(rawURL); err != nil {
		return &actionError{msg: err.Error()}
	}

	method := http.MethodGet
	switch actionType {
	case "webhook_post":
		method = http.MethodPost
	case "webhook_put":
		method = http.MethodPut
	case "webhook_delete":
		method = http.MethodDelete
	}

	var body io.Reader
	if raw, ok := cfg["body"]; ok && method != http.MethodGet {
		data, err := json.Marshal(raw)
		if err != nil {
			return configErrf("failed to encode webhook body: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return configErrf("invalid webhook request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range cfgMap(cfg, "headers") {
		req.Header.Set(k, stringify(v))
	}

	resp, err := e.webhook.Do(req)
	if err != nil {
		return &actionError{msg: fmt.Sprintf("webhook request failed: %v", err), retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &actionError{
			msg:       fmt.Sprintf("webhook returned status %d", resp.StatusCode),
			retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}
	return nil
}

// callLogFrom derives the CRM call-log record from the call payload;
// contact_id comes from the action config.
func callLogFrom(cfg, payload map[string]any) integrations.CallLog {
	return integrations.CallLog{
		ContactID:       cfgString(cfg, "contact_id"),
		Direction:       stringify(callField(payload, "direction")),
		Status:          stringify(callField(payload, "status")),
		DurationSeconds: intFromAny(callField(payload, "duration_seconds")),
		Notes:           cfgString(cfg, "notes"),
	}
}

// contactUpsertFrom defaults the phone to the lead's number so a bare
// upsert action works without config.
func contactUpsertFrom(cfg, payload map[string]any) integrations.ContactUpsert {
	phone := cfgString(cfg, "phone")
	if phone == "" {
		phone = leadNumber(payload)
	}
	return integrations.ContactUpsert{
		Phone:  phone,
		Name:   cfgString(cfg, "name"),
		Email:  cfgString(cfg, "email"),
		Fields: cfgMap(cfg, "fields"),
	}
}

func contactTags(cfg map[string]any) (string, []string, error) {
	contactID := cfgString(cfg, "contact_id")
	tags := cfgStrings(cfg, "tags")
	if contactID == "" || len(tags) == 0 {
		return "", nil, configErrf("action config requires contact_id and tags")
	}
	return contactID, tags, nil
}

// contactScore reads the score from config, falling back to the call's AI
// score.
func contactScore(cfg, payload map[string]any) (string, int, error) {
	contactID := cfgString(cfg, "contact_id")
	if contactID == "" {
		return "", 0, configErrf("action config requires contact_id")
	}
	if score, ok := cfgInt(cfg, "score"); ok {
		return contactID, score, nil
	}
	if score, ok := toFloat(callField(payload, "score")); ok {
		return contactID, int(score), nil
	}
	return "", 0, configErrf("action config requires score and the call has none")
}

// bookingSpan reads start/end from config. end defaults to start plus
// duration_minutes (default 30).
func bookingSpan(cfg map[string]any) (time.Time, time.Time, error) {
	start, err := cfgTime(cfg, "start")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if raw := cfgString(cfg, "end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, configErrf("invalid end %q: %v", raw, err)
		}
		return start, end, nil
	}
	minutes, ok := cfgInt(cfg, "duration_minutes")
	if !ok || minutes <= 0 {
		minutes = 30
	}
	return start, start.Add(time.Duration(minutes) * time.Minute), nil
}

// chatNotificationFrom builds the chat message, deriving a call summary
// card when the config leaves title/text/fields unset.
func chatNotificationFrom(cfg, payload map[string]any) integrations.ChatNotification {
	n := integrations.ChatNotification{
		Title: cfgString(cfg, "title"),
		Text:  cfgString(cfg, "text"),
	}
	if n.Title == "" {
		n.Title = "Call " + stringify(callField(payload, "status"))
	}
	if n.Text == "" {
		if summary := stringify(callField(payload, "summary")); summary != "" {
			n.Text = summary
		} else {
			n.Text = "No summary available."
		}
	}
	if raw, ok := cfg["fields"].([]any); ok {
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			n.Fields = append(n.Fields, integrations.ChatField{
				Label: stringify(m["label"]),
				Value: stringify(m["value"]),
			})
		}
		return n
	}
	n.Fields = []integrations.ChatField{
		{Label: "From", Value: stringify(callField(payload, "from_number"))},
		{Label: "To", Value: stringify(callField(payload, "to_number"))},
		{Label: "Duration", Value: fmt.Sprintf("%ds", intFromAny(callField(payload, "duration_seconds")))},
		{Label: "Sentiment", Value: stringify(callField(payload, "sentiment"))},
	}
	return n
}

func callField(payload map[string]any, key string) any {
	call, _ := payload["call"].(map[string]any)
	if call == nil {
		return nil
	}
	return call[key]
}

// leadNumber is the customer-side number: the callee for outbound calls,
// the caller for inbound.
func leadNumber(payload map[string]any) string {
	if stringify(callField(payload, "direction")) == string(models.DirectionInbound) {
		return stringify(callField(payload, "from_number"))
	}
	return stringify(callField(payload, "to_number"))
}

func cfgString(cfg map[string]any, key string) string {
	v, ok := cfg[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(stringify(v))
}

func cfgInt(cfg map[string]any, key string) (int, bool) {
	f, ok := toFloat(cfg[key])
	if !ok {
		return 0, false
	}
	return int(f), true
}

func cfgTime(cfg map[string]any, key string) (time.Time, error) {
	raw := cfgString(cfg, key)
	if raw == "" {
		return time.Time{}, configErrf("action config requires %s", key)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, configErrf("invalid %s %q: %v", key, raw, err)
	}
	return t, nil
}

func cfgStrings(cfg map[string]any, key string) []string {
	switch v := cfg[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, stringify(item))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	default:
		return nil
	}
}

func cfgMap(cfg map[string]any, key string) map[string]any {
	m, _ := cfg[key].(map[string]any)
	return m
}

func intFromAny(v any) int {
	f, ok := toFloat(v)
	if !ok {
		return 0
	}
	return int(f)
}
