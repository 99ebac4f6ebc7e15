package workflow

import (
	"sort"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// actionSpec describes one registered action type: which integration slot
// it needs (empty for plain webhooks) and whether a failure aborts the rest
// of the pipeline. Only booking actions stop the pipeline; everything else
// fails soft so one dead CRM does not starve the remaining actions.
type actionSpec struct {
	integration models.Integration
	fatalStop   bool
}

var registry = map[string]actionSpec{
	// Tenant-supplied HTTP webhooks.
	"webhook_get":    {},
	"webhook_post":   {},
	"webhook_put":    {},
	"webhook_delete": {},

	// CRM A.
	"crm_a_log_call":              {integration: models.IntegrationCRMA},
	"crm_a_upsert_contact":        {integration: models.IntegrationCRMA},
	"crm_a_add_tags":              {integration: models.IntegrationCRMA},
	"crm_a_remove_tags":           {integration: models.IntegrationCRMA},
	"crm_a_update_pipeline_stage": {integration: models.IntegrationCRMA},
	"crm_a_create_opportunity":    {integration: models.IntegrationCRMA},
	"crm_a_update_contact_field":  {integration: models.IntegrationCRMA},
	"crm_a_set_lead_score":        {integration: models.IntegrationCRMA},
	"crm_a_book_appointment":      {integration: models.IntegrationCRMA, fatalStop: true},
	"crm_a_cancel_appointment":    {integration: models.IntegrationCRMA},
	"crm_a_add_call_note":         {integration: models.IntegrationCRMA},
	"crm_a_trigger_workflow":      {integration: models.IntegrationCRMA},
	"crm_a_add_to_campaign":       {integration: models.IntegrationCRMA},

	// CRM B.
	"crm_b_log_call":             {integration: models.IntegrationCRMB},
	"crm_b_upsert_contact":       {integration: models.IntegrationCRMB},
	"crm_b_update_deal_stage":    {integration: models.IntegrationCRMB},
	"crm_b_create_deal":          {integration: models.IntegrationCRMB},
	"crm_b_update_contact_field": {integration: models.IntegrationCRMB},
	"crm_b_set_lead_score":       {integration: models.IntegrationCRMB},
	"crm_b_add_note":             {integration: models.IntegrationCRMB},
	"crm_b_create_task":          {integration: models.IntegrationCRMB},

	// Calendar.
	"calendar_book_event":         {integration: models.IntegrationCalendar, fatalStop: true},
	"calendar_cancel_event":       {integration: models.IntegrationCalendar},
	"calendar_check_availability": {integration: models.IntegrationCalendar},

	// Scheduling links.
	"sched_get_availability":    {integration: models.IntegrationSched},
	"sched_create_booking_link": {integration: models.IntegrationSched},
	"sched_create_booking":      {integration: models.IntegrationSched, fatalStop: true},
	"sched_cancel_booking":      {integration: models.IntegrationSched},

	// Messaging.
	"sms_send":    {integration: models.IntegrationCRMA},
	"email_send":  {integration: models.IntegrationCRMA},
	"chat_notify": {integration: models.IntegrationChat},
}

// Known reports whether actionType is registered.
func Known(actionType string) bool {
	_, ok := registry[actionType]
	return ok
}

// CanFatalStop reports whether a failure of actionType aborts the remaining
// actions of its workflow.
func CanFatalStop(actionType string) bool {
	return registry[actionType].fatalStop
}

// RequiredIntegration returns the integration slot actionType dispatches
// through, or false when it needs none (webhooks) or is unknown.
func RequiredIntegration(actionType string) (models.Integration, bool) {
	spec, ok := registry[actionType]
	if !ok || spec.integration == "" {
		return "", false
	}
	return spec.integration, true
}

// ActionTypes returns every registered action type, sorted.
func ActionTypes() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
