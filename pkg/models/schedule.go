package models

import "time"

// ScheduledCall is a pending outbound intent drained by the scheduler.
// Status transitions pending → in_progress only via the CAS lease.
type ScheduledCall struct {
	ID                  string         `db:"id" json:"id"`
	TenantID            string         `db:"tenant_id" json:"tenant_id"`
	SubTenantID         *string        `db:"sub_tenant_id" json:"sub_tenant_id,omitempty"`
	AgentID             string         `db:"agent_id" json:"agent_id"`
	PhoneNumber         string         `db:"phone_number" json:"phone_number"`
	FromNumber          *string        `db:"from_number" json:"from_number,omitempty"`
	ContactID           *string        `db:"contact_id" json:"contact_id,omitempty"`
	ContactName         *string        `db:"contact_name" json:"contact_name,omitempty"`
	LeadTimezone        *string        `db:"lead_timezone" json:"lead_timezone,omitempty"`
	TriggerSource       TriggerSource  `db:"trigger_source" json:"trigger_source"`
	Metadata            JSONMap        `db:"metadata" json:"metadata"`
	Status              ScheduleStatus `db:"status" json:"status"`
	ScheduledAt         time.Time      `db:"scheduled_at" json:"scheduled_at"`
	OriginalScheduledAt *time.Time     `db:"original_scheduled_at" json:"original_scheduled_at,omitempty"`
	TimezoneDelayed     bool           `db:"timezone_delayed" json:"timezone_delayed"`
	RetryCount          int            `db:"retry_count" json:"retry_count"`
	MaxRetries          int            `db:"max_retries" json:"max_retries"`
	ErrorMessage        *string        `db:"error_message" json:"error_message,omitempty"`
	ExternalCallID      *string        `db:"external_call_id" json:"external_call_id,omitempty"`
	CompletedAt         *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// TriggerLog is the immutable audit row for one inbound trigger.
type TriggerLog struct {
	ID              string           `db:"id" json:"id"`
	TenantID        *string          `db:"tenant_id" json:"tenant_id,omitempty"`
	Source          TriggerSource    `db:"source" json:"source"`
	Status          TriggerLogStatus `db:"status" json:"status"`
	AgentID         *string          `db:"agent_id" json:"agent_id,omitempty"`
	PhoneNumber     *string          `db:"phone_number" json:"phone_number,omitempty"`
	LeadTimezone    *string          `db:"lead_timezone" json:"lead_timezone,omitempty"`
	ScheduledCallID *string          `db:"scheduled_call_id" json:"scheduled_call_id,omitempty"`
	CallExternalID  *string          `db:"call_external_id" json:"call_external_id,omitempty"`
	ErrorMessage    *string          `db:"error_message" json:"error_message,omitempty"`
	Payload         JSONMap          `db:"payload" json:"payload"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
}
