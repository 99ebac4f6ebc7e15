package models

import "time"

// TriggerRequest is the normalized inbound trigger shared by all sources.
// Handlers map source-specific payloads (CRM webhooks, partner API bodies,
// dashboard scheduling) into this shape before handing it to the service.
type TriggerRequest struct {
	Source      TriggerSource
	TenantID    string // resolved; empty until the source payload is mapped
	SubTenantID string
	AgentID     string // explicit agent choice; empty means "resolve"
	// DefaultAgentID is the integration's configured default agent, filled
	// by the source handler. Used when the payload names no agent.
	DefaultAgentID string
	PhoneNumber    string // destination, pre-normalization
	FromNumber     string
	ContactID      string
	ContactName    string
	ScheduledAt    *time.Time // explicit future schedule request
	Metadata       map[string]any
	RawPayload     []byte // original body, redacted before trigger-log storage
}

// TriggerResult reports the outcome of one trigger to the caller.
type TriggerResult struct {
	Status          TriggerLogStatus `json:"status"`
	CallID          string           `json:"call_id,omitempty"`
	ScheduledCallID string           `json:"scheduled_call_id,omitempty"`
	ScheduledAt     *time.Time       `json:"scheduled_at,omitempty"`
	LeadTimezone    string           `json:"lead_timezone,omitempty"`
	Agent           string           `json:"agent,omitempty"`
	TimezoneDelayed bool             `json:"timezone_delayed,omitempty"`
}
