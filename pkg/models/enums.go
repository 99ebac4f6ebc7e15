// Package models contains request/response models and business domain types.
package models

// Provider identifies one of the supported voice providers.
type Provider string

// Supported providers.
const (
	ProviderA Provider = "a"
	ProviderB Provider = "b"
	ProviderC Provider = "c"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderA, ProviderB, ProviderC:
		return true
	}
	return false
}

// CallStatus is the canonical call lifecycle status.
type CallStatus string

// Call statuses.
const (
	CallQueued     CallStatus = "queued"
	CallInProgress CallStatus = "in_progress"
	CallCompleted  CallStatus = "completed"
	CallFailed     CallStatus = "failed"
)

// Terminal reports whether the status is final. Terminal statuses never
// regress on later webhook events.
func (s CallStatus) Terminal() bool {
	return s == CallCompleted || s == CallFailed
}

// ScheduleStatus is the scheduled-call queue status.
type ScheduleStatus string

// Scheduled call statuses.
const (
	SchedulePending    ScheduleStatus = "pending"
	ScheduleInProgress ScheduleStatus = "in_progress"
	ScheduleCompleted  ScheduleStatus = "completed"
	ScheduleFailed     ScheduleStatus = "failed"
	ScheduleCancelled  ScheduleStatus = "cancelled"
)

// TriggerSource identifies where a trigger entered the system.
type TriggerSource string

// Trigger sources.
const (
	TriggerSourceCRMA      TriggerSource = "crm_a"
	TriggerSourceCRMB      TriggerSource = "crm_b"
	TriggerSourceAPI       TriggerSource = "api"
	TriggerSourceDashboard TriggerSource = "dashboard"
)

// TriggerLogStatus is the audit outcome of one inbound trigger.
type TriggerLogStatus string

// Trigger log statuses.
const (
	TriggerInitiated TriggerLogStatus = "initiated"
	TriggerScheduled TriggerLogStatus = "scheduled"
	TriggerFailed    TriggerLogStatus = "failed"
)

// CallDirection is the call direction.
type CallDirection string

// Call directions.
const (
	DirectionOutbound CallDirection = "outbound"
	DirectionInbound  CallDirection = "inbound"
)

// ExperimentStatus is the A/B experiment lifecycle status.
type ExperimentStatus string

// Experiment statuses.
const (
	ExperimentDraft     ExperimentStatus = "draft"
	ExperimentRunning   ExperimentStatus = "running"
	ExperimentPaused    ExperimentStatus = "paused"
	ExperimentCompleted ExperimentStatus = "completed"
)

// Valid reports whether s is a known experiment status.
func (s ExperimentStatus) Valid() bool {
	switch s {
	case ExperimentDraft, ExperimentRunning, ExperimentPaused, ExperimentCompleted:
		return true
	}
	return false
}

// WorkflowTrigger tags which call event a workflow fires on.
type WorkflowTrigger string

// Workflow triggers.
const (
	WorkflowTriggerCallEnded        WorkflowTrigger = "call_ended"
	WorkflowTriggerInboundCallEnded WorkflowTrigger = "inbound_call_ended"
)

// WorkflowStatus is the aggregate outcome of one workflow execution.
type WorkflowStatus string

// Workflow execution statuses.
const (
	WorkflowCompleted      WorkflowStatus = "completed"
	WorkflowPartialFailure WorkflowStatus = "partial_failure"
	WorkflowFailed         WorkflowStatus = "failed"
	WorkflowSkipped        WorkflowStatus = "skipped"
)

// ActionStatus is the outcome of one workflow action.
type ActionStatus string

// Action statuses.
const (
	ActionSuccess ActionStatus = "success"
	ActionFailed  ActionStatus = "failed"
	ActionSkipped ActionStatus = "skipped"
)

// BillingType is the SubTenant billing arrangement.
type BillingType string

// Billing types.
const (
	BillingSubscription BillingType = "subscription"
	BillingPerMinute    BillingType = "per_minute"
	BillingOneShot      BillingType = "one_shot"
)

// Integration identifies a tenant integration slot.
type Integration string

// Integration kinds.
const (
	IntegrationCRMA     Integration = "crm_a"
	IntegrationCRMB     Integration = "crm_b"
	IntegrationCalendar Integration = "calendar"
	IntegrationSched    Integration = "sched"
	IntegrationChat     Integration = "chat"
)
