package models

import "time"

// Experiment is a per-agent A/B definition. At most one experiment per
// agent may be running; variant weights sum to 100 with exactly one control.
type Experiment struct {
	ID        string           `db:"id" json:"id"`
	TenantID  string           `db:"tenant_id" json:"tenant_id"`
	AgentID   string           `db:"agent_id" json:"agent_id"`
	Name      string           `db:"name" json:"name"`
	Status    ExperimentStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`

	// Variants are loaded alongside the experiment, ordered by position.
	Variants []Variant `db:"-" json:"variants,omitempty"`
}

// Variant is one arm of an experiment. PromptOverride replaces the agent's
// default prompt when the variant is selected; the control leaves it nil.
type Variant struct {
	ID             string    `db:"id" json:"id"`
	ExperimentID   string    `db:"experiment_id" json:"experiment_id"`
	Position       int       `db:"position" json:"position"`
	Name           string    `db:"name" json:"name"`
	Weight         int       `db:"weight" json:"weight"`
	IsControl      bool      `db:"is_control" json:"is_control"`
	PromptOverride *string   `db:"prompt_override" json:"prompt_override,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Workflow is a post-call pipeline: a trigger tag, AND-conditions, and an
// ordered action list. AgentID nil means the workflow applies to every
// agent of the tenant.
type Workflow struct {
	ID         string          `db:"id" json:"id"`
	TenantID   string          `db:"tenant_id" json:"tenant_id"`
	AgentID    *string         `db:"agent_id" json:"agent_id,omitempty"`
	Name       string          `db:"name" json:"name"`
	Enabled    bool            `db:"enabled" json:"enabled"`
	Trigger    WorkflowTrigger `db:"trigger" json:"trigger"`
	Conditions ConditionList   `db:"conditions" json:"conditions"`
	Actions    ActionList      `db:"actions" json:"actions"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// ExecutionLog is the immutable record of one workflow execution.
type ExecutionLog struct {
	ID               string           `db:"id" json:"id"`
	WorkflowID       string           `db:"workflow_id" json:"workflow_id"`
	CallID           string           `db:"call_id" json:"call_id"`
	TenantID         string           `db:"tenant_id" json:"tenant_id"`
	Status           WorkflowStatus   `db:"status" json:"status"`
	ActionsTotal     int              `db:"actions_total" json:"actions_total"`
	ActionsSucceeded int              `db:"actions_succeeded" json:"actions_succeeded"`
	ActionsFailed    int              `db:"actions_failed" json:"actions_failed"`
	ActionsSkipped   int              `db:"actions_skipped" json:"actions_skipped"`
	Results          ActionResultList `db:"results" json:"results"`
	StartedAt        time.Time        `db:"started_at" json:"started_at"`
	CompletedAt      time.Time        `db:"completed_at" json:"completed_at"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}

// UsageCounter is the monthly usage accumulator row per (tenant,
// sub-tenant, period). Period is "YYYY-MM" in UTC.
type UsageCounter struct {
	TenantID    string    `db:"tenant_id" json:"tenant_id"`
	SubTenantID string    `db:"sub_tenant_id" json:"sub_tenant_id"`
	Period      string    `db:"period" json:"period"`
	Seconds     int64     `db:"seconds" json:"seconds"`
	AmountCents int64     `db:"amount_cents" json:"amount_cents"`
	Calls       int       `db:"calls" json:"calls"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
