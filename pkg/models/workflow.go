package models

import "time"

// Condition is one AND-clause of a workflow's gate. Field is a dotted path
// into the call payload; a missing field fails every operator.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Condition operators.
const (
	OpEq          = "=="
	OpNeq         = "!="
	OpGt          = ">"
	OpLt          = "<"
	OpGte         = ">="
	OpLte         = "<="
	OpContains    = "contains"
	OpNotContains = "not_contains"
)

// ActionConfig is one configured workflow action: a registry type plus its
// opaque per-type config. Config string values support {{dotted.path}}
// interpolation from the call payload.
type ActionConfig struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// ActionResult records the outcome of one executed action.
type ActionResult struct {
	Index       int          `json:"index"`
	Type        string       `json:"type"`
	Status      ActionStatus `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	DurationMs  int64        `json:"duration_ms"`
	Attempts    int          `json:"attempts"`
	Error       string       `json:"error,omitempty"`
}
