package models

import "time"

// TranscriptMaxChars caps stored transcripts. Longer transcripts are
// truncated at ingest; the provider keeps the full text.
const TranscriptMaxChars = 500_000

// Call is the canonical call record, upserted from provider webhooks and
// enriched asynchronously by AI analysis. (provider, external_id) is unique.
type Call struct {
	ID              string        `db:"id" json:"id"`
	TenantID        string        `db:"tenant_id" json:"tenant_id"`
	SubTenantID     *string       `db:"sub_tenant_id" json:"sub_tenant_id,omitempty"`
	AgentID         *string       `db:"agent_id" json:"agent_id,omitempty"`
	Provider        Provider      `db:"provider" json:"provider"`
	ExternalID      string        `db:"external_id" json:"external_id"`
	Direction       CallDirection `db:"direction" json:"direction"`
	Status          CallStatus    `db:"status" json:"status"`
	FromNumber      *string       `db:"from_number" json:"from_number,omitempty"`
	ToNumber        *string       `db:"to_number" json:"to_number,omitempty"`
	StartedAt       *time.Time    `db:"started_at" json:"started_at,omitempty"`
	EndedAt         *time.Time    `db:"ended_at" json:"ended_at,omitempty"`
	DurationSeconds int           `db:"duration_seconds" json:"duration_seconds"`
	CostCents       int           `db:"cost_cents" json:"cost_cents"`
	EndedReason     *string       `db:"ended_reason" json:"ended_reason,omitempty"`
	Voicemail       bool          `db:"voicemail" json:"voicemail"`
	Transcript      *string       `db:"transcript" json:"transcript,omitempty"`
	Summary         *string       `db:"summary" json:"summary,omitempty"`
	Sentiment       *string       `db:"sentiment" json:"sentiment,omitempty"`
	Topics          StringList    `db:"topics" json:"topics,omitempty"`
	Score           *int          `db:"score" json:"score,omitempty"`
	Metadata        JSONMap       `db:"metadata" json:"metadata"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// AnalysisResult is the AI-derived enrichment written back to a call.
type AnalysisResult struct {
	Sentiment string   `json:"sentiment"`
	Summary   string   `json:"summary"`
	Topics    []string `json:"topics"`
	Score     int      `json:"score"`
}
