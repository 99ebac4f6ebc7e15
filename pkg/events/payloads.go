package events

import (
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// CallEventPayload is the payload for call.* events.
type CallEventPayload struct {
	Type            string `json:"type"`
	CallID          string `json:"call_id"`
	TenantID        string `json:"tenant_id"`
	SubTenantID     string `json:"sub_tenant_id,omitempty"`
	AgentID         string `json:"agent_id,omitempty"`
	Provider        string `json:"provider"`
	ExternalID      string `json:"external_id"`
	Status          string `json:"status"`
	Direction       string `json:"direction"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	CostCents       int    `json:"cost_cents,omitempty"`
	EndedReason     string `json:"ended_reason,omitempty"`
	Voicemail       bool   `json:"voicemail,omitempty"`
	Timestamp       string `json:"timestamp"` // RFC3339Nano
}

// NewCallEventPayload builds the payload for one call lifecycle event.
func NewCallEventPayload(eventType string, call *models.Call) CallEventPayload {
	p := CallEventPayload{
		Type:            eventType,
		CallID:          call.ID,
		TenantID:        call.TenantID,
		Provider:        string(call.Provider),
		ExternalID:      call.ExternalID,
		Status:          string(call.Status),
		Direction:       string(call.Direction),
		DurationSeconds: call.DurationSeconds,
		CostCents:       call.CostCents,
		Voicemail:       call.Voicemail,
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
	}
	if call.EndedReason != nil {
		p.EndedReason = *call.EndedReason
	}
	if call.SubTenantID != nil {
		p.SubTenantID = *call.SubTenantID
	}
	if call.AgentID != nil {
		p.AgentID = *call.AgentID
	}
	return p
}

// ScheduleEventPayload is the payload for schedule.* events.
type ScheduleEventPayload struct {
	Type            string `json:"type"`
	ScheduledCallID string `json:"scheduled_call_id"`
	TenantID        string `json:"tenant_id"`
	AgentID         string `json:"agent_id,omitempty"`
	Status          string `json:"status"`
	ScheduledAt     string `json:"scheduled_at,omitempty"` // RFC3339
	ExternalCallID  string `json:"external_call_id,omitempty"`
	Error           string `json:"error,omitempty"`
	Timestamp       string `json:"timestamp"` // RFC3339Nano
}

// NewScheduleEventPayload builds the payload for one schedule lifecycle event.
func NewScheduleEventPayload(eventType string, sc *models.ScheduledCall) ScheduleEventPayload {
	p := ScheduleEventPayload{
		Type:            eventType,
		ScheduledCallID: sc.ID,
		TenantID:        sc.TenantID,
		AgentID:         sc.AgentID,
		Status:          string(sc.Status),
		ScheduledAt:     sc.ScheduledAt.UTC().Format(time.RFC3339),
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
	}
	if sc.ExternalCallID != nil {
		p.ExternalCallID = *sc.ExternalCallID
	}
	if sc.ErrorMessage != nil {
		p.Error = *sc.ErrorMessage
	}
	return p
}
