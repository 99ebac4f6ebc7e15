// Package events is the cross-replica broadcast bus. Call lifecycle and
// schedule events are persisted to the events table and broadcast on
// per-tenant PostgreSQL NOTIFY channels in one transaction, so a consumer
// that misses a NOTIFY can catch up from the table by id.
package events

// Call lifecycle event types.
const (
	EventTypeCallStarted  = "call.started"
	EventTypeCallUpdated  = "call.updated"
	EventTypeCallEnded    = "call.ended"
	EventTypeCallAnalyzed = "call.analyzed"
)

// Schedule lifecycle event types.
const (
	EventTypeScheduleCreated   = "schedule.created"
	EventTypeScheduleCompleted = "schedule.completed"
	EventTypeScheduleFailed    = "schedule.failed"
)

// TenantChannel returns the NOTIFY channel carrying one tenant's events.
// Format: "tenant:{tenant_id}"
func TenantChannel(tenantID string) string {
	return "tenant:" + tenantID
}
