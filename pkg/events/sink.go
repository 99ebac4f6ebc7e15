package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// notifyByteLimit stays under PostgreSQL's 8000-byte NOTIFY payload cap.
// Larger payloads are replaced with a truncation envelope; consumers fetch
// the full row from the events table by event_id.
const notifyByteLimit = 7900

// EventSink is the write side of the broadcast bus.
type EventSink interface {
	PublishCallEvent(ctx context.Context, tenantID string, payload CallEventPayload) error
	PublishScheduleEvent(ctx context.Context, tenantID string, payload ScheduleEventPayload) error
}

// NoopSink drops every event. Used in tests and when the bus is disabled.
type NoopSink struct{}

func (NoopSink) PublishCallEvent(context.Context, string, CallEventPayload) error { return nil }
func (NoopSink) PublishScheduleEvent(context.Context, string, ScheduleEventPayload) error {
	return nil
}

// NotifySink persists events and broadcasts them via pg_notify. Both happen
// in one transaction: pg_notify is transactional, so the NOTIFY fires only
// when the insert commits, and consumers never see an id that is not yet
// readable.
type NotifySink struct {
	db *sql.DB
}

// NewNotifySink creates a NotifySink on the client's underlying *sql.DB.
func NewNotifySink(db *sql.DB) *NotifySink {
	return &NotifySink{db: db}
}

func (s *NotifySink) PublishCallEvent(ctx context.Context, tenantID string, payload CallEventPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal call event payload: %w", err)
	}
	return s.persistAndNotify(ctx, tenantID, TenantChannel(tenantID), data)
}

func (s *NotifySink) PublishScheduleEvent(ctx context.Context, tenantID string, payload ScheduleEventPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule event payload: %w", err)
	}
	return s.persistAndNotify(ctx, tenantID, TenantChannel(tenantID), data)
}

func (s *NotifySink) persistAndNotify(ctx context.Context, tenantID, channel string, payloadJSON []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var eventID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO events (tenant_id, channel, payload, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		tenantID, channel, payloadJSON, time.Now(),
	).Scan(&eventID)
	if err != nil {
		return fmt.Errorf("failed to persist event: %w", err)
	}

	notifyPayload, err := injectEventIDAndTruncate(payloadJSON, eventID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event transaction: %w", err)
	}
	return nil
}

// injectEventIDAndTruncate adds the events-table row id to the NOTIFY copy
// (consumers use it for catchup) and applies the size guard.
func injectEventIDAndTruncate(payloadJSON []byte, eventID int64) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(payloadJSON, &m); err != nil {
		return "", fmt.Errorf("failed to unmarshal payload for event_id injection: %w", err)
	}
	m["event_id"] = eventID

	enriched, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal enriched NOTIFY payload: %w", err)
	}
	if len(enriched) <= notifyByteLimit {
		return string(enriched), nil
	}
	return buildTruncatedPayload(enriched)
}

// buildTruncatedPayload keeps only the routing fields a consumer needs to
// fetch the complete event from the events table.
func buildTruncatedPayload(payloadBytes []byte) (string, error) {
	var routing struct {
		Type            string `json:"type"`
		TenantID        string `json:"tenant_id"`
		CallID          string `json:"call_id"`
		ScheduledCallID string `json:"scheduled_call_id"`
		EventID         *int64 `json:"event_id"`
	}
	if err := json.Unmarshal(payloadBytes, &routing); err != nil {
		return "", fmt.Errorf("failed to extract routing fields for truncation: %w", err)
	}

	truncated := map[string]any{
		"type":      routing.Type,
		"tenant_id": routing.TenantID,
		"truncated": true,
	}
	if routing.CallID != "" {
		truncated["call_id"] = routing.CallID
	}
	if routing.ScheduledCallID != "" {
		truncated["scheduled_call_id"] = routing.ScheduledCallID
	}
	if routing.EventID != nil {
		truncated["event_id"] = *routing.EventID
	}

	truncBytes, err := json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("failed to marshal truncated payload: %w", err)
	}
	return string(truncBytes), nil
}
