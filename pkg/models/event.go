package models

import (
	"encoding/json"
	"time"
)

// Event is a broadcast catch-up row. Live consumers receive events over
// pg_notify; reconnecting consumers page through this table by id.
type Event struct {
	ID        int64           `db:"id" json:"id"`
	TenantID  string          `db:"tenant_id" json:"tenant_id"`
	Channel   string          `db:"channel" json:"channel"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
