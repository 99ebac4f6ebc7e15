package database

import (
	"context"
	"time"
)

// PingReport is the health snapshot the /health endpoint embeds: round-trip
// latency plus the pool gauges worth alerting on.
type PingReport struct {
	Healthy   bool  `json:"healthy"`
	LatencyMS int64 `json:"latency_ms"`
	Pool      Pool  `json:"pool"`
}

// Pool is the subset of sql.DBStats exposed over /health.
type Pool struct {
	Open      int   `json:"open"`
	InUse     int   `json:"in_use"`
	Idle      int   `json:"idle"`
	MaxOpen   int   `json:"max_open"`
	WaitCount int64 `json:"wait_count"`
	WaitMS    int64 `json:"wait_ms"`
}

// Check pings the database and snapshots pool statistics. The report is
// returned even when the ping fails so the handler can show partial detail.
func (c *Client) Check(ctx context.Context) (*PingReport, error) {
	start := time.Now()
	err := c.PingContext(ctx)

	stats := c.Stats()
	report := &PingReport{
		Healthy:   err == nil,
		LatencyMS: time.Since(start).Milliseconds(),
		Pool: Pool{
			Open:      stats.OpenConnections,
			InUse:     stats.InUse,
			Idle:      stats.Idle,
			MaxOpen:   stats.MaxOpenConnections,
			WaitCount: stats.WaitCount,
			WaitMS:    stats.WaitDuration.Milliseconds(),
		},
	}
	return report, err
}
