package store

import (
	"context"
	"fmt"
	"time"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// EventsSince pages through a channel's persisted events after the given id,
// oldest first. Reconnecting live-view consumers use this to catch up before
// switching to notifications.
func (s *Store) EventsSince(ctx context.Context, channel string, afterID int64, limit int) ([]models.Event, error) {
	var events []models.Event
	err := s.db.SelectContext(ctx, &events, `
		SELECT * FROM events
		WHERE channel = $1 AND id > $2
		ORDER BY id
		LIMIT $3`, channel, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// DeleteEventsBefore removes catch-up rows older than the cutoff and reports
// how many were deleted. Rows only serve reconnect catch-up; the retention
// loop prunes them past their TTL.
func (s *Store) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete events: %w", err)
	}
	return res.RowsAffected()
}
