package timezone

import (
	"fmt"
	"time"

	"k8s.io/utils/clock"
)

// Window is a tenant calling-window policy evaluated against the lead's
// local wall time. Hours are 0–23; Days uses 0=Sunday .. 6=Saturday.
// A disabled window is always open.
type Window struct {
	Enabled   bool
	StartHour int
	EndHour   int
	Days      []int
}

// dayAllowed reports whether weekday wd (time.Weekday) is in the window.
// An empty Days list allows every day.
func (w Window) dayAllowed(wd time.Weekday) bool {
	if len(w.Days) == 0 {
		return true
	}
	for _, d := range w.Days {
		if d == int(wd) {
			return true
		}
	}
	return false
}

// Oracle evaluates calling windows in a lead's local zone. All time reads
// go through the injected clock so tests can pin the instant.
type Oracle struct {
	table *Table
	clock clock.PassiveClock
}

// NewOracle creates an Oracle over the given area-code table and clock.
func NewOracle(table *Table, clk clock.PassiveClock) *Oracle {
	return &Oracle{table: table, clock: clk}
}

// ZoneOf maps an E.164 number to an IANA zone; see Table.ZoneOf.
func (o *Oracle) ZoneOf(e164 string) (string, bool) {
	return o.table.ZoneOf(e164)
}

// InWindow reports whether the window is open right now in the given zone.
// A disabled window is always open. An unknown zone name is an error; the
// caller decides how to degrade.
func (o *Oracle) InWindow(zone string, w Window) (bool, error) {
	if !w.Enabled {
		return true, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return false, fmt.Errorf("unknown zone %q: %w", zone, err)
	}
	return windowOpenAt(o.clock.Now().In(loc), w), nil
}

// NextOpen returns the earliest instant strictly at or after now at which
// the window is open in the given zone, expressed in UTC. DST shifts are
// honored at the candidate instant: the candidate is built from wall-clock
// fields in the zone, so a transition between now and the opening moves
// the returned UTC instant accordingly.
func (o *Oracle) NextOpen(zone string, w Window) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("unknown zone %q: %w", zone, err)
	}

	now := o.clock.Now().In(loc)
	if !w.Enabled || windowOpenAt(now, w) {
		return now.UTC(), nil
	}

	// Walk day by day from today; the first allowed day whose opening hour
	// is still ahead wins. Bounded: with at least one allowed weekday the
	// opening is at most 8 days out.
	for offset := 0; offset <= 8; offset++ {
		day := now.AddDate(0, 0, offset)
		if !w.dayAllowed(day.Weekday()) {
			continue
		}
		open := time.Date(day.Year(), day.Month(), day.Day(), w.StartHour, 0, 0, 0, loc)
		if open.Before(now) {
			continue
		}
		return open.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("window has no allowed days")
}

// windowOpenAt evaluates the window against a local wall time. Overnight
// windows (EndHour <= StartHour) wrap past midnight; the day-of-week gate
// applies to the day the window opened.
func windowOpenAt(local time.Time, w Window) bool {
	h := local.Hour()
	if w.StartHour < w.EndHour {
		return w.dayAllowed(local.Weekday()) && h >= w.StartHour && h < w.EndHour
	}

	// Overnight span. Before EndHour we are still inside the window that
	// opened the previous day.
	if h >= w.StartHour {
		return w.dayAllowed(local.Weekday())
	}
	if h < w.EndHour {
		return w.dayAllowed(local.AddDate(0, 0, -1).Weekday())
	}
	return false
}
