// Package grouping turns a flat snapshot of selection rows into the
// competition -> market -> selection board.
package grouping

import (
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// DefaultHeartbeat is how long a row may go without an upstream update before
// it is considered stale.
const DefaultHeartbeat = time.Hour

// FilterOptions controls the staleness filter.
type FilterOptions struct {
	// Now is the reference time. Zero means time.Now().
	Now time.Time
	// Heartbeat is the staleness cutoff. Zero disables the heartbeat check.
	Heartbeat time.Duration
	// PreMatchOnly also drops in-play and already-started rows.
	PreMatchOnly bool
}

// Filter drops stale, closed and settled rows, and in pre-match mode any row
// that has started. Rows that never reported a heartbeat are kept. The input
// slice is not modified.
func Filter(rows []domain.SelectionRow, opts FilterOptions) []domain.SelectionRow {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	cutoff := now.Add(-opts.Heartbeat)

	out := make([]domain.SelectionRow, 0, len(rows))
	for _, r := range rows {
		if opts.Heartbeat > 0 && !r.LastUpdated.IsZero() && r.LastUpdated.Before(cutoff) {
			continue
		}
		if r.MarketStatus.Terminal() {
			continue
		}
		if opts.PreMatchOnly && (r.InPlay || !r.StartTime.After(now)) {
			continue
		}
		out = append(out, r)
	}
	return out
}
