package domain

import (
	"context"
	"time"
)

// SnapshotQuery selects selection rows from the feed store.
type SnapshotQuery struct {
	// Sport filters by exact sport name. Empty means every sport.
	Sport string
	// StartAfter is the start-time lower bound.
	StartAfter time.Time
	// OpenOnly restricts to OPEN markets.
	OpenOnly bool
	// PreMatchOnly excludes in-play markets.
	PreMatchOnly bool
}

// FeedStore returns the current flat snapshot of selection rows.
type FeedStore interface {
	ListSelections(ctx context.Context, q SnapshotQuery) ([]SelectionRow, error)
}

// MoverStore returns precomputed movers over a rolling window.
type MoverStore interface {
	ListMovers(ctx context.Context, windowMinutes int) ([]Mover, error)
}

// AlertStore persists value alert history for deduplication.
type AlertStore interface {
	Last(ctx context.Context, runnerKey string) (AlertRecord, error)
	Record(ctx context.Context, rec AlertRecord) error
	CountSince(ctx context.Context, since time.Time) (int64, error)
}
