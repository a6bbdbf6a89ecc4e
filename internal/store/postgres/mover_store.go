package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// MoverStore implements domain.MoverStore by calling the get_steamers SQL
// function.
type MoverStore struct {
	pool *pgxpool.Pool
}

// NewMoverStore creates a new MoverStore backed by the given connection pool.
func NewMoverStore(pool *pgxpool.Pool) *MoverStore {
	return &MoverStore{pool: pool}
}

var _ domain.MoverStore = (*MoverStore)(nil)

// ListMovers returns the movers over the last windowMinutes, largest move
// first.
func (s *MoverStore) ListMovers(ctx context.Context, windowMinutes int) ([]domain.Mover, error) {
	const query = `
		SELECT selection_key, runner_name, event_name, sport,
		       back_now, lay_now, back_then, lay_then,
		       pct_move, vol_delta, spread, label, status
		FROM get_steamers($1)`

	rows, err := s.pool.Query(ctx, query, windowMinutes)
	if err != nil {
		return nil, fmt.Errorf("postgres: get_steamers(%d): %w", windowMinutes, err)
	}
	defer rows.Close()

	var out []domain.Mover
	for rows.Next() {
		var m domain.Mover
		var backNow, layNow, backThen, layThen, pct, volDelta, spread *float64
		var label, status *string
		if err := rows.Scan(
			&m.SelectionKey, &m.RunnerName, &m.EventName, &m.Sport,
			&backNow, &layNow, &backThen, &layThen,
			&pct, &volDelta, &spread, &label, &status,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan mover: %w", err)
		}
		m.BackNow = derefFloat(backNow)
		m.LayNow = derefFloat(layNow)
		m.BackThen = derefFloat(backThen)
		m.LayThen = derefFloat(layThen)
		m.PctMove = derefFloat(pct)
		m.VolDelta = derefFloat(volDelta)
		m.Spread = derefFloat(spread)
		m.Label = domain.MoverLabel(strings.ToUpper(deref(label)))
		m.Status = deref(status)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: get_steamers rows: %w", err)
	}
	return out, nil
}
