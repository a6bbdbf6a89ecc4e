package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// AlertStore implements domain.AlertStore over the alert_history table.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore creates a new AlertStore backed by the given connection pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

var _ domain.AlertStore = (*AlertStore)(nil)

// Last returns the most recent alert for runnerKey, or domain.ErrNotFound.
func (s *AlertStore) Last(ctx context.Context, runnerKey string) (domain.AlertRecord, error) {
	const query = `
		SELECT runner_key, last_alert_time, last_edge, last_book_price, last_lay_price, alert_count
		FROM alert_history
		WHERE runner_key = $1`

	var rec domain.AlertRecord
	err := s.pool.QueryRow(ctx, query, runnerKey).Scan(
		&rec.RunnerKey, &rec.SentAt, &rec.Edge, &rec.BookPrice, &rec.LayPrice, &rec.Count,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AlertRecord{}, domain.ErrNotFound
		}
		return domain.AlertRecord{}, fmt.Errorf("postgres: get alert %s: %w", runnerKey, err)
	}
	rec.SentAt = rec.SentAt.UTC()
	return rec, nil
}

// Record upserts rec and increments the runner's alert count.
func (s *AlertStore) Record(ctx context.Context, rec domain.AlertRecord) error {
	const query = `
		INSERT INTO alert_history (
			runner_key, last_alert_time, last_edge, last_book_price, last_lay_price, alert_count
		) VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (runner_key) DO UPDATE SET
			last_alert_time = EXCLUDED.last_alert_time,
			last_edge       = EXCLUDED.last_edge,
			last_book_price = EXCLUDED.last_book_price,
			last_lay_price  = EXCLUDED.last_lay_price,
			alert_count     = alert_history.alert_count + 1`

	_, err := s.pool.Exec(ctx, query,
		rec.RunnerKey, rec.SentAt, rec.Edge, rec.BookPrice, rec.LayPrice,
	)
	if err != nil {
		return fmt.Errorf("postgres: record alert %s: %w", rec.RunnerKey, err)
	}
	return nil
}

// CountSince returns how many runners were alerted after since.
func (s *AlertStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM alert_history WHERE last_alert_time > $1`, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count alerts: %w", err)
	}
	return n, nil
}
