package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// FeedStore implements domain.FeedStore over the market_feed table.
type FeedStore struct {
	pool *pgxpool.Pool
}

// NewFeedStore creates a new FeedStore backed by the given connection pool.
func NewFeedStore(pool *pgxpool.Pool) *FeedStore {
	return &FeedStore{pool: pool}
}

var _ domain.FeedStore = (*FeedStore)(nil)

const feedCols = `id, market_id, event_name, competition, sport, runner_name,
	start_time, volume, in_play, market_status, last_updated,
	back_price, lay_price, price_pinnacle, price_bet365, price_paddy`

// ListSelections returns every row matching q. Rows whose start_time is NULL
// are still returned so the grouping pass can report them as malformed.
func (s *FeedStore) ListSelections(ctx context.Context, q domain.SnapshotQuery) ([]domain.SelectionRow, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Sport != "" {
		where = append(where, "sport = "+arg(q.Sport))
	}
	if !q.StartAfter.IsZero() {
		where = append(where, "(start_time IS NULL OR start_time > "+arg(q.StartAfter)+")")
	}
	if q.OpenOnly {
		where = append(where, "market_status = 'OPEN'")
	}
	if q.PreMatchOnly {
		where = append(where, "in_play = FALSE")
	}

	query := `SELECT ` + feedCols + ` FROM market_feed`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_time NULLS LAST, market_id, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list selections: %w", err)
	}
	defer rows.Close()

	var out []domain.SelectionRow
	for rows.Next() {
		r, err := scanSelection(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan selection: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list selections rows: %w", err)
	}
	return out, nil
}

// scanSelection maps one market_feed row. NULL and non-finite prices and
// volumes become 0;
// a NULL start_time is left zero and fails Validate downstream.
func scanSelection(row pgx.Row) (domain.SelectionRow, error) {
	var r domain.SelectionRow
	var competition *string
	var startTime, lastUpdated *time.Time
	var volume, back, lay *float64
	var pinnacle, bet365, paddy *float64
	var status string
	err := row.Scan(
		&r.ID, &r.MarketID, &r.EventName, &competition, &r.Sport, &r.RunnerName,
		&startTime, &volume, &r.InPlay, &status, &lastUpdated,
		&back, &lay, &pinnacle, &bet365, &paddy,
	)
	if err != nil {
		return domain.SelectionRow{}, err
	}

	r.Competition = deref(competition)
	r.MarketStatus = domain.MarketStatus(strings.ToUpper(status))
	if startTime != nil {
		r.StartTime = startTime.UTC()
	}
	if lastUpdated != nil {
		r.LastUpdated = lastUpdated.UTC()
	}
	r.Volume = derefFloat(volume)
	r.ExchangeBack = derefFloat(back)
	r.ExchangeLay = derefFloat(lay)

	books := make(map[string]float64, 3)
	for name, p := range map[string]*float64{
		domain.BookmakerPinnacle:   pinnacle,
		domain.BookmakerBet365:     bet365,
		domain.BookmakerPaddyPower: paddy,
	} {
		if v := derefFloat(p); v != 0 {
			books[name] = v
		}
	}
	if len(books) > 0 {
		r.BookmakerPrices = books
	}
	return r, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// derefFloat maps NULL, NaN and infinities to 0.
func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return domain.Finite(*f)
}
