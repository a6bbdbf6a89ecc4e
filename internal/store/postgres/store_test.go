package postgres

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/odds?sslmode=disable",
		DSN(ClientConfig{User: "u", Password: "p", Host: "db", Database: "odds"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
	assert.Equal(t, "postgres://u:p@db:6543/odds?sslmode=require",
		DSN(ClientConfig{User: "u", Password: "p", Host: "db", Port: 6543, Database: "odds", SSLMode: "require"}))
}

func TestRunMigrations_Idempotent(t *testing.T) {
	client := setupTestDB(t)

	applied, err := client.RunMigrations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied, "second run applies nothing")

	var n int
	require.NoError(t, client.Pool().QueryRow(context.Background(),
		`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 3, n)
}

type feedRow struct {
	id, market, sport, runner string
	competition               *string
	start                     *time.Time
	status                    string
	inPlay                    bool
	back, lay, bet365         *float64
}

func seedFeed(t *testing.T, client *Client, rows []feedRow) {
	t.Helper()
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO market_feed (
				id, market_id, event_name, competition, sport, runner_name,
				start_time, volume, in_play, market_status, last_updated,
				back_price, lay_price, price_bet365
			) VALUES ($1, $2, 'Heat v Celtics', $3, $4, $5, $6, 500, $7, $8, NOW(), $9, $10, $11)`,
			r.id, r.market, r.competition, r.sport, r.runner,
			r.start, r.inPlay, r.status, r.back, r.lay, r.bet365,
		)
	}
	br := client.Pool().SendBatch(context.Background(), batch)
	defer br.Close()
	for range rows {
		_, err := br.Exec()
		require.NoError(t, err)
	}
}

func TestFeedStore_ListSelections(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	seedFeed(t, client, []feedRow{
		{id: "1", market: "m1", sport: "Basketball", runner: "Heat", competition: ptr("NBA"),
			start: ptr(now.Add(time.Hour)), status: "OPEN", back: ptr(2.0), lay: ptr(2.04), bet365: ptr(2.1)},
		{id: "2", market: "m1", sport: "Basketball", runner: "Celtics",
			start: ptr(now.Add(time.Hour)), status: "open"},
		{id: "3", market: "m2", sport: "Basketball", runner: "Old",
			start: ptr(now.Add(-48 * time.Hour)), status: "OPEN"},
		{id: "4", market: "m3", sport: "Basketball", runner: "Broken", status: "OPEN"},
		{id: "5", market: "m4", sport: "MMA", runner: "Lopes",
			start: ptr(now.Add(time.Hour)), status: "OPEN"},
		{id: "6", market: "m5", sport: "Basketball", runner: "Live",
			start: ptr(now.Add(-time.Minute)), status: "SUSPENDED", inPlay: true},
		{id: "7", market: "m6", sport: "Basketball", runner: "Garbage",
			start: ptr(now.Add(time.Hour)), status: "OPEN",
			back: ptr(math.NaN()), lay: ptr(math.Inf(1)), bet365: ptr(math.Inf(-1))},
	})

	store := NewFeedStore(client.Pool())

	rows, err := store.ListSelections(ctx, domain.SnapshotQuery{
		Sport:      "Basketball",
		StartAfter: now.Add(-24 * time.Hour),
	})
	require.NoError(t, err)

	ids := make([]string, 0, len(rows))
	byID := make(map[string]domain.SelectionRow)
	for _, r := range rows {
		ids = append(ids, r.ID)
		byID[r.ID] = r
	}
	assert.ElementsMatch(t, []string{"1", "2", "4", "6", "7"}, ids)

	heat := byID["1"]
	assert.Equal(t, "NBA", heat.Competition)
	assert.Equal(t, 2.0, heat.ExchangeBack)
	assert.Equal(t, map[string]float64{domain.BookmakerBet365: 2.1}, heat.BookmakerPrices)
	assert.True(t, heat.StartTime.Equal(now.Add(time.Hour)))

	celtics := byID["2"]
	assert.Empty(t, celtics.Competition)
	assert.Zero(t, celtics.ExchangeBack)
	assert.Nil(t, celtics.BookmakerPrices)
	assert.Equal(t, domain.MarketStatusOpen, celtics.MarketStatus)

	garbage := byID["7"]
	assert.Zero(t, garbage.ExchangeBack, "NaN reads as no quote")
	assert.Zero(t, garbage.ExchangeLay, "Infinity reads as no quote")
	assert.Nil(t, garbage.BookmakerPrices)

	broken := byID["4"]
	assert.True(t, broken.StartTime.IsZero())
	var malformed *domain.MalformedRowError
	assert.ErrorAs(t, broken.Validate(), &malformed)

	scoped, err := store.ListSelections(ctx, domain.SnapshotQuery{
		Sport:        "Basketball",
		StartAfter:   now.Add(-24 * time.Hour),
		OpenOnly:     true,
		PreMatchOnly: true,
	})
	require.NoError(t, err)
	for _, r := range scoped {
		assert.NotEqual(t, "6", r.ID)
	}
}

func seedSnapshot(t *testing.T, client *Client, key string, age time.Duration, back, lay, volume float64) {
	t.Helper()
	_, err := client.Pool().Exec(context.Background(), `
		INSERT INTO market_snapshots (
			selection_key, ts, market_id, sport, event_name, runner_name,
			back_price, lay_price, mid_price, volume
		) VALUES ($1, NOW() - make_interval(secs => $2::float8), 'm1', 'Basketball', 'Heat v Celtics', $1,
			$3::float8, $4::float8, ($3::float8 + $4::float8) / 2, $5::float8)`,
		key, age.Seconds(), back, lay, volume)
	require.NoError(t, err)
}

func TestMoverStore_ListMovers(t *testing.T) {
	client := setupTestDB(t)

	seedSnapshot(t, client, "steam", 10*time.Minute, 3.0, 3.1, 100)
	seedSnapshot(t, client, "steam", time.Minute, 2.5, 2.55, 400)
	seedSnapshot(t, client, "flat", 10*time.Minute, 2.0, 2.1, 100)
	seedSnapshot(t, client, "flat", time.Minute, 2.02, 2.12, 100)
	seedSnapshot(t, client, "drift", 12*time.Minute, 4.0, 4.1, 100)
	seedSnapshot(t, client, "drift", 2*time.Minute, 5.0, 5.5, 150)
	seedSnapshot(t, client, "single", time.Minute, 3.0, 3.1, 100)
	seedSnapshot(t, client, "outside", 30*time.Minute, 3.0, 3.1, 100)
	seedSnapshot(t, client, "outside", time.Minute, 2.0, 2.05, 100)

	movers, err := NewMoverStore(client.Pool()).ListMovers(context.Background(), 15)
	require.NoError(t, err)
	require.Len(t, movers, 2)

	drift, steam := movers[0], movers[1]

	assert.Equal(t, "drift", drift.SelectionKey)
	assert.Equal(t, domain.LabelDrifter, drift.Label)
	assert.InDelta(t, 0.25, drift.PctMove, 1e-9)
	assert.InDelta(t, 50, drift.VolDelta, 1e-9)
	assert.Equal(t, "WIDE", drift.Status)

	assert.Equal(t, "steam", steam.SelectionKey)
	assert.Equal(t, domain.LabelSteamer, steam.Label)
	assert.InDelta(t, -1.0/6, steam.PctMove, 1e-9)
	assert.Equal(t, 3.0, steam.BackThen)
	assert.Equal(t, 2.5, steam.BackNow)
	assert.Equal(t, "TIGHT", steam.Status)
	assert.Equal(t, "Heat v Celtics", steam.EventName)
}

func TestAlertStore(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()
	store := NewAlertStore(client.Pool())
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := store.Last(ctx, "m1:s1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.Record(ctx, domain.AlertRecord{
		RunnerKey: "m1:s1", SentAt: now.Add(-2 * time.Hour), Edge: 0.01, BookPrice: 2.2, LayPrice: 2.04,
	}))
	require.NoError(t, store.Record(ctx, domain.AlertRecord{
		RunnerKey: "m1:s1", SentAt: now, Edge: 0.02, BookPrice: 2.3, LayPrice: 2.02,
	}))
	require.NoError(t, store.Record(ctx, domain.AlertRecord{
		RunnerKey: "m2:s9", SentAt: now.Add(-3 * time.Hour), Edge: 0.005, BookPrice: 3.1, LayPrice: 3.0,
	}))

	rec, err := store.Last(ctx, "m1:s1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Count)
	assert.Equal(t, 0.02, rec.Edge)
	assert.Equal(t, 2.3, rec.BookPrice)
	assert.True(t, rec.SentAt.Equal(now))

	n, err := store.CountSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
