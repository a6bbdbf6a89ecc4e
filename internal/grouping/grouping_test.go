package grouping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

var t0 = time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

func row(id, market, event, runner string) domain.SelectionRow {
	return domain.SelectionRow{
		ID:           id,
		MarketID:     market,
		EventName:    event,
		Competition:  "NBA",
		Sport:        "Basketball",
		RunnerName:   runner,
		StartTime:    t0,
		Volume:       1000,
		MarketStatus: domain.MarketStatusOpen,
		LastUpdated:  t0.Add(-2 * time.Hour),
		ExchangeBack: 1.9,
		ExchangeLay:  1.95,
	}
}

func TestFilter(t *testing.T) {
	now := t0.Add(-3 * time.Hour)

	fresh := row("1", "m1", "A v B", "A")
	fresh.LastUpdated = now.Add(-5 * time.Minute)

	stale := row("2", "m1", "A v B", "B")
	stale.LastUpdated = now.Add(-61 * time.Minute)

	noHeartbeat := row("3", "m2", "C v D", "C")
	noHeartbeat.LastUpdated = time.Time{}

	closed := row("4", "m3", "E v F", "E")
	closed.LastUpdated = now
	closed.MarketStatus = domain.MarketStatusClosed

	settled := row("5", "m3", "E v F", "F")
	settled.LastUpdated = now
	settled.MarketStatus = domain.MarketStatusSettled

	suspended := row("6", "m4", "G v H", "G")
	suspended.LastUpdated = now
	suspended.MarketStatus = domain.MarketStatusSuspended

	got := Filter([]domain.SelectionRow{fresh, stale, noHeartbeat, closed, settled, suspended}, FilterOptions{
		Now:       now,
		Heartbeat: DefaultHeartbeat,
	})

	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"1", "3", "6"}, ids)
}

func TestFilter_PreMatchOnly(t *testing.T) {
	now := t0

	upcoming := row("1", "m1", "A v B", "A")
	upcoming.StartTime = now.Add(time.Hour)
	upcoming.LastUpdated = now

	started := row("2", "m2", "C v D", "C")
	started.StartTime = now.Add(-time.Minute)
	started.LastUpdated = now

	inPlay := row("3", "m3", "E v F", "E")
	inPlay.StartTime = now.Add(time.Hour)
	inPlay.InPlay = true
	inPlay.LastUpdated = now

	rows := []domain.SelectionRow{upcoming, started, inPlay}

	all := Filter(rows, FilterOptions{Now: now, Heartbeat: DefaultHeartbeat})
	assert.Len(t, all, 3)

	pre := Filter(rows, FilterOptions{Now: now, Heartbeat: DefaultHeartbeat, PreMatchOnly: true})
	require.Len(t, pre, 1)
	assert.Equal(t, "1", pre[0].ID)
}

func TestParticipants(t *testing.T) {
	tests := []struct {
		event string
		want  []string
		ok    bool
	}{
		{"Miami Heat v Boston Celtics", []string{"Miami Heat", "Boston Celtics"}, true},
		{"Jets @ Giants", []string{"Jets", "Giants"}, true},
		{"Volkanovski vs Lopes", []string{"Volkanovski", "Lopes"}, true},
		{"Volkanovski VS. Lopes", []string{"Volkanovski", "Lopes"}, true},
		{"Lakers V Suns", []string{"Lakers", "Suns"}, true},
		{"Super Bowl Winner 2027", nil, false},
		{"A v B v C", nil, false},
		{" v Celtics", nil, false},
		{"", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			got, ok := Participants(tt.event)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGroup_PrunesNonMoneylineRunners(t *testing.T) {
	e := NewEngine(nil)
	event := "Miami Heat v Boston Celtics"

	board, dropped := e.Group([]domain.SelectionRow{
		row("1", "m1", event, "Miami Heat"),
		row("2", "m1", event, "Boston Celtics"),
		row("3", "m1", event, "Over 220.5"),
	})

	require.Empty(t, dropped)
	require.Len(t, board["NBA"], 1)
	sels := board["NBA"][0].Selections
	require.Len(t, sels, 2)
	assert.Equal(t, "Miami Heat", sels[0].RunnerName)
	assert.Equal(t, "Boston Celtics", sels[1].RunnerName)
}

func TestGroup_PruningSkipsOtherSportsAndUnsplitEvents(t *testing.T) {
	e := NewEngine(nil)

	soccer := row("1", "m1", "Arsenal v Chelsea", "The Draw")
	soccer.Sport = "Soccer"
	soccer.Competition = "Premier League"

	outright := row("2", "m2", "NBA Championship 2027", "Boston Celtics")

	board, _ := e.Group([]domain.SelectionRow{soccer, outright})

	require.Len(t, board["Premier League"], 1)
	assert.Len(t, board["Premier League"][0].Selections, 1)
	require.Len(t, board["NBA"], 1)
	assert.Len(t, board["NBA"][0].Selections, 1)
}

func TestGroup_ConfiguredTwoWaySports(t *testing.T) {
	e := NewEngine(nil, WithTwoWaySports([]string{"tennis"}))

	tennis := row("1", "m1", "Alcaraz v Sinner", "Set 1 Winner")
	tennis.Sport = "Tennis"
	basketball := row("2", "m2", "Heat v Celtics", "Over 220.5")

	board, _ := e.Group([]domain.SelectionRow{tennis, basketball})

	require.Len(t, board["NBA"], 1)
	assert.Equal(t, "m2", board["NBA"][0].ID)
	assert.Len(t, board["NBA"][0].Selections, 1)
}

func TestGroup_BucketsAndDedupes(t *testing.T) {
	e := NewEngine(nil)

	a := row("1", "m1", "Heat v Celtics", "Heat")
	dup := row("1", "m1", "Heat v Celtics", "Heat")
	dup.ExchangeBack = 9.0
	b := row("2", "m1", "Heat v Celtics", "Celtics")
	noComp := row("3", "m2", "Jets v Giants", "Jets")
	noComp.Competition = "  "
	noComp.Sport = "NFL"

	board, dropped := e.Group([]domain.SelectionRow{a, dup, b, noComp})

	require.Empty(t, dropped)
	assert.Equal(t, []string{"NBA", "Other"}, board.Competitions())
	require.Len(t, board["NBA"][0].Selections, 2)
	assert.Equal(t, 1.9, board["NBA"][0].Selections[0].Back, "first row wins")
	assert.Equal(t, "m2", board[domain.DefaultCompetition][0].ID)
	assert.Equal(t, 2, board.MarketCount())
}

func TestGroup_MarketInitialisedFromFirstRow(t *testing.T) {
	e := NewEngine(nil)

	first := row("1", "m1", "Heat v Celtics", "Heat")
	first.Volume = 500
	second := row("2", "m1", "Heat v Celtics", "Celtics")
	second.Volume = 900
	second.InPlay = true

	board, _ := e.Group([]domain.SelectionRow{first, second})

	m := board["NBA"][0]
	assert.Equal(t, 500.0, m.Volume)
	assert.False(t, m.InPlay)
}

func TestGroup_MalformedRowDroppedAlone(t *testing.T) {
	e := NewEngine(nil)

	good := row("1", "m1", "Heat v Celtics", "Heat")
	noStart := row("2", "m1", "Heat v Celtics", "Celtics")
	noStart.StartTime = time.Time{}
	noMarket := row("3", "", "Heat v Celtics", "Celtics")

	board, dropped := e.Group([]domain.SelectionRow{good, noStart, noMarket})

	require.Len(t, dropped, 2)
	var malformed *domain.MalformedRowError
	require.ErrorAs(t, dropped[0], &malformed)
	assert.Equal(t, "start_time", malformed.Field)
	require.ErrorAs(t, dropped[1], &malformed)
	assert.Equal(t, "market_id", malformed.Field)

	require.Len(t, board["NBA"], 1)
	assert.Len(t, board["NBA"][0].Selections, 1)
}

func TestGroup_SelectionOrderFollowsParticipants(t *testing.T) {
	e := NewEngine(nil)
	event := "NY Giants @ Dallas Cowboys"

	rows := []domain.SelectionRow{
		row("1", "m1", event, "Dallas Cowboys"),
		row("2", "m1", event, "Tie"),
		row("3", "m1", event, "New York Giants"),
	}
	for i := range rows {
		rows[i].Sport = "Soccer" // not two-way, so "Tie" survives
		rows[i].Competition = "Exhibition"
	}

	board, _ := e.Group(rows)

	sels := board["Exhibition"][0].Selections
	require.Len(t, sels, 3)
	assert.Equal(t, "New York Giants", sels[0].RunnerName)
	assert.Equal(t, "Dallas Cowboys", sels[1].RunnerName)
	assert.Equal(t, "Tie", sels[2].RunnerName)
}

func TestGroup_SelectionOrderWithoutParticipants(t *testing.T) {
	e := NewEngine(nil)
	event := "Championship Winner"

	longshot := row("1", "m1", event, "Zeta")
	longshot.ExchangeBack = 12
	favourite := row("2", "m1", event, "Alpha")
	favourite.ExchangeBack = 2.5
	unpriced := row("3", "m1", event, "Beta")
	unpriced.ExchangeBack = 0
	tied := row("4", "m1", event, "Aardvark")
	tied.ExchangeBack = 12

	board, _ := e.Group([]domain.SelectionRow{longshot, favourite, unpriced, tied})

	var names []string
	for _, s := range board["NBA"][0].Selections {
		names = append(names, s.RunnerName)
	}
	assert.Equal(t, []string{"Alpha", "Aardvark", "Zeta", "Beta"}, names)
}

func TestGroup_MarketOrderIsDeterministic(t *testing.T) {
	e := NewEngine(nil)

	late := row("1", "m-late", "Heat v Celtics", "Heat")
	late.StartTime = t0.Add(time.Hour)
	tieB := row("2", "1.200", "Heat v Celtics", "Heat")
	tieA := row("3", "1.100", "Heat v Celtics", "Heat")
	earlierName := row("4", "1.300", "Bucks v Bulls", "Bucks")

	board, _ := e.Group([]domain.SelectionRow{late, tieB, tieA, earlierName})

	var ids []string
	for _, m := range board["NBA"] {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"1.300", "1.100", "1.200", "m-late"}, ids)
}

func TestGroup_Idempotent(t *testing.T) {
	e := NewEngine(nil)

	rows := []domain.SelectionRow{
		row("1", "1.2", "Heat v Celtics", "Celtics"),
		row("2", "1.1", "Heat v Celtics", "Heat"),
		row("3", "1.1", "Heat v Celtics", "Celtics"),
		row("4", "1.2", "Heat v Celtics", "Heat"),
		row("5", "1.3", "Knicks v Nets", "Over 210.5"),
	}

	first, _ := e.Group(rows)
	second, _ := e.Group(rows)

	assert.Equal(t, first, second)
}

func TestGroup_DoesNotAliasInputPrices(t *testing.T) {
	e := NewEngine(nil)

	r := row("1", "m1", "Heat v Celtics", "Heat")
	r.BookmakerPrices = map[string]float64{domain.BookmakerPinnacle: 1.95}

	board, _ := e.Group([]domain.SelectionRow{r})
	board["NBA"][0].Selections[0].Bookmakers[domain.BookmakerPinnacle] = 5

	assert.Equal(t, 1.95, r.BookmakerPrices[domain.BookmakerPinnacle])
}
