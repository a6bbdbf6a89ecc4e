package service

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/normalize"
	"github.com/alanyoungcy/oddsdesk/internal/steam"
)

var viewNow = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func testSnapshot(start time.Time) Snapshot {
	movers := []domain.Mover{{
		SelectionKey: "1.1::Heat",
		RunnerName:   "Heat",
		EventName:    "Heat v Celtics",
		Sport:        "NBA",
		BackThen:     2.4,
		BackNow:      2.1,
		PctMove:      -0.125,
		Spread:       0.02,
	}}
	board := domain.Board{
		"NBA": {{
			ID: "1.1", EventName: "Heat v Celtics", Sport: "NBA", StartTime: start,
			Volume: 500, MarketStatus: domain.MarketStatusOpen,
			Selections: []domain.Selection{
				{ID: "a", RunnerName: "Heat", Back: 2.0, Lay: 2.04, Bookmakers: map[string]float64{
					domain.BookmakerPinnacle: 3.0, domain.BookmakerBet365: 2.1,
				}},
				{ID: "b", RunnerName: "Celtics", Back: 0, Lay: 1.0},
			},
		}},
		"NBA Summer": {{
			ID: "2.1", EventName: "Lakers v Suns", Sport: "NBA", StartTime: start,
			Volume: 50, MarketStatus: domain.MarketStatusSuspended,
			Selections: []domain.Selection{{ID: "c", RunnerName: "Lakers", Back: 1.5, Lay: 1.52}},
		}},
	}
	return Snapshot{
		Sport:          "NBA",
		Generation:     3,
		Board:          board,
		Movers:         movers,
		Overlay:        steam.BuildOverlay(movers, nil),
		BoardUpdatedAt: viewNow,
	}
}

func testRenderer() *Renderer {
	return &Renderer{
		Eligibility:  steam.DefaultEligibility(),
		MaxSpreadPct: steam.DefaultMaxSpreadPct,
		PanelSize:    steam.DefaultPanelSize,
		Window:       15,
		Norm:         normalize.Default(),
	}
}

func TestRenderer_EntitledBoard(t *testing.T) {
	v := testRenderer().Board(testSnapshot(viewNow.Add(time.Hour)), ViewOptions{Entitled: true, Now: viewNow})

	assert.False(t, v.Locked)
	assert.Equal(t, uint64(3), v.Generation)
	assert.Equal(t, 2, v.MarketCount)
	require.Len(t, v.Competitions, 2)
	assert.Equal(t, "NBA", v.Competitions[0].Name)
	assert.Equal(t, "NBA Summer", v.Competitions[1].Name)

	m := v.Competitions[0].Markets[0]
	assert.True(t, m.Flagged)
	require.Len(t, m.Selections, 2)

	heat := m.Selections[0]
	assert.Equal(t, "2.00", heat.Back)
	assert.Equal(t, "2.04", heat.Lay)
	assert.Equal(t, "3.00", heat.Bookmakers[domain.BookmakerPinnacle])
	assert.Equal(t, steam.NoQuote, heat.Bookmakers[domain.BookmakerPaddyPower])
	require.NotNil(t, heat.Edge)
	assert.Equal(t, domain.BookmakerPinnacle, heat.Edge.Book)
	assert.Equal(t, "48.5", heat.Edge.Pct)
	require.NotNil(t, heat.Badge)
	assert.Equal(t, "↑12.5%", heat.Badge.Text)

	celtics := m.Selections[1]
	assert.Equal(t, steam.NoQuote, celtics.Back)
	assert.Equal(t, steam.NoQuote, celtics.Lay)
	assert.Nil(t, celtics.Edge)
	assert.Nil(t, celtics.Badge)

	suspended := v.Competitions[1].Markets[0]
	assert.True(t, suspended.Suspended)
	assert.False(t, suspended.Flagged)

	assert.Equal(t, []string{"Heat v Celtics"}, v.FlaggedEvents)
	assert.Contains(t, v.Runners, "Heat")
	require.Len(t, v.Panel, 1)
	assert.Equal(t, "2.40", v.Panel[0].OldPrice)
}

func TestRenderer_NonFiniteValuesRenderAsNoQuote(t *testing.T) {
	snap := testSnapshot(viewNow.Add(time.Hour))
	heat := &snap.Board["NBA"][0].Selections[0]
	heat.Back, heat.Lay = math.NaN(), math.Inf(1)
	heat.Bookmakers = map[string]float64{domain.BookmakerPinnacle: math.NaN(), domain.BookmakerBet365: math.Inf(-1)}
	snap.Movers[0].PctMove = math.Inf(-1)
	snap.Movers[0].BackThen = math.NaN()
	snap.Overlay = steam.BuildOverlay(snap.Movers, nil)

	var v BoardView
	require.NotPanics(t, func() {
		v = testRenderer().Board(snap, ViewOptions{Entitled: true, Now: viewNow})
	})

	sel := v.Competitions[0].Markets[0].Selections[0]
	assert.Equal(t, steam.NoQuote, sel.Back)
	assert.Equal(t, steam.NoQuote, sel.Lay)
	assert.Equal(t, steam.NoQuote, sel.Bookmakers[domain.BookmakerPinnacle])
	assert.Equal(t, steam.NoQuote, sel.Bookmakers[domain.BookmakerBet365])
	assert.Nil(t, sel.Edge)
	require.Len(t, v.Panel, 1)
	assert.Equal(t, steam.NoQuote, v.Panel[0].OldPrice)
}

func TestRenderer_LockedBoardKeepsMarkets(t *testing.T) {
	snap := testSnapshot(viewNow.Add(time.Hour))
	entitled := testRenderer().Board(snap, ViewOptions{Entitled: true, Now: viewNow})
	locked := testRenderer().Board(snap, ViewOptions{Entitled: false, Now: viewNow})

	assert.True(t, locked.Locked)
	assert.Equal(t, entitled.MarketCount, locked.MarketCount)
	assert.Empty(t, locked.FlaggedEvents)
	assert.Empty(t, locked.Runners)
	assert.Empty(t, locked.Panel)

	heat := locked.Competitions[0].Markets[0].Selections[0]
	assert.Equal(t, "2.00", heat.Back, "exchange prices stay visible")
	assert.Nil(t, heat.Bookmakers)
	assert.Nil(t, heat.Edge)
	assert.Nil(t, heat.Badge)
	assert.False(t, locked.Competitions[0].Markets[0].Flagged)
}

func TestRenderer_BadgeNeedsLeadTime(t *testing.T) {
	v := testRenderer().Board(testSnapshot(viewNow.Add(8*time.Minute)), ViewOptions{Entitled: true, Now: viewNow})
	heat := v.Competitions[0].Markets[0].Selections[0]
	assert.Nil(t, heat.Badge)
	assert.NotNil(t, heat.Edge, "edge does not depend on eligibility")
}

func TestRenderer_Search(t *testing.T) {
	r := testRenderer()
	snap := testSnapshot(viewNow.Add(time.Hour))

	v := r.Board(snap, ViewOptions{Entitled: true, Query: "celtics", Now: viewNow})
	require.Len(t, v.Competitions, 1)
	assert.Equal(t, "Heat v Celtics", v.Competitions[0].Markets[0].EventName)

	v = r.Board(snap, ViewOptions{Entitled: true, Query: "Lakers", Now: viewNow})
	require.Len(t, v.Competitions, 1)
	assert.Equal(t, "NBA Summer", v.Competitions[0].Name)

	v = r.Board(snap, ViewOptions{Entitled: true, Query: "  ", Now: viewNow})
	assert.Equal(t, 2, v.MarketCount)

	v = r.Board(snap, ViewOptions{Entitled: true, Query: "warriors", Now: viewNow})
	assert.Empty(t, v.Competitions)
	assert.NotNil(t, v.Competitions)
}

func TestRenderer_EmptyBoard(t *testing.T) {
	v := testRenderer().Board(Snapshot{Sport: "MMA", Board: domain.Board{}}, ViewOptions{Entitled: true, Now: viewNow})
	assert.Zero(t, v.MarketCount)
	assert.NotNil(t, v.Competitions)
	assert.Empty(t, v.Panel)
}

func TestRenderer_Movers(t *testing.T) {
	snap := testSnapshot(viewNow)
	r := testRenderer()

	v := r.Movers(snap, true)
	assert.Equal(t, 15, v.Window)
	assert.Equal(t, 1, v.Count)
	assert.Len(t, v.Movers, 1)
	assert.Len(t, v.Panel, 1)

	locked := r.Movers(snap, false)
	assert.True(t, locked.Locked)
	assert.Equal(t, 1, locked.Count)
	assert.Empty(t, locked.Movers)
}
