package service

import (
	"sort"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/normalize"
	"github.com/alanyoungcy/oddsdesk/internal/steam"
)

// DisplayBookmakers is the column order for bookmaker prices.
var DisplayBookmakers = []string{
	domain.BookmakerPinnacle,
	domain.BookmakerBet365,
	domain.BookmakerPaddyPower,
}

// EdgeView is a rendered steam.Edge.
type EdgeView struct {
	Book      string `json:"book"`
	BestPrice string `json:"best_price"`
	Pct       string `json:"pct"`
	SpreadPct string `json:"spread_pct"`
}

// SelectionView is one rendered runner. Prices use the no-quote sentinel.
type SelectionView struct {
	ID         string            `json:"id"`
	RunnerName string            `json:"runner_name"`
	Back       string            `json:"back"`
	Lay        string            `json:"lay"`
	Bookmakers map[string]string `json:"bookmakers,omitempty"`
	Edge       *EdgeView         `json:"edge,omitempty"`
	Badge      *steam.Badge      `json:"badge,omitempty"`
}

// MarketView is one rendered market.
type MarketView struct {
	ID         string              `json:"id"`
	EventName  string              `json:"event_name"`
	StartTime  time.Time           `json:"start_time"`
	Volume     float64             `json:"volume"`
	InPlay     bool                `json:"in_play"`
	Status     domain.MarketStatus `json:"market_status"`
	Suspended  bool                `json:"suspended"`
	Flagged    bool                `json:"flagged,omitempty"`
	Selections []SelectionView     `json:"selections"`
}

// CompetitionView groups markets under a competition name.
type CompetitionView struct {
	Name    string       `json:"name"`
	Markets []MarketView `json:"markets"`
}

// BoardView is what the board endpoint serves. Competitions and markets are
// always computed in full; without entitlement the bookmaker prices, edges,
// badges and steam outputs are left out and Locked is set.
type BoardView struct {
	Sport        string            `json:"sport"`
	Generation   uint64            `json:"generation"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Query        string            `json:"query,omitempty"`
	Entitled     bool              `json:"entitled"`
	Locked       bool              `json:"locked"`
	MarketCount  int               `json:"market_count"`
	Competitions []CompetitionView `json:"competitions"`

	FlaggedEvents []string                `json:"flagged_events,omitempty"`
	Runners       map[string]domain.Mover `json:"runners,omitempty"`
	Panel         []steam.PanelEntry      `json:"panel,omitempty"`
}

// MoversView is what the movers endpoint serves.
type MoversView struct {
	Sport     string             `json:"sport"`
	Window    int                `json:"window_minutes"`
	UpdatedAt time.Time          `json:"updated_at"`
	Locked    bool               `json:"locked"`
	Count     int                `json:"count"`
	Movers    []domain.Mover     `json:"movers,omitempty"`
	Panel     []steam.PanelEntry `json:"panel,omitempty"`
}

// ViewOptions are the per-request inputs to rendering.
type ViewOptions struct {
	Entitled bool
	// Query keeps only markets whose event or a runner is similar to it.
	Query string
	// Now is the reference time for badge eligibility. Zero means time.Now().
	Now time.Time
}

// Snapshot is an immutable copy of the board state.
type Snapshot struct {
	Sport           string
	Generation      uint64
	Board           domain.Board
	Movers          []domain.Mover
	Overlay         *steam.Overlay
	BoardUpdatedAt  time.Time
	MoversUpdatedAt time.Time
}

// Renderer turns a Snapshot into views. It holds no state beyond its
// parameters.
type Renderer struct {
	Eligibility  steam.Eligibility
	MaxSpreadPct float64
	PanelSize    int
	Window       int
	Norm         *normalize.Normalizer
}

// Board renders s for one request.
func (r *Renderer) Board(s Snapshot, opts ViewOptions) BoardView {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	norm := r.Norm
	if norm == nil {
		norm = normalize.Default()
	}
	filtered := norm.Normalize(opts.Query) != ""

	view := BoardView{
		Sport:        s.Sport,
		Generation:   s.Generation,
		UpdatedAt:    s.BoardUpdatedAt,
		Query:        opts.Query,
		Entitled:     opts.Entitled,
		Locked:       !opts.Entitled,
		Competitions: []CompetitionView{},
	}

	for _, name := range s.Board.Competitions() {
		cv := CompetitionView{Name: name}
		for _, m := range s.Board[name] {
			if filtered && !matchesQuery(norm, opts.Query, m) {
				continue
			}
			cv.Markets = append(cv.Markets, r.market(m, s.Overlay, opts.Entitled, now))
		}
		if len(cv.Markets) > 0 {
			view.Competitions = append(view.Competitions, cv)
			view.MarketCount += len(cv.Markets)
		}
	}

	if opts.Entitled {
		view.FlaggedEvents = flaggedEvents(s.Overlay)
		if s.Overlay != nil {
			view.Runners = s.Overlay.Runners
		}
		view.Panel = steam.BuildPanel(s.Movers, r.PanelSize)
	}
	return view
}

// Movers renders the movers list for one request.
func (r *Renderer) Movers(s Snapshot, entitled bool) MoversView {
	view := MoversView{
		Sport:     s.Sport,
		Window:    r.Window,
		UpdatedAt: s.MoversUpdatedAt,
		Locked:    !entitled,
		Count:     len(s.Movers),
	}
	if entitled {
		view.Movers = s.Movers
		view.Panel = steam.BuildPanel(s.Movers, r.PanelSize)
	}
	return view
}

func (r *Renderer) market(m domain.Market, overlay *steam.Overlay, entitled bool, now time.Time) MarketView {
	mv := MarketView{
		ID:         m.ID,
		EventName:  m.EventName,
		StartTime:  m.StartTime,
		Volume:     m.Volume,
		InPlay:     m.InPlay,
		Status:     m.MarketStatus,
		Suspended:  m.MarketStatus == domain.MarketStatusSuspended,
		Selections: make([]SelectionView, 0, len(m.Selections)),
	}
	if entitled {
		mv.Flagged = overlay.Flagged(m.EventName)
	}
	eligible := r.Eligibility.Eligible(m.StartTime, m.Volume, now)

	for _, sel := range m.Selections {
		sv := SelectionView{
			ID:         sel.ID,
			RunnerName: sel.RunnerName,
			Back:       steam.FormatPrice(sel.Back),
			Lay:        steam.FormatPrice(sel.Lay),
		}
		if entitled {
			sv.Bookmakers = make(map[string]string, len(DisplayBookmakers))
			for _, b := range DisplayBookmakers {
				sv.Bookmakers[b] = steam.FormatPrice(sel.Bookmakers[b])
			}
			if e, ok := steam.ComputeEdge(sel.Back, sel.Lay, sel.Bookmakers, r.MaxSpreadPct); ok {
				sv.Edge = &EdgeView{
					Book:      e.Book,
					BestPrice: steam.FormatPrice(e.BestPrice),
					Pct:       steam.FormatPct(e.Pct),
					SpreadPct: steam.FormatPct(e.SpreadPct),
				}
			}
			if eligible {
				if mover, ok := overlay.Lookup(m.EventName, sel.RunnerName); ok {
					b := steam.BadgeFor(mover)
					sv.Badge = &b
				}
			}
		}
		mv.Selections = append(mv.Selections, sv)
	}
	return mv
}

func matchesQuery(norm *normalize.Normalizer, query string, m domain.Market) bool {
	if norm.Similar(query, m.EventName) {
		return true
	}
	for _, sel := range m.Selections {
		if norm.Similar(query, sel.RunnerName) {
			return true
		}
	}
	return false
}

func flaggedEvents(o *steam.Overlay) []string {
	if o == nil || len(o.Events) == 0 {
		return nil
	}
	out := make([]string, 0, len(o.Events))
	for e := range o.Events {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
