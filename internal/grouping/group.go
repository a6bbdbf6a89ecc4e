package grouping

import (
	"maps"
	"strings"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/normalize"
)

// Engine groups selection rows into a Board. It holds only immutable
// configuration, so one Engine may be shared across goroutines.
type Engine struct {
	norm               *normalize.Normalizer
	sports             sportMatcher
	defaultCompetition string
}

// Option configures an Engine.
type Option func(*Engine)

// WithTwoWaySports replaces the two-way sport token list.
func WithTwoWaySports(tokens []string) Option {
	return func(e *Engine) {
		e.sports = newSportMatcher(tokens)
	}
}

// WithDefaultCompetition sets the bucket used for rows without a competition.
func WithDefaultCompetition(name string) Option {
	return func(e *Engine) {
		if name = strings.TrimSpace(name); name != "" {
			e.defaultCompetition = name
		}
	}
}

// NewEngine creates an Engine. A nil normalizer uses the default table.
func NewEngine(norm *normalize.Normalizer, opts ...Option) *Engine {
	if norm == nil {
		norm = normalize.Default()
	}
	e := &Engine{
		norm:               norm,
		sports:             newSportMatcher(DefaultTwoWaySports),
		defaultCompetition: domain.DefaultCompetition,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Normalizer returns the engine's name normalizer.
func (e *Engine) Normalizer() *normalize.Normalizer {
	return e.norm
}

type marketKey struct {
	competition string
	marketID    string
}

// Group builds the board from rows that already passed Filter. Rows that fail
// validation are skipped and returned as *domain.MalformedRowError values; the
// rest of the pass is unaffected. Group does not modify rows and returns the
// same board for the same input.
func (e *Engine) Group(rows []domain.SelectionRow) (domain.Board, []error) {
	var dropped []error

	board := make(domain.Board)
	position := make(map[marketKey]int)
	seen := make(map[marketKey]map[string]struct{})

	for _, r := range rows {
		if err := r.Validate(); err != nil {
			dropped = append(dropped, err)
			continue
		}
		if e.outsideMoneyline(r) {
			continue
		}

		comp := strings.TrimSpace(r.Competition)
		if comp == "" {
			comp = e.defaultCompetition
		}
		key := marketKey{competition: comp, marketID: r.MarketID}

		idx, ok := position[key]
		if !ok {
			board[comp] = append(board[comp], marketFromRow(r))
			idx = len(board[comp]) - 1
			position[key] = idx
			seen[key] = make(map[string]struct{})
		}
		if _, dup := seen[key][r.ID]; dup {
			continue
		}
		seen[key][r.ID] = struct{}{}

		m := &board[comp][idx]
		m.Selections = append(m.Selections, selectionFromRow(r))
	}

	for _, markets := range board {
		for i := range markets {
			e.orderSelections(&markets[i])
		}
		sortMarkets(markets)
	}

	return board, dropped
}

// outsideMoneyline reports whether r is a sub-market outcome (totals, props)
// that leaked into a two-way sport's moneyline market.
func (e *Engine) outsideMoneyline(r domain.SelectionRow) bool {
	if !e.sports.twoWay(r.Sport) {
		return false
	}
	sides, ok := Participants(r.EventName)
	if !ok {
		return false
	}
	runner := e.norm.Normalize(r.RunnerName)
	return runner != e.norm.Normalize(sides[0]) && runner != e.norm.Normalize(sides[1])
}

func marketFromRow(r domain.SelectionRow) domain.Market {
	return domain.Market{
		ID:           r.MarketID,
		EventName:    r.EventName,
		Sport:        r.Sport,
		StartTime:    r.StartTime,
		Volume:       r.Volume,
		InPlay:       r.InPlay,
		MarketStatus: r.MarketStatus,
	}
}

func selectionFromRow(r domain.SelectionRow) domain.Selection {
	s := domain.Selection{
		ID:         r.ID,
		RunnerName: r.RunnerName,
		Back:       r.ExchangeBack,
		Lay:        r.ExchangeLay,
	}
	if len(r.BookmakerPrices) > 0 {
		s.Bookmakers = maps.Clone(r.BookmakerPrices)
	}
	return s
}
