package domain

import (
	"sort"
	"time"
)

// DefaultCompetition buckets rows that carry no competition name.
const DefaultCompetition = "Other"

// Selection is one runner inside a grouped Market.
type Selection struct {
	ID         string             `json:"id"`
	RunnerName string             `json:"runner_name"`
	Back       float64            `json:"back"`
	Lay        float64            `json:"lay"`
	Bookmakers map[string]float64 `json:"bookmakers,omitempty"`
}

// Market aggregates every selection row that shares a market ID.
type Market struct {
	ID           string       `json:"id"`
	EventName    string       `json:"event_name"`
	Sport        string       `json:"sport"`
	StartTime    time.Time    `json:"start_time"`
	Volume       float64      `json:"volume"`
	InPlay       bool         `json:"in_play"`
	MarketStatus MarketStatus `json:"market_status"`
	Selections   []Selection  `json:"selections"`
}

// Board maps a competition name to its ordered markets.
type Board map[string][]Market

// Competitions returns the board's competition names in alphabetical order.
func (b Board) Competitions() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarketCount returns the total number of markets across all competitions.
func (b Board) MarketCount() int {
	n := 0
	for _, markets := range b {
		n += len(markets)
	}
	return n
}
