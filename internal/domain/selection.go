package domain

import (
	"math"
	"time"
)

// MarketStatus is the upstream lifecycle state of an exchange market.
type MarketStatus string

const (
	MarketStatusOpen      MarketStatus = "OPEN"
	MarketStatusSuspended MarketStatus = "SUSPENDED"
	MarketStatusClosed    MarketStatus = "CLOSED"
	MarketStatusSettled   MarketStatus = "SETTLED"
)

// Terminal reports whether the market can no longer trade.
func (s MarketStatus) Terminal() bool {
	return s == MarketStatusClosed || s == MarketStatusSettled
}

// Bookmaker identifiers used as keys in SelectionRow.BookmakerPrices.
const (
	BookmakerPinnacle   = "pinnacle"
	BookmakerBet365     = "bet365"
	BookmakerPaddyPower = "paddypower"
)

// SelectionRow is one quote snapshot for a single runner, as returned by the
// feed store. Absent prices are 0.
type SelectionRow struct {
	ID              string             `json:"id"`
	MarketID        string             `json:"market_id"`
	EventName       string             `json:"event_name"`
	Competition     string             `json:"competition"`
	Sport           string             `json:"sport"`
	RunnerName      string             `json:"runner_name"`
	StartTime       time.Time          `json:"start_time"`
	Volume          float64            `json:"volume"`
	InPlay          bool               `json:"in_play"`
	MarketStatus    MarketStatus       `json:"market_status"`
	LastUpdated     time.Time          `json:"last_updated"`
	ExchangeBack    float64            `json:"back_price"`
	ExchangeLay     float64            `json:"lay_price"`
	BookmakerPrices map[string]float64 `json:"bookmakers,omitempty"`
}

// Validate checks the fields every transform relies on.
func (r SelectionRow) Validate() error {
	switch {
	case r.ID == "":
		return &MalformedRowError{RowID: r.ID, Field: "id", Reason: "missing"}
	case r.MarketID == "":
		return &MalformedRowError{RowID: r.ID, Field: "market_id", Reason: "missing"}
	case r.StartTime.IsZero():
		return &MalformedRowError{RowID: r.ID, Field: "start_time", Reason: "missing"}
	}
	return nil
}

// Quoted reports whether p is a usable decimal price. Zero, negative, 1.0,
// NaN and infinities all mean "no quote".
func Quoted(p float64) bool {
	return p > 1.0 && !math.IsInf(p, 1)
}

// Finite returns v, or 0 when v is NaN or infinite. Numeric feed fields pass
// through it on the way in so a non-finite value reads as "no quote".
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
