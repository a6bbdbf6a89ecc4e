package steam

import (
	"math"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// ValueConfig holds the value-alert gates and re-alert thresholds.
type ValueConfig struct {
	MinVolume      float64
	MinPrice       float64 // back and lay must both be above this
	MaxSpread      float64 // (lay-back)/back
	MinBookOverLay float64 // (book-lay)/lay
	Commission     float64 // exchange commission on lay winnings
	MinEdge        float64
	Bookmakers     []string

	RealertEdgeStep  float64
	RealertAfter     time.Duration
	RealertPriceMove float64
}

// DefaultValueConfig returns the production alert thresholds.
func DefaultValueConfig() ValueConfig {
	return ValueConfig{
		MinVolume:        200,
		MinPrice:         1.01,
		MaxSpread:        0.04,
		MinBookOverLay:   0.02,
		Commission:       0.02,
		MinEdge:          0.003,
		Bookmakers:       []string{domain.BookmakerPaddyPower, domain.BookmakerBet365},
		RealertEdgeStep:  0.002,
		RealertAfter:     10 * time.Minute,
		RealertPriceMove: 0.03,
	}
}

// ValueSignal is a bookmaker price that beats the exchange lay by enough to
// alert on.
type ValueSignal struct {
	Key       string
	Row       domain.SelectionRow
	Book      string
	BookPrice float64
	Back      float64
	Lay       float64
	Spread    float64
	Gap       float64 // (book-lay)/lay
	Edge      float64
}

// AlertKey identifies a runner for alert deduplication.
func AlertKey(r domain.SelectionRow) string {
	return r.MarketID + ":" + r.ID
}

// ValueEdge is the implied-probability gap between laying at lay net of
// commission and backing at book.
func ValueEdge(book, lay, commission float64) float64 {
	return 1/(lay*(1-commission)) - 1/book
}

// EvaluateValue applies every alert gate to r. Only open, pre-match rows
// that have not started are considered.
func EvaluateValue(r domain.SelectionRow, cfg ValueConfig, now time.Time) (ValueSignal, bool) {
	if r.MarketStatus != domain.MarketStatusOpen || r.InPlay {
		return ValueSignal{}, false
	}
	if !r.StartTime.IsZero() && !now.Before(r.StartTime) {
		return ValueSignal{}, false
	}
	if !finite(r.Volume) || r.Volume < cfg.MinVolume {
		return ValueSignal{}, false
	}

	back, lay := r.ExchangeBack, r.ExchangeLay
	if !domain.Quoted(back) || !domain.Quoted(lay) || back <= cfg.MinPrice || lay <= cfg.MinPrice {
		return ValueSignal{}, false
	}
	spread := (lay - back) / back
	if spread > cfg.MaxSpread {
		return ValueSignal{}, false
	}

	book, price := bestBook(r.BookmakerPrices, cfg.Bookmakers)
	if price <= cfg.MinPrice {
		return ValueSignal{}, false
	}
	gap := (price - lay) / lay
	if gap < cfg.MinBookOverLay {
		return ValueSignal{}, false
	}
	edge := ValueEdge(price, lay, cfg.Commission)
	if !finite(edge) || edge < cfg.MinEdge {
		return ValueSignal{}, false
	}

	return ValueSignal{
		Key:       AlertKey(r),
		Row:       r,
		Book:      book,
		BookPrice: price,
		Back:      back,
		Lay:       lay,
		Spread:    spread,
		Gap:       gap,
		Edge:      edge,
	}, true
}

// ShouldAlert decides whether sig is news relative to the previous alert for
// the same key. A nil prev always alerts.
func ShouldAlert(sig ValueSignal, prev *domain.AlertRecord, cfg ValueConfig, now time.Time) bool {
	if prev == nil {
		return true
	}
	if sig.Edge >= prev.Edge+cfg.RealertEdgeStep {
		return true
	}
	if now.Sub(prev.SentAt) > cfg.RealertAfter {
		return true
	}
	return math.Abs(sig.BookPrice-prev.BookPrice) >= cfg.RealertPriceMove ||
		math.Abs(sig.Lay-prev.LayPrice) >= cfg.RealertPriceMove
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
