package steam

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// NoQuote is rendered in place of any price that is absent or not above 1.0.
const NoQuote = "—"

// FormatPrice renders a decimal price with two places, or NoQuote.
func FormatPrice(p float64) string {
	if !domain.Quoted(p) {
		return NoQuote
	}
	return decimal.NewFromFloat(p).StringFixed(2)
}

// FormatPct renders a percentage with one decimal place. NaN and infinities
// render as NoQuote.
func FormatPct(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NoQuote
	}
	return decimal.NewFromFloat(v).StringFixed(1)
}
