package steam

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// Eligibility gates whether a steam badge may be shown on a market.
type Eligibility struct {
	// MinLead is how far in the future the market must start.
	MinLead time.Duration
	// MinVolume is the minimum matched volume. Test mode sets it to 0.
	MinVolume float64
}

// DefaultEligibility returns the production gate: more than 10 minutes to
// the off and at least 200 matched.
func DefaultEligibility() Eligibility {
	return Eligibility{MinLead: 10 * time.Minute, MinVolume: 200}
}

// Eligible reports whether a market starting at start with the given volume
// may carry a badge at now.
func (e Eligibility) Eligible(start time.Time, volume float64, now time.Time) bool {
	if start.Sub(now) <= e.MinLead {
		return false
	}
	return volume >= e.MinVolume
}

// Badge is the rendered steam marker for one selection.
type Badge struct {
	Label     domain.MoverLabel `json:"label"`
	Arrow     string            `json:"arrow"`
	Magnitude float64           `json:"magnitude"`
	Text      string            `json:"text"`
}

const (
	arrowUp   = "↑"
	arrowDown = "↓"
)

// BadgeFor renders m's move as a percentage rounded to one decimal.
func BadgeFor(m domain.Mover) Badge {
	label := LabelOf(m)
	arrow := arrowDown
	if label == domain.LabelSteamer {
		arrow = arrowUp
	}

	mag := decimal.NewFromFloat(domain.Finite(m.PctMove)).Abs().Mul(decimal.NewFromInt(100)).Round(1)
	f, _ := mag.Float64()

	return Badge{
		Label:     label,
		Arrow:     arrow,
		Magnitude: f,
		Text:      arrow + mag.StringFixed(1) + "%",
	}
}
