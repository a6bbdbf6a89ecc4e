package steam

import "github.com/alanyoungcy/oddsdesk/internal/domain"

const (
	// DefaultPanelSize is how many movers the panel shows.
	DefaultPanelSize = 6
	// TightSpread is the spread fraction below which a market counts as tight.
	TightSpread = 0.05
)

// PanelEntry is one row of the steamers panel.
type PanelEntry struct {
	Mover    domain.Mover `json:"mover"`
	OldPrice string       `json:"old_price"`
	NewPrice string       `json:"new_price"`
	Badge    Badge        `json:"badge"`
	Tight    bool         `json:"tight"`
}

// BuildPanel renders the first size movers. Steamers show the back price
// move and drifters the lay price move.
func BuildPanel(movers []domain.Mover, size int) []PanelEntry {
	if size <= 0 {
		size = DefaultPanelSize
	}
	if len(movers) < size {
		size = len(movers)
	}

	out := make([]PanelEntry, 0, size)
	for _, m := range movers[:size] {
		m.Label = LabelOf(m)
		oldP, newP := m.LayThen, m.LayNow
		if m.Label == domain.LabelSteamer {
			oldP, newP = m.BackThen, m.BackNow
		}
		out = append(out, PanelEntry{
			Mover:    m,
			OldPrice: FormatPrice(oldP),
			NewPrice: FormatPrice(newP),
			Badge:    BadgeFor(m),
			Tight:    m.Spread < TightSpread,
		})
	}
	return out
}
