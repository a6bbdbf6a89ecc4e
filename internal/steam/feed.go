// Package steam consumes the precomputed movers feed and derives the
// presentation signals layered on top of a grouped board: steam badges,
// bookmaker edge, the movers panel and value alerts.
package steam

import (
	"strings"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// AllSports disables the sport filter in Classify.
const AllSports = "All"

// Classify returns the movers for sport in upstream order. AllSports or an
// empty sport returns every mover. Movers arriving without a label are
// labelled from the sign of PctMove.
func Classify(movers []domain.Mover, sport string) []domain.Mover {
	all := sport == "" || strings.EqualFold(sport, AllSports)

	out := make([]domain.Mover, 0, len(movers))
	for _, m := range movers {
		if !all && m.Sport != sport {
			continue
		}
		m.Label = LabelOf(m)
		out = append(out, m)
	}
	return out
}

// LabelOf returns the mover's label, deriving it when upstream left it blank.
// A falling price is a steamer.
func LabelOf(m domain.Mover) domain.MoverLabel {
	switch domain.MoverLabel(strings.ToUpper(string(m.Label))) {
	case domain.LabelSteamer:
		return domain.LabelSteamer
	case domain.LabelDrifter:
		return domain.LabelDrifter
	}
	if m.PctMove < 0 {
		return domain.LabelSteamer
	}
	return domain.LabelDrifter
}
