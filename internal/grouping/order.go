package grouping

import (
	"math"
	"sort"
	"strings"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// orderSelections sorts a market's selections in place. Head-to-head events
// list the participants in event-name order with everything else after them;
// other markets list the favourite first and unpriced runners last.
// Alphabetical runner name, then row ID, break every remaining tie.
func (e *Engine) orderSelections(m *domain.Market) {
	sels := m.Selections
	if len(sels) < 2 {
		return
	}

	if sides, ok := Participants(m.EventName); ok {
		keys := []string{e.norm.Normalize(sides[0]), e.norm.Normalize(sides[1])}
		rank := make(map[string]int, len(sels))
		for _, s := range sels {
			rank[s.ID] = participantRank(e.norm.Normalize(s.RunnerName), keys)
		}
		sort.SliceStable(sels, func(i, j int) bool {
			ri, rj := rank[sels[i].ID], rank[sels[j].ID]
			if ri != rj {
				return ri < rj
			}
			return alphabetical(sels[i], sels[j])
		})
		return
	}

	sort.SliceStable(sels, func(i, j int) bool {
		pi, pj := sortPrice(sels[i].Back), sortPrice(sels[j].Back)
		if pi != pj {
			return pi < pj
		}
		return alphabetical(sels[i], sels[j])
	})
}

// participantRank returns the runner's position in keys, or len(keys) when it
// is not a participant.
func participantRank(runner string, keys []string) int {
	for i, k := range keys {
		if runner == k {
			return i
		}
	}
	return len(keys)
}

func sortPrice(p float64) float64 {
	if !domain.Quoted(p) {
		return math.Inf(1)
	}
	return p
}

func alphabetical(a, b domain.Selection) bool {
	na, nb := strings.ToLower(a.RunnerName), strings.ToLower(b.RunnerName)
	if na != nb {
		return na < nb
	}
	return a.ID < b.ID
}

// sortMarkets orders markets by start time, then event name, then market ID,
// so repeated polls of unchanged data never reshuffle the list.
func sortMarkets(markets []domain.Market) {
	sort.SliceStable(markets, func(i, j int) bool {
		a, b := markets[i], markets[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		if a.EventName != b.EventName {
			return a.EventName < b.EventName
		}
		return a.ID < b.ID
	})
}
