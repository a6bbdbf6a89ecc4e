package steam

import "github.com/alanyoungcy/oddsdesk/internal/domain"

// DefaultMaxSpreadPct is the widest exchange spread, as a percentage of the
// mid, for which the mid is trusted as fair value.
const DefaultMaxSpreadPct = 5.0

// Edge compares the best bookmaker price against the exchange mid.
type Edge struct {
	Mid       float64 `json:"mid"`
	SpreadPct float64 `json:"spread_pct"`
	Book      string  `json:"book"`
	BestPrice float64 `json:"best_price"`
	Pct       float64 `json:"pct"`
}

// ComputeEdge returns the bookmaker edge over the exchange mid. It reports
// false when either exchange price is unquoted, the spread exceeds
// maxSpreadPct, or no bookmaker is quoting. Bookmaker ties go to the
// alphabetically first name.
func ComputeEdge(back, lay float64, books map[string]float64, maxSpreadPct float64) (Edge, bool) {
	if !domain.Quoted(back) || !domain.Quoted(lay) {
		return Edge{}, false
	}

	mid := (back + lay) / 2
	spreadPct := (lay - back) / mid * 100
	if spreadPct > maxSpreadPct {
		return Edge{}, false
	}

	book, best := bestBook(books, nil)
	if book == "" {
		return Edge{}, false
	}

	return Edge{
		Mid:       mid,
		SpreadPct: spreadPct,
		Book:      book,
		BestPrice: best,
		Pct:       (best/mid - 1) * 100,
	}, true
}

// bestBook returns the highest quoted price in books. A non-empty only limits
// the search to those bookmakers.
func bestBook(books map[string]float64, only []string) (string, float64) {
	var (
		name string
		best float64
	)
	consider := func(n string, p float64) {
		if !domain.Quoted(p) {
			return
		}
		if p > best || (p == best && n < name) {
			name, best = n, p
		}
	}

	if len(only) > 0 {
		for _, n := range only {
			consider(n, books[n])
		}
		return name, best
	}
	for n, p := range books {
		consider(n, p)
	}
	return name, best
}
