package grouping

import (
	"regexp"
	"strings"
)

// DefaultTwoWaySports lists the sport-name tokens whose markets are
// moneyline-style with exactly two possible winners.
var DefaultTwoWaySports = []string{
	"american football",
	"nfl",
	"ncaa",
	"basketball",
	"nba",
	"mma",
	"ufc",
	"mixed martial arts",
}

// versus matches " v ", " @ ", " vs " and " vs. " in any case.
var versus = regexp.MustCompile(`(?i)\s+(?:vs\.?|v|@)\s+`)

// Participants splits an event name such as "Miami Heat v Boston Celtics" into
// its two sides. It reports false unless exactly two non-empty sides result.
func Participants(eventName string) ([]string, bool) {
	parts := versus.Split(strings.TrimSpace(eventName), -1)
	if len(parts) != 2 {
		return nil, false
	}
	home := strings.TrimSpace(parts[0])
	away := strings.TrimSpace(parts[1])
	if home == "" || away == "" {
		return nil, false
	}
	return []string{home, away}, true
}

// sportMatcher recognises two-way sports by substring.
type sportMatcher struct {
	tokens []string
}

func newSportMatcher(tokens []string) sportMatcher {
	clean := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			clean = append(clean, t)
		}
	}
	return sportMatcher{tokens: clean}
}

func (m sportMatcher) twoWay(sport string) bool {
	s := strings.ToLower(sport)
	if s == "" {
		return false
	}
	for _, t := range m.tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
