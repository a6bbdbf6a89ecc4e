// Package normalize canonicalizes free-text runner and participant names so
// that exchange and bookmaker spellings of the same name compare equal.
package normalize

import "strings"

// Substitution expands one known abbreviation. Pattern and Replacement are
// matched against the lowercased, punctuation-stripped name before whitespace
// is removed, so both are written with spaces ("ny giants").
type Substitution struct {
	Pattern     string `toml:"pattern" yaml:"pattern"`
	Replacement string `toml:"replacement" yaml:"replacement"`
}

// DefaultSubstitutions is the built-in abbreviation table.
var DefaultSubstitutions = []Substitution{
	{Pattern: "ny giants", Replacement: "new york giants"},
	{Pattern: "ny jets", Replacement: "new york jets"},
	{Pattern: "la rams", Replacement: "los angeles rams"},
	{Pattern: "la chargers", Replacement: "los angeles chargers"},
	{Pattern: "man utd", Replacement: "manchester united"},
	{Pattern: "alex volkanovski", Replacement: "alexander volkanovski"},
	{Pattern: "cameron smith", Replacement: "cam smith"},
}

var punctuation = strings.NewReplacer(
	".", "",
	"'", "",
	"’", "",
	"-", " ",
)

// Normalizer applies an ordered substitution table. It is immutable after
// construction and safe for concurrent use.
type Normalizer struct {
	subs []Substitution
}

// New returns a Normalizer for the given table. Entries are applied in slice
// order; entries with an empty pattern are ignored.
func New(subs []Substitution) *Normalizer {
	clean := make([]Substitution, 0, len(subs))
	for _, s := range subs {
		p := prepare(s.Pattern)
		if p == "" {
			continue
		}
		clean = append(clean, Substitution{Pattern: p, Replacement: prepare(s.Replacement)})
	}
	return &Normalizer{subs: clean}
}

// Default returns a Normalizer using DefaultSubstitutions.
func Default() *Normalizer {
	return New(DefaultSubstitutions)
}

// Substitutions returns a copy of the effective table.
func (n *Normalizer) Substitutions() []Substitution {
	out := make([]Substitution, len(n.subs))
	copy(out, n.subs)
	return out
}

// Normalize returns the matching key for name. The key is never displayed.
func (n *Normalizer) Normalize(name string) string {
	s := prepare(name)
	if s == "" {
		return ""
	}
	for _, sub := range n.subs {
		s = strings.ReplaceAll(s, sub.Pattern, sub.Replacement)
	}
	return strings.Join(strings.Fields(s), "")
}

// Similar reports whether a and b name the same participant: their keys are
// equal or one contains the other. An empty key only matches another empty key,
// unlike a plain substring test where "" is contained in everything.
func (n *Normalizer) Similar(a, b string) bool {
	ka, kb := n.Normalize(a), n.Normalize(b)
	if ka == kb {
		return true
	}
	if ka == "" || kb == "" {
		return false
	}
	return strings.Contains(ka, kb) || strings.Contains(kb, ka)
}

// prepare runs steps 1-4: lowercase, strip periods and apostrophes, hyphens to
// spaces, trim.
func prepare(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(punctuation.Replace(strings.ToLower(s)))
}
