package steam

import (
	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/normalize"
)

// Overlay cross-indexes movers by event and runner name so the board can
// attach badges.
type Overlay struct {
	// Events is the set of event names carrying at least one mover.
	Events map[string]struct{}
	// Runners maps a runner name to its mover. When a name appears more than
	// once the first mover wins.
	Runners map[string]domain.Mover

	norm    *normalize.Normalizer
	byEvent map[eventRunner]domain.Mover
	byKey   map[string]domain.Mover
}

type eventRunner struct {
	event  string
	runner string
}

// BuildOverlay indexes movers. A nil normalizer uses the default table.
func BuildOverlay(movers []domain.Mover, norm *normalize.Normalizer) *Overlay {
	if norm == nil {
		norm = normalize.Default()
	}
	o := &Overlay{
		Events:  make(map[string]struct{}, len(movers)),
		Runners: make(map[string]domain.Mover, len(movers)),
		norm:    norm,
		byEvent: make(map[eventRunner]domain.Mover, len(movers)),
		byKey:   make(map[string]domain.Mover, len(movers)),
	}
	for _, m := range movers {
		m.Label = LabelOf(m)
		if m.EventName != "" {
			o.Events[m.EventName] = struct{}{}
		}
		if _, ok := o.Runners[m.RunnerName]; !ok {
			o.Runners[m.RunnerName] = m
		}
		key := norm.Normalize(m.RunnerName)
		er := eventRunner{event: norm.Normalize(m.EventName), runner: key}
		if _, ok := o.byEvent[er]; !ok {
			o.byEvent[er] = m
		}
		if _, ok := o.byKey[key]; !ok && key != "" {
			o.byKey[key] = m
		}
	}
	return o
}

// Flagged reports whether event has a mover.
func (o *Overlay) Flagged(event string) bool {
	if o == nil {
		return false
	}
	_, ok := o.Events[event]
	return ok
}

// Lookup finds the mover for runner in event. A mover recorded against the
// same event is preferred; otherwise the runner name alone decides, first
// exactly and then by normalized key.
func (o *Overlay) Lookup(event, runner string) (domain.Mover, bool) {
	if o == nil {
		return domain.Mover{}, false
	}
	key := o.norm.Normalize(runner)
	if m, ok := o.byEvent[eventRunner{event: o.norm.Normalize(event), runner: key}]; ok {
		return m, true
	}
	if m, ok := o.Runners[runner]; ok {
		return m, true
	}
	m, ok := o.byKey[key]
	return m, ok
}

// Len returns the number of indexed runners.
func (o *Overlay) Len() int {
	if o == nil {
		return 0
	}
	return len(o.Runners)
}
