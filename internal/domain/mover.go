package domain

// MoverLabel classifies a price move over the lookback window.
type MoverLabel string

const (
	// LabelSteamer means the price shortened.
	LabelSteamer MoverLabel = "STEAMER"
	// LabelDrifter means the price lengthened.
	LabelDrifter MoverLabel = "DRIFTER"
)

// Mover is a precomputed current-vs-window price comparison for one selection.
type Mover struct {
	SelectionKey string     `json:"selection_key"`
	RunnerName   string     `json:"runner_name"`
	EventName    string     `json:"event_name"`
	Sport        string     `json:"sport"`
	BackNow      float64    `json:"back_now"`
	LayNow       float64    `json:"lay_now"`
	BackThen     float64    `json:"back_then"`
	LayThen      float64    `json:"lay_then"`
	PctMove      float64    `json:"pct_move"`
	VolDelta     float64    `json:"vol_delta"`
	Spread       float64    `json:"spread"`
	Label        MoverLabel `json:"label"`
	Status       string     `json:"status"`
}
