package supabase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// flexFloat unmarshals from a JSON number, a numeric string, or null. PostgREST
// renders numeric columns as strings, double precision as numbers. "NaN" and
// infinities decode as 0, the no-quote value.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*f = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("flexFloat: %s is neither number nor string", data)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("flexFloat: %w", err)
	}
	*f = flexFloat(domain.Finite(n))
	return nil
}

// flexBool unmarshals from JSON bool, string ("true"/"false"/"1"/"0") or null.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*f = false
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexString accepts a JSON string or number, so bigint ids decode either way.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flexString: %s is neither string nor number", data)
	}
	*f = flexString(n.String())
	return nil
}

// timeLayouts are tried in order when parsing timestamps. Zone-less layouts
// are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseTime parses s with the first matching layout. An empty string is the
// zero time.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// --------------------------------------------------------------------------
// PostgREST DTOs
// --------------------------------------------------------------------------

// APIFeedRow is one market_feed row as PostgREST returns it.
type APIFeedRow struct {
	ID            flexString `json:"id"`
	MarketID      flexString `json:"market_id"`
	EventName     string     `json:"event_name"`
	Competition   *string    `json:"competition"`
	Sport         string     `json:"sport"`
	RunnerName    string     `json:"runner_name"`
	StartTime     *string    `json:"start_time"`
	Volume        flexFloat  `json:"volume"`
	InPlay        flexBool   `json:"in_play"`
	MarketStatus  string     `json:"market_status"`
	LastUpdated   *string    `json:"last_updated"`
	BackPrice     flexFloat  `json:"back_price"`
	LayPrice      flexFloat  `json:"lay_price"`
	PricePinnacle *flexFloat `json:"price_pinnacle"`
	PriceBet365   *flexFloat `json:"price_bet365"`
	PricePaddy    *flexFloat `json:"price_paddy"`
}

// ToDomain converts the row, reporting a *domain.MalformedRowError when a
// timestamp cannot be parsed or a required field is missing.
func (r APIFeedRow) ToDomain() (domain.SelectionRow, error) {
	out := domain.SelectionRow{
		ID:           string(r.ID),
		MarketID:     string(r.MarketID),
		EventName:    r.EventName,
		Sport:        r.Sport,
		RunnerName:   r.RunnerName,
		Volume:       float64(r.Volume),
		InPlay:       bool(r.InPlay),
		MarketStatus: domain.MarketStatus(strings.ToUpper(strings.TrimSpace(r.MarketStatus))),
		ExchangeBack: float64(r.BackPrice),
		ExchangeLay:  float64(r.LayPrice),
	}
	if r.Competition != nil {
		out.Competition = *r.Competition
	}

	if r.StartTime != nil {
		t, err := parseTime(*r.StartTime)
		if err != nil {
			return domain.SelectionRow{}, &domain.MalformedRowError{RowID: out.ID, Field: "start_time", Reason: "unparseable", Err: err}
		}
		out.StartTime = t
	}
	if r.LastUpdated != nil {
		t, err := parseTime(*r.LastUpdated)
		if err != nil {
			return domain.SelectionRow{}, &domain.MalformedRowError{RowID: out.ID, Field: "last_updated", Reason: "unparseable", Err: err}
		}
		out.LastUpdated = t
	}

	books := make(map[string]float64, 3)
	for name, p := range map[string]*flexFloat{
		domain.BookmakerPinnacle:   r.PricePinnacle,
		domain.BookmakerBet365:     r.PriceBet365,
		domain.BookmakerPaddyPower: r.PricePaddy,
	} {
		if p != nil && *p != 0 {
			books[name] = float64(*p)
		}
	}
	if len(books) > 0 {
		out.BookmakerPrices = books
	}

	if err := out.Validate(); err != nil {
		return domain.SelectionRow{}, err
	}
	return out, nil
}

// APIMover is one get_steamers result row.
type APIMover struct {
	SelectionKey flexString `json:"selection_key"`
	RunnerName   string     `json:"runner_name"`
	EventName    string     `json:"event_name"`
	Sport        string     `json:"sport"`
	BackNow      flexFloat  `json:"back_now"`
	LayNow       flexFloat  `json:"lay_now"`
	BackThen     flexFloat  `json:"back_then"`
	LayThen      flexFloat  `json:"lay_then"`
	PctMove      flexFloat  `json:"pct_move"`
	VolDelta     flexFloat  `json:"vol_delta"`
	Spread       flexFloat  `json:"spread"`
	Label        string     `json:"label"`
	Status       string     `json:"status"`
}

// ToDomain converts the mover. Labels are upper-cased; a blank label stays
// blank for the classifier to derive.
func (m APIMover) ToDomain() domain.Mover {
	return domain.Mover{
		SelectionKey: string(m.SelectionKey),
		RunnerName:   m.RunnerName,
		EventName:    m.EventName,
		Sport:        m.Sport,
		BackNow:      float64(m.BackNow),
		LayNow:       float64(m.LayNow),
		BackThen:     float64(m.BackThen),
		LayThen:      float64(m.LayThen),
		PctMove:      float64(m.PctMove),
		VolDelta:     float64(m.VolDelta),
		Spread:       float64(m.Spread),
		Label:        domain.MoverLabel(strings.ToUpper(strings.TrimSpace(m.Label))),
		Status:       m.Status,
	}
}

// DecodeSelections decodes a PostgREST array of market_feed rows. Rows that
// fail to decode or validate are skipped and returned as errors; the rest
// decode normally. Only a body that is not a JSON array fails outright.
func DecodeSelections(body []byte) ([]domain.SelectionRow, []error, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, fmt.Errorf("supabase: decode market_feed: %w", err)
	}

	rows := make([]domain.SelectionRow, 0, len(raw))
	var dropped []error
	for i, msg := range raw {
		var api APIFeedRow
		if err := json.Unmarshal(msg, &api); err != nil {
			dropped = append(dropped, &domain.MalformedRowError{
				RowID:  rowIDHint(msg, i),
				Field:  "row",
				Reason: "undecodable",
				Err:    err,
			})
			continue
		}
		r, err := api.ToDomain()
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		rows = append(rows, r)
	}
	return rows, dropped, nil
}

// rowIDHint extracts whatever id a broken row carries, falling back to its
// array index.
func rowIDHint(msg json.RawMessage, index int) string {
	var probe struct {
		ID flexString `json:"id"`
	}
	if err := json.Unmarshal(msg, &probe); err == nil && probe.ID != "" {
		return string(probe.ID)
	}
	return "#" + strconv.Itoa(index)
}
