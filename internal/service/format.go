package service

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/steam"
)

var bookmakerLabels = map[string]string{
	domain.BookmakerPinnacle:   "Pinnacle",
	domain.BookmakerBet365:     "Bet365",
	domain.BookmakerPaddyPower: "PaddyPower",
}

// BookmakerLabel returns the display name for a bookmaker key.
func BookmakerLabel(key string) string {
	if l, ok := bookmakerLabels[key]; ok {
		return l
	}
	return key
}

func pct2(fraction float64) string {
	if domain.Finite(fraction) != fraction {
		return steam.NoQuote
	}
	return decimal.NewFromFloat(fraction).Mul(decimal.NewFromInt(100)).StringFixed(2)
}

// FormatValueAlert renders a value signal as Telegram HTML.
func FormatValueAlert(sig steam.ValueSignal) string {
	r := sig.Row
	var b strings.Builder
	fmt.Fprintf(&b, "🔥 <b>VALUE: %s</b>\n", html.EscapeString(r.RunnerName))
	if r.EventName != "" {
		b.WriteString(html.EscapeString(r.EventName))
		if r.Sport != "" {
			fmt.Fprintf(&b, " (%s)", html.EscapeString(r.Sport))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "🚀 <b>Gap: +%s%%</b> (Edge %s%%)\n", pct2(sig.Gap), pct2(sig.Edge))
	fmt.Fprintf(&b, "🏦 %s: <b>%s</b>\n", BookmakerLabel(sig.Book), steam.FormatPrice(sig.BookPrice))
	fmt.Fprintf(&b, "🔄 Exchange: <b>%s / %s</b>\n", steam.FormatPrice(sig.Back), steam.FormatPrice(sig.Lay))
	fmt.Fprintf(&b, "💰 Vol: £%d", int64(r.Volume))
	if !r.StartTime.IsZero() {
		fmt.Fprintf(&b, "\n⏰ %s", r.StartTime.UTC().Format("Mon 02 Jan 15:04 UTC"))
	}
	return b.String()
}

// FormatStatus renders the status report as Telegram HTML.
func FormatStatus(st AlertStatus) string {
	var b strings.Builder
	b.WriteString("<b>🤖 oddsdesk status</b>\n")
	fmt.Fprintf(&b, "✅ Mode: %s", html.EscapeString(st.Mode))
	if st.ScopeMode != "" {
		fmt.Fprintf(&b, " / %s", html.EscapeString(st.ScopeMode))
	}
	fmt.Fprintf(&b, "\n📊 Alerts (%s): %d\n", st.Window, st.Alerts)
	fmt.Fprintf(&b, "🕒 UTC: %s", st.UTC.UTC().Format(time.TimeOnly))
	return b.String()
}

func windowLabel(d time.Duration) string {
	switch {
	case d > 0 && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d > 0 && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return d.String()
	}
}
