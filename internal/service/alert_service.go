package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/notify"
	"github.com/alanyoungcy/oddsdesk/internal/pipeline"
	"github.com/alanyoungcy/oddsdesk/internal/steam"
)

const (
	// AlertsStream is the Redis stream sent alerts are appended to.
	AlertsStream = "alerts:sent"
	alertLockKey = "alerts:cycle"
)

// Notifier delivers a message for an event type.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// AlertConfig holds the value-alert cadence and gates.
type AlertConfig struct {
	Mode         string
	ScopeMode    string
	Value        steam.ValueConfig
	Interval     time.Duration
	TickTimeout  time.Duration
	LockTTL      time.Duration
	StatusWindow time.Duration
}

// CycleResult counts what one alert cycle did.
type CycleResult struct {
	Rows       int  `json:"rows"`
	Signals    int  `json:"signals"`
	Suppressed int  `json:"suppressed"`
	Sent       int  `json:"sent"`
	Failed     int  `json:"failed"`
	Skipped    bool `json:"skipped"`
}

// AlertStatus is the /status report.
type AlertStatus struct {
	Mode      string    `json:"mode"`
	ScopeMode string    `json:"scope_mode"`
	Window    string    `json:"window"`
	Alerts    int64     `json:"alerts"`
	UTC       time.Time `json:"utc"`
}

// AlertService scans open pre-match rows for bookmaker prices that beat the
// exchange lay and notifies once per runner until the price story changes.
type AlertService struct {
	feed     domain.FeedStore
	history  domain.AlertStore
	locks    domain.LockManager
	notifier Notifier
	bus      domain.SignalBus
	cfg      AlertConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewAlertService creates an AlertService. locks and bus may be nil; without
// a lock manager every replica runs every cycle.
func NewAlertService(
	feed domain.FeedStore,
	history domain.AlertStore,
	locks domain.LockManager,
	notifier Notifier,
	bus domain.SignalBus,
	cfg AlertConfig,
	logger *slog.Logger,
) *AlertService {
	return &AlertService{
		feed:     feed,
		history:  history,
		locks:    locks,
		notifier: notifier,
		bus:      bus,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "alerts")),
		now:      time.Now,
	}
}

// Name returns "alerts".
func (a *AlertService) Name() string { return "alerts" }

// Run scans every Interval until ctx is cancelled.
func (a *AlertService) Run(ctx context.Context) error {
	p := pipeline.NewPoller("alerts", a.cfg.Interval, a.cfg.TickTimeout, func(ctx context.Context) error {
		_, err := a.RunCycle(ctx)
		return err
	}, a.logger)
	return p.Run(ctx)
}

// RunCycle performs one scan. When another replica holds the cycle lock the
// scan is skipped.
func (a *AlertService) RunCycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult

	if a.locks != nil {
		unlock, err := a.locks.Acquire(ctx, alertLockKey, a.cfg.LockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			res.Skipped = true
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("alert_service: lock: %w", err)
		}
		defer unlock()
	}

	now := a.now()
	rows, err := a.feed.ListSelections(ctx, domain.SnapshotQuery{
		StartAfter:   now,
		OpenOnly:     true,
		PreMatchOnly: true,
	})
	if err != nil {
		return res, &domain.FetchError{Source: "alerts", Err: err}
	}
	res.Rows = len(rows)

	for _, r := range rows {
		sig, ok := steam.EvaluateValue(r, a.cfg.Value, now)
		if !ok {
			continue
		}
		res.Signals++

		prev, err := a.lastAlert(ctx, sig.Key)
		if err != nil {
			return res, err
		}
		if !steam.ShouldAlert(sig, prev, a.cfg.Value, now) {
			res.Suppressed++
			continue
		}

		if err := a.notifier.Notify(ctx, notify.EventValueAlert, "", FormatValueAlert(sig)); err != nil {
			res.Failed++
			a.logger.WarnContext(ctx, "value alert not delivered",
				slog.String("key", sig.Key),
				slog.String("error", err.Error()),
			)
			continue
		}

		rec := domain.AlertRecord{
			RunnerKey: sig.Key,
			SentAt:    now,
			Edge:      sig.Edge,
			BookPrice: sig.BookPrice,
			LayPrice:  sig.Lay,
		}
		if err := a.history.Record(ctx, rec); err != nil {
			return res, fmt.Errorf("alert_service: record %s: %w", sig.Key, err)
		}
		a.appendStream(ctx, sig)
		res.Sent++
	}

	if res.Sent > 0 || res.Failed > 0 {
		a.logger.InfoContext(ctx, "alert cycle",
			slog.Int("rows", res.Rows),
			slog.Int("signals", res.Signals),
			slog.Int("sent", res.Sent),
			slog.Int("failed", res.Failed),
		)
	}
	return res, nil
}

func (a *AlertService) lastAlert(ctx context.Context, key string) (*domain.AlertRecord, error) {
	rec, err := a.history.Last(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("alert_service: history %s: %w", key, err)
	}
	return &rec, nil
}

func (a *AlertService) appendStream(ctx context.Context, sig steam.ValueSignal) {
	if a.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"key":        sig.Key,
		"runner":     sig.Row.RunnerName,
		"event":      sig.Row.EventName,
		"book":       sig.Book,
		"book_price": sig.BookPrice,
		"back":       sig.Back,
		"lay":        sig.Lay,
		"edge":       sig.Edge,
		"sent_at":    a.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := a.bus.StreamAppend(ctx, AlertsStream, payload); err != nil {
		a.logger.WarnContext(ctx, "alert stream append failed", slog.String("error", err.Error()))
	}
}

// Status counts alerts sent within the status window.
func (a *AlertService) Status(ctx context.Context) (AlertStatus, error) {
	now := a.now().UTC()
	n, err := a.history.CountSince(ctx, now.Add(-a.cfg.StatusWindow))
	if err != nil {
		return AlertStatus{}, fmt.Errorf("alert_service: status: %w", err)
	}
	return AlertStatus{
		Mode:      a.cfg.Mode,
		ScopeMode: a.cfg.ScopeMode,
		Window:    windowLabel(a.cfg.StatusWindow),
		Alerts:    n,
		UTC:       now,
	}, nil
}

// StatusReport renders Status as Telegram HTML.
func (a *AlertService) StatusReport(ctx context.Context) (string, error) {
	st, err := a.Status(ctx)
	if err != nil {
		return "", err
	}
	return FormatStatus(st), nil
}
