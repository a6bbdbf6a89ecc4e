package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/oddsdesk/internal/config"
	"github.com/alanyoungcy/oddsdesk/internal/notify"
	"github.com/alanyoungcy/oddsdesk/internal/pipeline"
	"github.com/alanyoungcy/oddsdesk/internal/server"
	"github.com/alanyoungcy/oddsdesk/internal/server/handler"
	"github.com/alanyoungcy/oddsdesk/internal/server/middleware"
	"github.com/alanyoungcy/oddsdesk/internal/server/ws"
	"github.com/alanyoungcy/oddsdesk/internal/service"
	"github.com/alanyoungcy/oddsdesk/internal/steam"
)

// BoardMode runs the snapshot and movers pollers, the archive job and the
// HTTP/WS server.
func (a *App) BoardMode(ctx context.Context, deps *Dependencies) error {
	board, runners := a.boardRunners(deps)
	runners = append(runners, a.frontEnd(deps, board, nil)...)
	return a.run(ctx, deps, runners)
}

// AlertsMode runs the value alert cycle and the Telegram command listener.
func (a *App) AlertsMode(ctx context.Context, deps *Dependencies) error {
	_, runners, err := a.alertRunners(deps)
	if err != nil {
		return err
	}
	return a.run(ctx, deps, runners)
}

// FullMode runs everything in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	board, runners := a.boardRunners(deps)
	alerts, alertRunners, err := a.alertRunners(deps)
	if err != nil {
		return err
	}
	runners = append(runners, alertRunners...)
	runners = append(runners, a.frontEnd(deps, board, alerts)...)
	return a.run(ctx, deps, runners)
}

// run announces startup, runs every runner, and reports a failure through
// the notifier before returning it.
func (a *App) run(ctx context.Context, deps *Dependencies, runners []pipeline.Runner) error {
	names := make([]string, 0, len(runners))
	for _, r := range runners {
		names = append(names, r.Name())
	}
	a.logger.InfoContext(ctx, "runners starting", slog.Any("runners", names))

	if deps.Notifier.Enabled() {
		msg := fmt.Sprintf("<b>oddsdesk started</b>\nMode: %s\nSport: %s", a.cfg.Mode, a.cfg.Feed.Sport)
		if err := deps.Notifier.Notify(ctx, notify.EventStatus, "", msg); err != nil {
			a.logger.WarnContext(ctx, "startup notification failed", slog.String("error", err.Error()))
		}
	}

	err := pipeline.NewOrchestrator(a.logger, runners...).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && deps.Notifier.Enabled() {
		notifyCtx := context.WithoutCancel(ctx)
		if nerr := deps.Notifier.Notify(notifyCtx, notify.EventError, "", "<b>oddsdesk stopped</b>\n"+err.Error()); nerr != nil {
			a.logger.WarnContext(ctx, "error notification failed", slog.String("error", nerr.Error()))
		}
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (a *App) boardRunners(deps *Dependencies) (*service.BoardService, []pipeline.Runner) {
	cfg := a.cfg
	eligibility := steam.Eligibility{MinLead: cfg.Steam.MinLead.Duration, MinVolume: cfg.Steam.MinVolume}
	if cfg.Steam.TestMode {
		eligibility.MinVolume = 0
	}
	renderer := &service.Renderer{
		Eligibility:  eligibility,
		MaxSpreadPct: cfg.Steam.MaxSpreadPct,
		PanelSize:    cfg.Steam.PanelSize,
		Window:       cfg.Feed.MoversWindowMinutes,
		Norm:         deps.Normalizer,
	}

	board := service.NewBoardService(deps.Feed, deps.Movers, deps.Engine, deps.BoardCache, deps.SignalBus, renderer,
		service.BoardConfig{
			Sport:               cfg.Feed.Sport,
			Sports:              cfg.Feed.Sports,
			SnapshotInterval:    cfg.Feed.SnapshotInterval.Duration,
			MoversInterval:      cfg.Feed.MoversInterval.Duration,
			MoversWindowMinutes: cfg.Feed.MoversWindowMinutes,
			TickTimeout:         cfg.Feed.TickTimeout.Duration,
			StartLookback:       cfg.Feed.StartLookback.Duration,
			Heartbeat:           cfg.Grouping.Heartbeat.Duration,
			PreMatchOnly:        cfg.Grouping.PreMatchOnly,
			WarmStartMaxAge:     cfg.Feed.WarmStartMaxAge.Duration,
		}, a.logger)

	runners := []pipeline.Runner{board}
	if deps.Archiver != nil {
		runners = append(runners, pipeline.NewArchiver(deps.Archiver, board, cfg.Archive.Cron, a.logger))
	}
	return board, runners
}

func (a *App) alertRunners(deps *Dependencies) (*service.AlertService, []pipeline.Runner, error) {
	cfg := a.cfg
	if deps.Alerts == nil {
		return nil, nil, errors.New("app: alerts need the postgres alert history")
	}
	if !deps.Notifier.Enabled() {
		a.logger.Warn("no notification channel configured; value alerts will be counted but not delivered")
	}

	alerts := service.NewAlertService(deps.Feed, deps.Alerts, deps.LockManager, deps.Notifier, deps.SignalBus,
		service.AlertConfig{
			Mode:      cfg.Mode,
			ScopeMode: cfg.Alerts.ScopeMode,
			Value: steam.ValueConfig{
				MinVolume:        cfg.Alerts.MinVolume,
				MinPrice:         cfg.Alerts.MinPrice,
				MaxSpread:        cfg.Alerts.MaxSpread,
				MinBookOverLay:   cfg.Alerts.MinBookOverLay,
				Commission:       cfg.Alerts.Commission,
				MinEdge:          cfg.Alerts.MinEdge,
				Bookmakers:       cfg.Alerts.Bookmakers,
				RealertEdgeStep:  cfg.Alerts.RealertEdgeStep,
				RealertAfter:     cfg.Alerts.Cooldown.Duration,
				RealertPriceMove: cfg.Alerts.RealertPriceMove,
			},
			Interval:     cfg.Alerts.Interval.Duration,
			TickTimeout:  cfg.Feed.TickTimeout.Duration,
			LockTTL:      cfg.Alerts.LockTTL.Duration,
			StatusWindow: cfg.Alerts.StatusWindow.Duration,
		}, a.logger)

	runners := []pipeline.Runner{alerts}
	if cfg.Alerts.Commands && deps.TelegramBot != nil && cfg.Notify.TelegramChatID != "" {
		listener, err := notify.NewCommandListener(deps.TelegramBot, cfg.Notify.TelegramChatID, alerts.StatusReport, a.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("app: telegram commands: %w", err)
		}
		runners = append(runners, pipeline.RunnerFunc{Label: "telegram_commands", Fn: listener.Run})
	}
	return alerts, runners, nil
}

// frontEnd builds the websocket hub and the HTTP server. alerts may be nil.
func (a *App) frontEnd(deps *Dependencies, board *service.BoardService, alerts *service.AlertService) []pipeline.Runner {
	cfg := a.cfg
	if !cfg.Server.Enabled {
		return nil
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Hello: func() map[string]any {
			st := board.Status()
			return map[string]any{"sport": st.Sport, "generation": st.Generation}
		},
		CheckOrigin: originChecker(cfg.Server.CORSOrigins),
	})

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.Checks, func() any { return board.Status() }, a.logger),
		Board:  handler.NewBoardHandler(board, a.logger),
	}
	if alerts != nil {
		handlers.Alerts = handler.NewAlertHandler(alerts, a.logger)
	}
	if deps.Archiver != nil {
		handlers.Archive = handler.NewArchiveHandler(deps.Archiver, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   cfg.Server.RateLimit,
		RateWindow:  cfg.Server.RateWindow.Duration,
		Entitlement: entitlementConfig(cfg.Entitlement),
	}, handlers, hub, deps.RateLimiter, a.logger)

	return []pipeline.Runner{hub, srv}
}

func entitlementConfig(c config.EntitlementConfig) middleware.EntitlementConfig {
	return middleware.EntitlementConfig{
		Enabled:    c.Enabled,
		KeyHashes:  c.KeyHashes,
		FreeViews:  c.FreeViews,
		FreeWindow: c.FreeWindow.Duration,
	}
}

// originChecker accepts websocket upgrades from the CORS origins. Requests
// without an Origin header (non-browser clients) are accepted.
func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	allowAll := len(origins) == 0
	for _, o := range origins {
		o = strings.ToLower(strings.TrimSpace(o))
		allowAll = allowAll || o == "*"
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return allowAll || origin == "" || allowed[strings.ToLower(origin)]
	}
}
