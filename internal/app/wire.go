package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	s3blob "github.com/alanyoungcy/oddsdesk/internal/blob/s3"
	"github.com/alanyoungcy/oddsdesk/internal/cache/redis"
	"github.com/alanyoungcy/oddsdesk/internal/config"
	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/grouping"
	"github.com/alanyoungcy/oddsdesk/internal/normalize"
	"github.com/alanyoungcy/oddsdesk/internal/notify"
	"github.com/alanyoungcy/oddsdesk/internal/platform/supabase"
	"github.com/alanyoungcy/oddsdesk/internal/server/handler"
	"github.com/alanyoungcy/oddsdesk/internal/store/postgres"
)

// Dependencies bundles everything the modes need. Optional parts are nil when
// the configuration does not call for them.
type Dependencies struct {
	// Feed and history
	Feed   domain.FeedStore
	Movers domain.MoverStore
	Alerts domain.AlertStore

	// Redis
	BoardCache  domain.BoardCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Board archive; nil unless archive.enabled
	Archiver *s3blob.BoardArchiver

	// Grouping
	Normalizer *normalize.Normalizer
	Engine     *grouping.Engine

	// Notifications
	Notifier    *notify.Notifier
	TelegramBot *tgbotapi.BotAPI

	// Health probes by dependency name
	Checks map[string]handler.HealthCheck
}

// Wire builds the dependencies for cfg and returns them with a cleanup
// function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Checks: make(map[string]handler.HealthCheck)}

	// --- Name normalization and grouping ---
	norm, err := buildNormalizer(cfg.Normalizer)
	if err != nil {
		return fail(fmt.Errorf("wire: normalizer: %w", err))
	}
	deps.Normalizer = norm
	deps.Engine = grouping.NewEngine(norm,
		grouping.WithTwoWaySports(cfg.Grouping.TwoWaySports),
		grouping.WithDefaultCompetition(cfg.Grouping.DefaultCompetition),
	)

	// --- PostgreSQL ---
	if cfg.NeedsPostgres() {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)
		deps.Checks["postgres"] = pg.Health

		if cfg.Supabase.RunMigrations {
			applied, err := pg.RunMigrations(ctx)
			if err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
			if len(applied) > 0 {
				logger.InfoContext(ctx, "migrations applied", slog.Any("files", applied))
			}
		}

		pool := pg.Pool()
		deps.Alerts = postgres.NewAlertStore(pool)
		if cfg.Feed.Source == "postgres" {
			deps.Feed = postgres.NewFeedStore(pool)
			deps.Movers = postgres.NewMoverStore(pool)
		}
	}

	// --- Supabase REST ---
	if cfg.Feed.Source == "rest" {
		rest := supabase.NewClient(cfg.Supabase.ApiURL, cfg.Supabase.ApiKey, cfg.Supabase.RequestTimeout.Duration, logger)
		deps.Feed = rest
		deps.Movers = rest
	}

	// --- Redis ---
	rc, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: redis: %w", err))
	}
	closers = append(closers, func() { _ = rc.Close() })
	deps.Checks["redis"] = rc.Health

	deps.BoardCache = redis.NewBoardCache(rc, cfg.Redis.CacheTTL.Duration)
	deps.RateLimiter = redis.NewRateLimiter(rc)
	deps.LockManager = redis.NewLockManager(rc)
	deps.SignalBus = redis.NewSignalBus(rc, cfg.Redis.StreamMaxLen)

	// --- S3 board archive ---
	if cfg.Archive.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Checks["s3"] = sc.Health
		deps.Archiver = s3blob.NewBoardArchiver(s3blob.NewWriter(sc), s3blob.NewReader(sc), cfg.Archive.Prefix)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" {
		bot, err := notify.NewTelegramBot(cfg.Notify.TelegramToken, "")
		if err != nil {
			return fail(fmt.Errorf("wire: telegram: %w", err))
		}
		deps.TelegramBot = bot
		if cfg.Notify.TelegramChatID != "" {
			sender, err := notify.NewTelegramSender(bot, cfg.Notify.TelegramChatID)
			if err != nil {
				return fail(fmt.Errorf("wire: telegram: %w", err))
			}
			senders = append(senders, sender)
		}
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// buildNormalizer layers the inline config entries and then the external
// table file over the built-in substitutions.
func buildNormalizer(cfg config.NormalizerConfig) (*normalize.Normalizer, error) {
	subs := normalize.DefaultSubstitutions
	if len(cfg.Substitutions) > 0 {
		inline := make([]normalize.Substitution, 0, len(cfg.Substitutions))
		for _, s := range cfg.Substitutions {
			inline = append(inline, normalize.Substitution{Pattern: s.Pattern, Replacement: s.Replacement})
		}
		subs = normalize.Merge(subs, inline)
	}
	if path := strings.TrimSpace(cfg.TablePath); path != "" {
		table, err := normalize.LoadTable(path)
		if err != nil {
			return nil, err
		}
		subs = normalize.Merge(subs, table)
	}
	return normalize.New(subs), nil
}
