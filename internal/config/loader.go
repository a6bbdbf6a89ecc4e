package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ODDSDESK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ODDSDESK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). Unprefixed aliases are read first so the ODDSDESK_* form wins when
// both are set.
func applyEnvOverrides(cfg *Config) {
	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.DSN, "ODDSDESK_SUPABASE_DSN")
	setStr(&cfg.Supabase.Host, "ODDSDESK_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "ODDSDESK_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "ODDSDESK_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "ODDSDESK_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "ODDSDESK_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "ODDSDESK_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "ODDSDESK_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "ODDSDESK_SUPABASE_POOL_MIN_CONNS")
	setStr(&cfg.Supabase.ApiURL, "SUPABASE_URL") // same variable the dashboard used
	setStr(&cfg.Supabase.ApiURL, "ODDSDESK_SUPABASE_API_URL")
	setStr(&cfg.Supabase.ApiKey, "SUPABASE_KEY")
	setStr(&cfg.Supabase.ApiKey, "ODDSDESK_SUPABASE_API_KEY")
	setDuration(&cfg.Supabase.RequestTimeout, "ODDSDESK_SUPABASE_REQUEST_TIMEOUT")
	setBool(&cfg.Supabase.RunMigrations, "ODDSDESK_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ODDSDESK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ODDSDESK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ODDSDESK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ODDSDESK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ODDSDESK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ODDSDESK_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.CacheTTL, "ODDSDESK_REDIS_CACHE_TTL")
	setInt64(&cfg.Redis.StreamMaxLen, "ODDSDESK_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ODDSDESK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ODDSDESK_S3_REGION")
	setStr(&cfg.S3.Bucket, "ODDSDESK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ODDSDESK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ODDSDESK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ODDSDESK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ODDSDESK_S3_FORCE_PATH_STYLE")

	// ── Feed ──
	setStr(&cfg.Feed.Source, "ODDSDESK_FEED_SOURCE")
	setStr(&cfg.Feed.Sport, "ODDSDESK_FEED_SPORT")
	setStringSlice(&cfg.Feed.Sports, "ODDSDESK_FEED_SPORTS")
	setDuration(&cfg.Feed.SnapshotInterval, "ODDSDESK_FEED_SNAPSHOT_INTERVAL")
	setDuration(&cfg.Feed.MoversInterval, "ODDSDESK_FEED_MOVERS_INTERVAL")
	setInt(&cfg.Feed.MoversWindowMinutes, "ODDSDESK_FEED_MOVERS_WINDOW_MINUTES")
	setDuration(&cfg.Feed.TickTimeout, "ODDSDESK_FEED_TICK_TIMEOUT")
	setDuration(&cfg.Feed.StartLookback, "ODDSDESK_FEED_START_LOOKBACK")
	setDuration(&cfg.Feed.WarmStartMaxAge, "ODDSDESK_FEED_WARM_START_MAX_AGE")

	// ── Grouping ──
	setDuration(&cfg.Grouping.Heartbeat, "ODDSDESK_GROUPING_HEARTBEAT")
	setBool(&cfg.Grouping.PreMatchOnly, "ODDSDESK_GROUPING_PRE_MATCH_ONLY")
	setStringSlice(&cfg.Grouping.TwoWaySports, "ODDSDESK_GROUPING_TWO_WAY_SPORTS")
	setStr(&cfg.Grouping.DefaultCompetition, "ODDSDESK_GROUPING_DEFAULT_COMPETITION")

	// ── Normalizer ──
	setStr(&cfg.Normalizer.TablePath, "ODDSDESK_NORMALIZER_TABLE_PATH")

	// ── Steam ──
	setDuration(&cfg.Steam.MinLead, "ODDSDESK_STEAM_MIN_LEAD")
	setFloat64(&cfg.Steam.MinVolume, "ODDSDESK_STEAM_MIN_VOLUME")
	setBool(&cfg.Steam.TestMode, "ODDSDESK_STEAM_TEST_MODE")
	setFloat64(&cfg.Steam.MaxSpreadPct, "ODDSDESK_STEAM_MAX_SPREAD_PCT")
	setInt(&cfg.Steam.PanelSize, "ODDSDESK_STEAM_PANEL_SIZE")

	// ── Alerts ──
	setStr(&cfg.Alerts.ScopeMode, "SCOPE_MODE")
	setStr(&cfg.Alerts.ScopeMode, "ODDSDESK_ALERTS_SCOPE_MODE")
	setDuration(&cfg.Alerts.Interval, "ODDSDESK_ALERTS_INTERVAL")
	setFloat64(&cfg.Alerts.MinVolume, "ODDSDESK_ALERTS_MIN_VOLUME")
	setFloat64(&cfg.Alerts.MinPrice, "ODDSDESK_ALERTS_MIN_PRICE")
	setFloat64(&cfg.Alerts.MaxSpread, "ODDSDESK_ALERTS_MAX_SPREAD")
	setFloat64(&cfg.Alerts.MinBookOverLay, "ODDSDESK_ALERTS_MIN_BOOK_OVER_LAY")
	setFloat64(&cfg.Alerts.Commission, "ODDSDESK_ALERTS_COMMISSION")
	setFloat64(&cfg.Alerts.MinEdge, "ODDSDESK_ALERTS_MIN_EDGE")
	setStringSlice(&cfg.Alerts.Bookmakers, "ODDSDESK_ALERTS_BOOKMAKERS")
	setDuration(&cfg.Alerts.Cooldown, "ODDSDESK_ALERTS_COOLDOWN")
	setFloat64(&cfg.Alerts.RealertEdgeStep, "ODDSDESK_ALERTS_REALERT_EDGE_STEP")
	setFloat64(&cfg.Alerts.RealertPriceMove, "ODDSDESK_ALERTS_REALERT_PRICE_MOVE")
	setDuration(&cfg.Alerts.StatusWindow, "ODDSDESK_ALERTS_STATUS_WINDOW")
	setDuration(&cfg.Alerts.LockTTL, "ODDSDESK_ALERTS_LOCK_TTL")
	setBool(&cfg.Alerts.Commands, "ODDSDESK_ALERTS_COMMANDS")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ODDSDESK_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "ODDSDESK_ARCHIVE_CRON")
	setStr(&cfg.Archive.Prefix, "ODDSDESK_ARCHIVE_PREFIX")

	// ── Entitlement ──
	setBool(&cfg.Entitlement.Enabled, "ODDSDESK_ENTITLEMENT_ENABLED")
	setStringSlice(&cfg.Entitlement.KeyHashes, "ODDSDESK_ENTITLEMENT_KEY_HASHES")
	setInt(&cfg.Entitlement.FreeViews, "ODDSDESK_ENTITLEMENT_FREE_VIEWS")
	setDuration(&cfg.Entitlement.FreeWindow, "ODDSDESK_ENTITLEMENT_FREE_WINDOW")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ODDSDESK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ODDSDESK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ODDSDESK_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "ODDSDESK_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "ODDSDESK_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TELEGRAM_BOT_TOKEN")
	setStr(&cfg.Notify.TelegramToken, "ODDSDESK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.TelegramChatID, "ODDSDESK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ODDSDESK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ODDSDESK_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ODDSDESK_MODE")
	setStr(&cfg.LogLevel, "ODDSDESK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
