// Package config defines the top-level configuration for the odds desk and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ODDSDESK_* environment variables.
type Config struct {
	Supabase    SupabaseConfig    `toml:"supabase"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Feed        FeedConfig        `toml:"feed"`
	Grouping    GroupingConfig    `toml:"grouping"`
	Normalizer  NormalizerConfig  `toml:"normalizer"`
	Steam       SteamConfig       `toml:"steam"`
	Alerts      AlertsConfig      `toml:"alerts"`
	Archive     ArchiveConfig     `toml:"archive"`
	Entitlement EntitlementConfig `toml:"entitlement"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters. ApiURL and
// ApiKey are used by the REST feed source.
type SupabaseConfig struct {
	DSN            string   `toml:"dsn"`
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	Database       string   `toml:"database"`
	User           string   `toml:"user"`
	Password       string   `toml:"password"`
	SSLMode        string   `toml:"ssl_mode"`
	PoolMaxConns   int      `toml:"pool_max_conns"`
	PoolMinConns   int      `toml:"pool_min_conns"`
	ApiURL         string   `toml:"api_url"`
	ApiKey         string   `toml:"api_key"`
	RequestTimeout duration `toml:"request_timeout"`
	RunMigrations  bool     `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	CacheTTL     duration `toml:"cache_ttl"`
	StreamMaxLen int64    `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// FeedConfig controls where snapshots and movers come from and how often.
type FeedConfig struct {
	// Source is "postgres" (direct pgx) or "rest" (Supabase PostgREST).
	Source string `toml:"source"`
	// Sport is the sport shown at startup.
	Sport               string   `toml:"sport"`
	Sports              []string `toml:"sports"`
	SnapshotInterval    duration `toml:"snapshot_interval"`
	MoversInterval      duration `toml:"movers_interval"`
	MoversWindowMinutes int      `toml:"movers_window_minutes"`
	TickTimeout         duration `toml:"tick_timeout"`
	StartLookback       duration `toml:"start_lookback"`
	WarmStartMaxAge     duration `toml:"warm_start_max_age"`
}

// GroupingConfig holds the staleness filter and pruning parameters.
type GroupingConfig struct {
	Heartbeat          duration `toml:"heartbeat"`
	PreMatchOnly       bool     `toml:"pre_match_only"`
	TwoWaySports       []string `toml:"two_way_sports"`
	DefaultCompetition string   `toml:"default_competition"`
}

// Substitution is one ordered name-normalizer rewrite.
type Substitution struct {
	Pattern     string `toml:"pattern"`
	Replacement string `toml:"replacement"`
}

// NormalizerConfig supplies the substitution table. Entries from TablePath
// are merged over Substitutions.
type NormalizerConfig struct {
	Substitutions []Substitution `toml:"substitutions"`
	TablePath     string         `toml:"table_path"`
}

// SteamConfig holds badge, edge and panel parameters.
type SteamConfig struct {
	MinLead      duration `toml:"min_lead"`
	MinVolume    float64  `toml:"min_volume"`
	TestMode     bool     `toml:"test_mode"`
	MaxSpreadPct float64  `toml:"max_spread_pct"`
	PanelSize    int      `toml:"panel_size"`
}

// AlertsConfig holds the value-alert gates and cadence.
type AlertsConfig struct {
	ScopeMode        string   `toml:"scope_mode"`
	Interval         duration `toml:"interval"`
	MinVolume        float64  `toml:"min_volume"`
	MinPrice         float64  `toml:"min_price"`
	MaxSpread        float64  `toml:"max_spread"`
	MinBookOverLay   float64  `toml:"min_book_over_lay"`
	Commission       float64  `toml:"commission"`
	MinEdge          float64  `toml:"min_edge"`
	Bookmakers       []string `toml:"bookmakers"`
	Cooldown         duration `toml:"cooldown"`
	RealertEdgeStep  float64  `toml:"realert_edge_step"`
	RealertPriceMove float64  `toml:"realert_price_move"`
	StatusWindow     duration `toml:"status_window"`
	LockTTL          duration `toml:"lock_ttl"`
	Commands         bool     `toml:"commands"`
}

// ArchiveConfig controls the periodic board archive to S3.
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"`
	Prefix  string `toml:"prefix"`
}

// EntitlementConfig controls the metered access gate.
type EntitlementConfig struct {
	Enabled bool `toml:"enabled"`
	// KeyHashes are bcrypt hashes of API keys that are always entitled.
	KeyHashes  []string `toml:"key_hashes"`
	FreeViews  int      `toml:"free_views"`
	FreeWindow duration `toml:"free_window"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimit is the per-IP request budget per RateWindow. Zero disables it.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Supabase: SupabaseConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "postgres",
			User:           "postgres",
			SSLMode:        "disable",
			PoolMaxConns:   10,
			PoolMinConns:   2,
			RequestTimeout: duration{10 * time.Second},
			RunMigrations:  true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			CacheTTL:     duration{10 * time.Minute},
			StreamMaxLen: 10_000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "oddsdesk-archive",
			ForcePathStyle: true,
		},
		Feed: FeedConfig{
			Source:              "postgres",
			Sport:               "MMA",
			Sports:              []string{"MMA", "NFL", "Basketball"},
			SnapshotInterval:    duration{time.Second},
			MoversInterval:      duration{10 * time.Second},
			MoversWindowMinutes: 15,
			TickTimeout:         duration{5 * time.Second},
			StartLookback:       duration{24 * time.Hour},
			WarmStartMaxAge:     duration{2 * time.Minute},
		},
		Grouping: GroupingConfig{
			Heartbeat: duration{time.Hour},
			TwoWaySports: []string{
				"american football", "nfl", "ncaa", "basketball",
				"nba", "mma", "ufc", "mixed martial arts",
			},
			DefaultCompetition: "Other",
		},
		Steam: SteamConfig{
			MinLead:      duration{10 * time.Minute},
			MinVolume:    200,
			MaxSpreadPct: 5.0,
			PanelSize:    6,
		},
		Alerts: AlertsConfig{
			ScopeMode:        "NBA_PREMATCH_ML_STEAMERS",
			Interval:         duration{30 * time.Second},
			MinVolume:        200,
			MinPrice:         1.01,
			MaxSpread:        0.04,
			MinBookOverLay:   0.02,
			Commission:       0.02,
			MinEdge:          0.003,
			Bookmakers:       []string{"paddypower", "bet365"},
			Cooldown:         duration{10 * time.Minute},
			RealertEdgeStep:  0.002,
			RealertPriceMove: 0.03,
			StatusWindow:     duration{time.Hour},
			LockTTL:          duration{time.Minute},
			Commands:         true,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Cron:    "*/15 * * * *",
			Prefix:  "boards",
		},
		Entitlement: EntitlementConfig{
			Enabled:    false,
			FreeViews:  30,
			FreeWindow: duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   600,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"value_alert", "status", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"board":  true,
	"alerts": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validSources = map[string]bool{
	"postgres": true,
	"rest":     true,
}

// NeedsPostgres reports whether the configured mode and sources require a
// direct database connection. Alert history always lives in Postgres.
func (c *Config) NeedsPostgres() bool {
	return c.Feed.Source == "postgres" || c.Mode == "alerts" || c.Mode == "full"
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: board, alerts, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Supabase
	if c.NeedsPostgres() && strings.TrimSpace(c.Supabase.DSN) == "" {
		if c.Supabase.Host == "" {
			errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
		}
		if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
			errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
		}
		if c.Supabase.Database == "" {
			errs = append(errs, "supabase: database must not be empty")
		}
	}
	if c.Supabase.PoolMaxConns < 1 {
		errs = append(errs, "supabase: pool_max_conns must be >= 1")
	}
	if c.Supabase.PoolMinConns < 0 {
		errs = append(errs, "supabase: pool_min_conns must be >= 0")
	}
	if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
		errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
	}
	if c.Feed.Source == "rest" {
		if c.Supabase.ApiURL == "" {
			errs = append(errs, "supabase: api_url is required when feed.source = \"rest\"")
		}
		if c.Supabase.ApiKey == "" {
			errs = append(errs, "supabase: api_key is required when feed.source = \"rest\"")
		}
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if strings.TrimSpace(c.Archive.Cron) == "" {
			errs = append(errs, "archive: cron must not be empty when enabled")
		}
	}

	// Feed
	if !validSources[c.Feed.Source] {
		errs = append(errs, fmt.Sprintf("feed: unknown source %q (valid: postgres, rest)", c.Feed.Source))
	}
	if strings.TrimSpace(c.Feed.Sport) == "" {
		errs = append(errs, "feed: sport must not be empty")
	}
	if c.Feed.SnapshotInterval.Duration <= 0 {
		errs = append(errs, "feed: snapshot_interval must be > 0")
	}
	if c.Feed.MoversInterval.Duration <= 0 {
		errs = append(errs, "feed: movers_interval must be > 0")
	}
	if c.Feed.MoversWindowMinutes < 1 {
		errs = append(errs, "feed: movers_window_minutes must be >= 1")
	}
	if c.Feed.TickTimeout.Duration <= 0 {
		errs = append(errs, "feed: tick_timeout must be > 0")
	}

	// Grouping
	if c.Grouping.Heartbeat.Duration < 0 {
		errs = append(errs, "grouping: heartbeat must not be negative")
	}

	// Normalizer
	for i, s := range c.Normalizer.Substitutions {
		if strings.TrimSpace(s.Pattern) == "" {
			errs = append(errs, fmt.Sprintf("normalizer: substitutions[%d] has an empty pattern", i))
		}
	}

	// Steam
	if c.Steam.MinVolume < 0 {
		errs = append(errs, "steam: min_volume must be >= 0")
	}
	if c.Steam.MaxSpreadPct <= 0 {
		errs = append(errs, "steam: max_spread_pct must be > 0")
	}
	if c.Steam.PanelSize < 1 {
		errs = append(errs, "steam: panel_size must be >= 1")
	}

	// Alerts
	if c.Mode == "alerts" || c.Mode == "full" {
		if c.Alerts.Interval.Duration <= 0 {
			errs = append(errs, "alerts: interval must be > 0")
		}
		if c.Alerts.Commission < 0 || c.Alerts.Commission >= 1 {
			errs = append(errs, "alerts: commission must be in [0, 1)")
		}
		if len(c.Alerts.Bookmakers) == 0 {
			errs = append(errs, "alerts: bookmakers must not be empty")
		}
	}

	// Entitlement
	if c.Entitlement.Enabled {
		if c.Entitlement.FreeViews < 0 {
			errs = append(errs, "entitlement: free_views must be >= 0")
		}
		if c.Entitlement.FreeWindow.Duration <= 0 {
			errs = append(errs, "entitlement: free_window must be > 0")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
