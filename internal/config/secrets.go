package config

import "slices"

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Supabase
	redact(&out.Supabase.DSN)
	redact(&out.Supabase.Password)
	redact(&out.Supabase.ApiKey)

	// Redis
	redact(&out.Redis.Password)

	// S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Entitlement hashes are not reversible, but they are still credentials.
	if cfg.Entitlement.KeyHashes != nil {
		out.Entitlement.KeyHashes = make([]string, len(cfg.Entitlement.KeyHashes))
		for i, h := range cfg.Entitlement.KeyHashes {
			out.Entitlement.KeyHashes[i] = h
			redact(&out.Entitlement.KeyHashes[i])
		}
	}

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	out.Feed.Sports = slices.Clone(cfg.Feed.Sports)
	out.Grouping.TwoWaySports = slices.Clone(cfg.Grouping.TwoWaySports)
	out.Alerts.Bookmakers = slices.Clone(cfg.Alerts.Bookmakers)
	out.Normalizer.Substitutions = slices.Clone(cfg.Normalizer.Substitutions)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
