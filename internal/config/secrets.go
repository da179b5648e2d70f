package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Supabase
	out.Supabase = cfg.Supabase
	redact(&out.Supabase.DSN)
	redact(&out.Supabase.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Pricefeed / Prereq / Chain
	out.Pricefeed = cfg.Pricefeed
	redact(&out.Pricefeed.APIKey)
	out.Prereq = cfg.Prereq
	redact(&out.Prereq.APIKey)
	redact(&out.Chain.RPCURL) // RPC URLs commonly embed provider keys

	// Server
	redact(&out.Server.APIKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}
	if cfg.Engine.TokenAllowList != nil {
		out.Engine.TokenAllowList = make([]string, len(cfg.Engine.TokenAllowList))
		copy(out.Engine.TokenAllowList, cfg.Engine.TokenAllowList)
	}
	if cfg.Chain.Tokens != nil {
		out.Chain.Tokens = make([]TokenConfig, len(cfg.Chain.Tokens))
		copy(out.Chain.Tokens, cfg.Chain.Tokens)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
