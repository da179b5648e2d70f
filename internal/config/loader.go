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
// built-in defaults, applies PORTFOLIO_* environment variable overrides, and
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

// applyEnvOverrides reads well-known PORTFOLIO_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "PORTFOLIO_SUPABASE_DSN")
	setStr(&cfg.Supabase.Host, "PORTFOLIO_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "PORTFOLIO_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "PORTFOLIO_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "PORTFOLIO_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "PORTFOLIO_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "PORTFOLIO_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "PORTFOLIO_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "PORTFOLIO_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "PORTFOLIO_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PORTFOLIO_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PORTFOLIO_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PORTFOLIO_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PORTFOLIO_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PORTFOLIO_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PORTFOLIO_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PORTFOLIO_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PORTFOLIO_S3_REGION")
	setStr(&cfg.S3.Bucket, "PORTFOLIO_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PORTFOLIO_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PORTFOLIO_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PORTFOLIO_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PORTFOLIO_S3_FORCE_PATH_STYLE")

	// ── Pricefeed ──
	setStr(&cfg.Pricefeed.BaseURL, "PORTFOLIO_PRICEFEED_BASE_URL")
	setStr(&cfg.Pricefeed.APIKey, "PORTFOLIO_PRICEFEED_API_KEY")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "PORTFOLIO_CHAIN_RPC_URL")

	// ── Prereq ──
	setStr(&cfg.Prereq.BaseURL, "PORTFOLIO_PREREQ_BASE_URL")
	setStr(&cfg.Prereq.APIKey, "PORTFOLIO_PREREQ_API_KEY")

	// ── Engine ──
	setFloat64(&cfg.Engine.GasPerTxEur, "PORTFOLIO_ENGINE_GAS_PER_TX_EUR")
	setFloat64(&cfg.Engine.DriftMaterialityEur, "PORTFOLIO_ENGINE_DRIFT_MATERIALITY_EUR")
	setStringSlice(&cfg.Engine.TokenAllowList, "PORTFOLIO_ENGINE_TOKEN_ALLOW_LIST")
	setFloat64(&cfg.Engine.StartingTestCashEur, "PORTFOLIO_ENGINE_STARTING_TEST_CASH_EUR")
	setInt(&cfg.Engine.ArchiveRetentionDays, "PORTFOLIO_ENGINE_ARCHIVE_RETENTION_DAYS")

	// ── Poll ──
	setDuration(&cfg.Poll.PriceInterval, "PORTFOLIO_POLL_PRICE_INTERVAL")
	setDuration(&cfg.Poll.WalletInterval, "PORTFOLIO_POLL_WALLET_INTERVAL")
	setDuration(&cfg.Poll.MaxBackoff, "PORTFOLIO_POLL_MAX_BACKOFF")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PORTFOLIO_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PORTFOLIO_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PORTFOLIO_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PORTFOLIO_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "PORTFOLIO_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "PORTFOLIO_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PORTFOLIO_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PORTFOLIO_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PORTFOLIO_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PORTFOLIO_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PORTFOLIO_MODE")
	setStr(&cfg.LogLevel, "PORTFOLIO_LOG_LEVEL")
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
