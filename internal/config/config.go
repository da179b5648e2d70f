// Package config defines the top-level configuration for the portfolio
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PORTFOLIO_* environment variables.
type Config struct {
	Supabase  SupabaseConfig  `toml:"supabase"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Pricefeed PricefeedConfig `toml:"pricefeed"`
	Chain     ChainConfig     `toml:"chain"`
	Prereq    PrereqConfig    `toml:"prereq"`
	Engine    EngineConfig    `toml:"engine"`
	Poll      PollConfig      `toml:"poll"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for cold-storage
// archiving.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PricefeedConfig holds the market-data API endpoint and credentials.
type PricefeedConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// TokenConfig describes one ERC-20 token whose balance the wallet
// reconciler reads. An empty contract address means the chain's native
// asset.
type TokenConfig struct {
	Symbol   string `toml:"symbol"`
	Contract string `toml:"contract"`
	Decimals int    `toml:"decimals"`
}

// ChainConfig holds the Ethereum RPC endpoint and the token set read during
// wallet reconciliation.
type ChainConfig struct {
	RPCURL string        `toml:"rpc_url"`
	Tokens []TokenConfig `toml:"tokens"`
}

// PrereqConfig holds the account-prerequisites API endpoint feeding the
// readiness gate.
type PrereqConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// EngineConfig holds the valuation and reconciliation parameters.
type EngineConfig struct {
	GasPerTxEur         float64  `toml:"gas_per_tx_eur"`
	DriftMaterialityEur float64  `toml:"drift_materiality_eur"`
	TokenAllowList      []string `toml:"token_allow_list"`
	StartingTestCashEur float64  `toml:"starting_test_cash_eur"`
	ArchiveRetentionDays int     `toml:"archive_retention_days"`
}

// PollConfig holds the polling cadence for the price feed and wallet
// balance sources.
type PollConfig struct {
	PriceInterval  duration `toml:"price_interval"`
	WalletInterval duration `toml:"wallet_interval"`
	MaxBackoff     duration `toml:"max_backoff"`
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
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
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
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "portfolio-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Pricefeed: PricefeedConfig{
			BaseURL: "https://api.exchange.example.com",
		},
		Chain: ChainConfig{
			RPCURL: "",
			Tokens: []TokenConfig{
				{Symbol: "ETH", Contract: "", Decimals: 18},
				{Symbol: "WETH", Contract: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18},
				{Symbol: "USDC", Contract: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
				{Symbol: "USDT", Contract: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6},
			},
		},
		Prereq: PrereqConfig{
			BaseURL: "",
		},
		Engine: EngineConfig{
			GasPerTxEur:          0.15,
			DriftMaterialityEur:  0.01,
			TokenAllowList:       []string{"ETH", "WETH", "USDC", "USDT"},
			StartingTestCashEur:  10_000,
			ArchiveRetentionDays: 90,
		},
		Poll: PollConfig{
			PriceInterval:  duration{30 * time.Second},
			WalletInterval: duration{60 * time.Second},
			MaxBackoff:     duration{5 * time.Minute},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   0,
			RateWindow:  duration{time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"drift_detected", "panic_active", "readiness_error", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"monitor": true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, monitor, archive, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Supabase
	if strings.TrimSpace(c.Supabase.DSN) == "" {
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

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Pricefeed
	if c.Pricefeed.BaseURL == "" {
		errs = append(errs, "pricefeed: base_url must not be empty")
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	seen := map[string]bool{}
	for i, t := range c.Chain.Tokens {
		sym := strings.ToUpper(strings.TrimSpace(t.Symbol))
		if sym == "" {
			errs = append(errs, fmt.Sprintf("chain: tokens[%d]: symbol must not be empty", i))
			continue
		}
		if seen[sym] {
			errs = append(errs, fmt.Sprintf("chain: tokens[%d]: duplicate symbol %q", i, sym))
		}
		seen[sym] = true
		if t.Decimals < 0 || t.Decimals > 36 {
			errs = append(errs, fmt.Sprintf("chain: tokens[%d]: decimals must be 0-36, got %d", i, t.Decimals))
		}
	}

	// Prereq
	if c.Prereq.BaseURL == "" {
		errs = append(errs, "prereq: base_url must not be empty")
	}

	// Engine
	if c.Engine.GasPerTxEur < 0 {
		errs = append(errs, "engine: gas_per_tx_eur must be >= 0")
	}
	if c.Engine.DriftMaterialityEur <= 0 {
		errs = append(errs, "engine: drift_materiality_eur must be > 0")
	}
	if c.Engine.StartingTestCashEur < 0 {
		errs = append(errs, "engine: starting_test_cash_eur must be >= 0")
	}
	if c.Engine.ArchiveRetentionDays < 1 {
		errs = append(errs, "engine: archive_retention_days must be >= 1")
	}

	// Poll
	if c.Poll.PriceInterval.Duration <= 0 {
		errs = append(errs, "poll: price_interval must be > 0")
	}
	if c.Poll.WalletInterval.Duration <= 0 {
		errs = append(errs, "poll: wallet_interval must be > 0")
	}
	if c.Poll.MaxBackoff.Duration <= 0 {
		errs = append(errs, "poll: max_backoff must be > 0")
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
