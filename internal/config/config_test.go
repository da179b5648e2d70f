package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	// Defaults leave the external endpoints unset on purpose; fill the two
	// required ones.
	cfg.Chain.RPCURL = "https://rpc.example.com"
	cfg.Prereq.BaseURL = "https://accounts.example.com"

	require.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Redis.Addr = ""
	cfg.Engine.DriftMaterialityEur = 0
	cfg.Poll.PriceInterval = duration{}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "bogus"`)
	assert.Contains(t, err.Error(), `unknown log_level "loud"`)
	assert.Contains(t, err.Error(), "redis: addr must not be empty")
	assert.Contains(t, err.Error(), "engine: drift_materiality_eur must be > 0")
	assert.Contains(t, err.Error(), "poll: price_interval must be > 0")
}

func TestValidate_DuplicateTokenSymbols(t *testing.T) {
	cfg := Defaults()
	cfg.Chain.RPCURL = "https://rpc.example.com"
	cfg.Prereq.BaseURL = "https://accounts.example.com"
	cfg.Chain.Tokens = append(cfg.Chain.Tokens, TokenConfig{Symbol: "eth", Decimals: 18})

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate symbol "ETH"`)
}

func TestLoad_TOMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "server"
log_level = "debug"

[engine]
gas_per_tx_eur = 0.25

[poll]
price_interval = "45s"
`), 0o600))

	t.Setenv("PORTFOLIO_ENGINE_GAS_PER_TX_EUR", "0.5")
	t.Setenv("PORTFOLIO_SERVER_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 45*time.Second, cfg.Poll.PriceInterval.Duration)
	// Env beats the file.
	assert.InDelta(t, 0.5, cfg.Engine.GasPerTxEur, 1e-9)
	assert.Equal(t, 9100, cfg.Server.Port)
	// Untouched fields keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Supabase.Password = "hunter2"
	cfg.Pricefeed.APIKey = "key"
	cfg.Notify.TelegramToken = "token"
	cfg.S3.SecretKey = ""

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Supabase.Password)
	assert.Equal(t, "***", red.Pricefeed.APIKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	// Empty secrets stay empty rather than advertising a value exists.
	assert.Empty(t, red.S3.SecretKey)
	// The original is untouched.
	assert.Equal(t, "hunter2", cfg.Supabase.Password)
}
