package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "backtest", cfg.Mode)
	assert.Equal(t, "sma_crossover", cfg.Strategy.Name)
	assert.Equal(t, 10, cfg.Strategy.FastWindow)
	assert.Equal(t, 20, cfg.Strategy.SlowWindow)
	assert.Equal(t, 200, cfg.Risk.MaxSymbols)
	assert.Equal(t, "0.10", cfg.Risk.MaxDrawdown)
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "forward"

[engine]
id = "engine-7"
symbols = ["AAPL", "MSFT"]
poll_seconds = 0.5

[strategy]
fast_window = 5
slow_window = 15

[risk]
max_drawdown = "0.05"
initial_cash = "250000"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "forward", cfg.Mode)
	assert.Equal(t, "engine-7", cfg.Engine.ID)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Engine.Symbols)
	assert.Equal(t, 0.5, cfg.Engine.PollSeconds)
	assert.Equal(t, 5, cfg.Strategy.FastWindow)
	assert.Equal(t, "0.05", cfg.Risk.MaxDrawdown)
	assert.Equal(t, "250000", cfg.Risk.InitialCash)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("ALGOTRADER_MODE", "forward")
	t.Setenv("ALGOTRADER_SYMBOLS", "SPY, QQQ")
	t.Setenv("ALGOTRADER_SMA_FAST", "3")
	t.Setenv("ALGOTRADER_REDIS_ADDR", "redis.internal:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "forward", cfg.Mode)
	assert.Equal(t, []string{"SPY", "QQQ"}, cfg.Engine.Symbols)
	assert.Equal(t, 3, cfg.Strategy.FastWindow)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "replay"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptySymbols(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.Symbols = nil
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsInvertedWindows(t *testing.T) {
	cfg := Defaults()
	cfg.Strategy.FastWindow = 20
	cfg.Strategy.SlowWindow = 10
	require.Error(t, cfg.Validate())

	cfg.Strategy.FastWindow = 10
	cfg.Strategy.SlowWindow = 10
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadDates(t *testing.T) {
	cfg := Defaults()
	cfg.Data.Start = "03/01/2024"
	require.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Data.End = "yesterday"
	require.Error(t, cfg.Validate())
}
