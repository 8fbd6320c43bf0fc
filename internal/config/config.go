// Package config defines the top-level configuration for the trading engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ALGOTRADER_* environment
// variables.
type Config struct {
	Mode     string         `toml:"mode"` // "backtest" or "forward"
	LogLevel string         `toml:"log_level"`
	Engine   EngineConfig   `toml:"engine"`
	Strategy StrategyConfig `toml:"strategy"`
	Risk     RiskConfig     `toml:"risk"`
	Data     DataConfig     `toml:"data"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// EngineConfig holds run-scoped engine parameters.
type EngineConfig struct {
	ID            string   `toml:"id"` // engine id for streams, runtime config, registry
	Symbols       []string `toml:"symbols"`
	PollSeconds   float64  `toml:"poll_seconds"`
	MaxIterations int      `toml:"max_iterations"` // 0 = unbounded (forward mode)
	RunID         string   `toml:"run_id"`         // generated when empty
}

// StrategyConfig selects and parameterizes the strategy.
type StrategyConfig struct {
	Name       string `toml:"name"`
	FastWindow int    `toml:"fast_window"`
	SlowWindow int    `toml:"slow_window"`
}

// RiskConfig holds the portfolio risk limits. Fractions are decimal strings
// so no precision is lost on the way to fixed-point arithmetic.
type RiskConfig struct {
	MaxSymbols                   int    `toml:"max_symbols"`
	MaxDrawdown                  string `toml:"max_drawdown"`
	CooldownAfterDrawdownSeconds int    `toml:"cooldown_after_drawdown_seconds"`
	MaxPositionFraction          string `toml:"max_position_fraction"`
	MaxGrossExposureFraction     string `toml:"max_gross_exposure_fraction"`
	MaxSlippageFraction          string `toml:"max_slippage_fraction"`
	CooldownAfterLossSeconds     int    `toml:"cooldown_after_loss_seconds"`
	InitialCash                  string `toml:"initial_cash"`
}

// DataConfig selects the market-data source for backtests.
type DataConfig struct {
	BarsCSV string `toml:"bars_csv"`
	Start   string `toml:"start"` // YYYY-MM-DD
	End     string `toml:"end"`
}

// RedisConfig holds Redis connection parameters for the override transport,
// runtime config, and engine registry.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
}

// PostgresConfig holds connection parameters for the journal store.
type PostgresConfig struct {
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

// MetricsConfig controls the Prometheus endpoint in forward mode.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Validate checks the configuration for internal consistency. It is called
// after Load and before any wiring; failures terminate startup.
func (c *Config) Validate() error {
	mode := strings.ToLower(strings.TrimSpace(c.Mode))
	switch mode {
	case "backtest", "forward":
	default:
		return fmt.Errorf("mode must be \"backtest\" or \"forward\", got %q", c.Mode)
	}

	if len(c.Engine.Symbols) == 0 {
		return fmt.Errorf("engine.symbols must not be empty")
	}
	if c.Engine.PollSeconds < 0 {
		return fmt.Errorf("engine.poll_seconds must be >= 0")
	}

	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name must be set")
	}
	if c.Strategy.FastWindow <= 0 || c.Strategy.SlowWindow <= 0 {
		return fmt.Errorf("strategy windows must be positive (fast=%d slow=%d)",
			c.Strategy.FastWindow, c.Strategy.SlowWindow)
	}
	if c.Strategy.FastWindow >= c.Strategy.SlowWindow {
		return fmt.Errorf("strategy.fast_window (%d) must be shorter than slow_window (%d)",
			c.Strategy.FastWindow, c.Strategy.SlowWindow)
	}

	if mode == "backtest" {
		if c.Data.Start != "" {
			if _, err := time.Parse("2006-01-02", c.Data.Start); err != nil {
				return fmt.Errorf("data.start: %w", err)
			}
		}
		if c.Data.End != "" {
			if _, err := time.Parse("2006-01-02", c.Data.End); err != nil {
				return fmt.Errorf("data.end: %w", err)
			}
		}
	}

	return nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Mode:     "backtest",
		LogLevel: "info",
		Engine: EngineConfig{
			ID:          "engine-1",
			Symbols:     []string{"AAPL"},
			PollSeconds: 2.0,
		},
		Strategy: StrategyConfig{
			Name:       "sma_crossover",
			FastWindow: 10,
			SlowWindow: 20,
		},
		Risk: RiskConfig{
			MaxSymbols:                   200,
			MaxDrawdown:                  "0.10",
			CooldownAfterDrawdownSeconds: 300,
			MaxPositionFraction:          "0.25",
			MaxGrossExposureFraction:     "1.00",
			MaxSlippageFraction:          "0.02",
			CooldownAfterLossSeconds:     0,
			InitialCash:                  "100000",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "algotrader",
			User:          "algotrader",
			SSLMode:       "disable",
			RunMigrations: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9109",
		},
	}
}
