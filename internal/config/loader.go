package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ALGOTRADER_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load. An empty path skips
// the file and uses defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ALGOTRADER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets and run parameters at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "ALGOTRADER_MODE")
	setStr(&cfg.LogLevel, "ALGOTRADER_LOG_LEVEL")

	// ── Engine ──
	setStr(&cfg.Engine.ID, "ALGOTRADER_ENGINE_ID")
	setStrSlice(&cfg.Engine.Symbols, "ALGOTRADER_SYMBOLS")
	setFloat(&cfg.Engine.PollSeconds, "ALGOTRADER_POLL_SECONDS")
	setInt(&cfg.Engine.MaxIterations, "ALGOTRADER_MAX_ITERATIONS")
	setStr(&cfg.Engine.RunID, "ALGOTRADER_RUN_ID")

	// ── Strategy ──
	setStr(&cfg.Strategy.Name, "ALGOTRADER_STRATEGY")
	setInt(&cfg.Strategy.FastWindow, "ALGOTRADER_SMA_FAST")
	setInt(&cfg.Strategy.SlowWindow, "ALGOTRADER_SMA_SLOW")

	// ── Data ──
	setStr(&cfg.Data.BarsCSV, "ALGOTRADER_BARS_CSV")
	setStr(&cfg.Data.Start, "ALGOTRADER_START")
	setStr(&cfg.Data.End, "ALGOTRADER_END")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ALGOTRADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ALGOTRADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ALGOTRADER_REDIS_DB")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ALGOTRADER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ALGOTRADER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ALGOTRADER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ALGOTRADER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ALGOTRADER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ALGOTRADER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ALGOTRADER_POSTGRES_SSLMODE")
	setBool(&cfg.Postgres.RunMigrations, "ALGOTRADER_POSTGRES_RUN_MIGRATIONS")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "ALGOTRADER_METRICS_ENABLED")
	setStr(&cfg.Metrics.Addr, "ALGOTRADER_METRICS_ADDR")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setStrSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
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
