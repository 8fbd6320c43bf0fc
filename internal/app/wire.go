package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantfold/algotrader/internal/config"
	"github.com/quantfold/algotrader/internal/domain"
	"github.com/quantfold/algotrader/internal/journal"
	"github.com/quantfold/algotrader/internal/journal/postgres"
	"github.com/quantfold/algotrader/internal/portfolio"
	"github.com/quantfold/algotrader/internal/strategy"
	"github.com/quantfold/algotrader/internal/transport/redis"
)

// wireTimeout bounds startup connections to external services.
const wireTimeout = 10 * time.Second

// riskConfig converts the string-typed risk limits from the config file into
// the portfolio's decimal config.
func riskConfig(rc config.RiskConfig) (portfolio.Config, error) {
	cfg := portfolio.Config{
		MaxSymbols:                   rc.MaxSymbols,
		CooldownAfterDrawdownSeconds: rc.CooldownAfterDrawdownSeconds,
		CooldownAfterLossSeconds:     rc.CooldownAfterLossSeconds,
	}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"risk.max_drawdown", rc.MaxDrawdown, &cfg.MaxDrawdown},
		{"risk.max_position_fraction", rc.MaxPositionFraction, &cfg.MaxPositionFraction},
		{"risk.max_gross_exposure_fraction", rc.MaxGrossExposureFraction, &cfg.MaxGrossExposureFraction},
		{"risk.max_slippage_fraction", rc.MaxSlippageFraction, &cfg.MaxSlippageFraction},
		{"risk.initial_cash", rc.InitialCash, &cfg.InitialCash},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.raw) == "" {
			continue
		}
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return portfolio.Config{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return cfg, nil
}

// buildStrategy constructs the configured strategy through the registry.
func buildStrategy(sc config.StrategyConfig) (domain.Strategy, error) {
	return strategy.NewRegistry().Build(sc.Name, strategy.Params{
		FastWindow: sc.FastWindow,
		SlowWindow: sc.SlowWindow,
	})
}

// dataWindow resolves the configured backtest date range. An empty start
// means the beginning of time; an empty end means today.
func dataWindow(dc config.DataConfig) (time.Time, time.Time, error) {
	start := time.Unix(0, 0).UTC()
	end := time.Now().UTC()

	if dc.Start != "" {
		t, err := time.ParseInLocation("2006-01-02", dc.Start, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("data.start: %w", err)
		}
		start = t
	}
	if dc.End != "" {
		t, err := time.ParseInLocation("2006-01-02", dc.End, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("data.end: %w", err)
		}
		end = t
	}
	return start, end, nil
}

// resolveRunID returns the configured run id or generates one.
func resolveRunID(ec config.EngineConfig) string {
	if strings.TrimSpace(ec.RunID) != "" {
		return ec.RunID
	}
	return uuid.NewString()
}

// configSnapshot flattens the run-relevant configuration into the JSONB
// snapshot stored on the runs row.
func configSnapshot(cfg config.Config) map[string]any {
	return map[string]any{
		"mode":      cfg.Mode,
		"engine_id": cfg.Engine.ID,
		"symbols":   cfg.Engine.Symbols,
		"strategy": map[string]any{
			"name":        cfg.Strategy.Name,
			"fast_window": cfg.Strategy.FastWindow,
			"slow_window": cfg.Strategy.SlowWindow,
		},
		"risk": map[string]any{
			"max_symbols":                     cfg.Risk.MaxSymbols,
			"max_drawdown":                    cfg.Risk.MaxDrawdown,
			"cooldown_after_drawdown_seconds": cfg.Risk.CooldownAfterDrawdownSeconds,
			"max_position_fraction":           cfg.Risk.MaxPositionFraction,
			"max_gross_exposure_fraction":     cfg.Risk.MaxGrossExposureFraction,
			"max_slippage_fraction":           cfg.Risk.MaxSlippageFraction,
			"cooldown_after_loss_seconds":     cfg.Risk.CooldownAfterLossSeconds,
			"initial_cash":                    cfg.Risk.InitialCash,
		},
	}
}

// postgresConfigured reports whether the config points at a database at all.
// Backtests may run journal-free; forward mode logs a warning without one.
func postgresConfigured(pc config.PostgresConfig) bool {
	return strings.TrimSpace(pc.DSN) != "" || strings.TrimSpace(pc.Host) != ""
}

// wireJournal connects the PostgreSQL journal for a run, running migrations
// and creating the runs row. When no database is configured it falls back to
// the in-memory journal and a nil store.
func wireJournal(ctx context.Context, cfg config.Config, runID string, logger *slog.Logger) (domain.Journal, *postgres.RunStore, func(), error) {
	if !postgresConfigured(cfg.Postgres) {
		logger.Info("journal: no database configured, using in-memory journal")
		return journal.NewMemory(), nil, func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, wireTimeout)
	defer cancel()

	client, err := postgres.New(connectCtx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	if cfg.Postgres.RunMigrations {
		if err := client.RunMigrations(connectCtx); err != nil {
			client.Close()
			return nil, nil, nil, err
		}
	}

	store := postgres.NewRunStore(client.Pool())
	if err := store.CreateRun(connectCtx, runID, cfg.Mode, configSnapshot(cfg)); err != nil {
		client.Close()
		return nil, nil, nil, err
	}

	return postgres.NewJournal(client.Pool(), runID, logger), store, client.Close, nil
}

// redisDeps bundles the Redis-backed collaborators of the forward runner.
type redisDeps struct {
	client   *redis.Client
	bus      *redis.OverrideBus
	runtime  *redis.RuntimeConfig
	registry *redis.EngineRegistry
}

// wireRedis connects the override bus, runtime config, and engine registry.
func wireRedis(ctx context.Context, cfg config.Config) (*redisDeps, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, wireTimeout)
	defer cancel()

	client, err := redis.New(connectCtx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
	})
	if err != nil {
		return nil, nil, err
	}

	bus, err := redis.NewOverrideBus(connectCtx, client, cfg.Engine.ID)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	deps := &redisDeps{
		client:   client,
		bus:      bus,
		runtime:  redis.NewRuntimeConfig(client),
		registry: redis.NewEngineRegistry(client),
	}
	return deps, func() { _ = client.Close() }, nil
}

// seedRuntimeConfig writes the static configuration into the Redis runtime
// keys when they are unset, so operator tooling sees the effective values.
// Existing operator-set values are left alone.
func seedRuntimeConfig(ctx context.Context, rc *redis.RuntimeConfig, cfg config.Config, logger *slog.Logger) {
	engineID := cfg.Engine.ID

	watchlist, err := rc.GetWatchlist(ctx, engineID, 0)
	if err == nil && len(watchlist) == 0 {
		err = rc.SetWatchlist(ctx, engineID, cfg.Engine.Symbols)
	}
	if err != nil {
		logger.Warn("seed watchlist", slog.String("error", err.Error()))
	}

	seconds, err := rc.GetPollSeconds(ctx, engineID, 0)
	if err == nil && seconds == 0 && cfg.Engine.PollSeconds > 0 {
		err = rc.SetPollSeconds(ctx, engineID, cfg.Engine.PollSeconds)
	}
	if err != nil {
		logger.Warn("seed poll seconds", slog.String("error", err.Error()))
	}
}
