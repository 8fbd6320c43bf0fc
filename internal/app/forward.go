package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantfold/algotrader/internal/broker"
	"github.com/quantfold/algotrader/internal/config"
	"github.com/quantfold/algotrader/internal/domain"
	"github.com/quantfold/algotrader/internal/engine"
	"github.com/quantfold/algotrader/internal/marketdata"
	"github.com/quantfold/algotrader/internal/metrics"
	"github.com/quantfold/algotrader/internal/portfolio"
	"github.com/quantfold/algotrader/internal/transport/redis"
)

// overridePollBatch caps how many pending override commands one loop
// iteration drains.
const overridePollBatch = 16

// heartbeatTTL is how long a registry heartbeat stays valid before the
// engine is considered stale.
const heartbeatTTL = 30 * time.Second

// ForwardDeps carries the collaborators of the forward runner. The Redis
// fields may be nil, in which case overrides, runtime config, and heartbeats
// are skipped; tests use that to drive the loop hermetically.
type ForwardDeps struct {
	RunID     string
	Engine    *engine.Engine
	Portfolio *portfolio.Portfolio
	Broker    *broker.Paper
	Data      domain.MarketData
	Overrides domain.OverrideSource
	Runtime   *redis.RuntimeConfig
	Registry  *redis.EngineRegistry
	Bus       *redis.OverrideBus
	Metrics   *metrics.Metrics

	// Sleep waits between iterations; nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	Cleanup func()
}

// Forward is the long-running paper trading loop: each iteration drains
// operator overrides, refreshes the watchlist, polls quotes, routes them
// through the engine, bridges decisions to the broker, and applies fills.
type Forward struct {
	cfg    config.Config
	logger *slog.Logger
	deps   ForwardDeps
}

// NewForward wires a forward run from configuration: Redis transports,
// journal, and a bar-replay quote source feeding the paper broker.
func NewForward(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Forward, error) {
	runID := resolveRunID(cfg.Engine)
	logger = logger.With(
		slog.String("run_id", runID),
		slog.String("engine_id", cfg.Engine.ID),
		slog.String("mode", "forward"))

	riskCfg, err := riskConfig(cfg.Risk)
	if err != nil {
		return nil, err
	}
	port, err := portfolio.New(riskCfg)
	if err != nil {
		return nil, err
	}
	strat, err := buildStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	jrnl, _, pgCleanup, err := wireJournal(ctx, cfg, runID, logger)
	if err != nil {
		return nil, err
	}

	rd, redisCleanup, err := wireRedis(ctx, cfg)
	if err != nil {
		pgCleanup()
		return nil, err
	}

	seedRuntimeConfig(ctx, rd.runtime, cfg, logger)

	data, err := replaySource(ctx, cfg)
	if err != nil {
		redisCleanup()
		pgCleanup()
		return nil, err
	}

	clock := engine.RealClock{}
	deps := ForwardDeps{
		RunID:     runID,
		Engine:    engine.New(clock, strat, port, jrnl),
		Portfolio: port,
		Broker:    broker.NewPaper(),
		Data:      data,
		Overrides: rd.bus,
		Runtime:   rd.runtime,
		Registry:  rd.registry,
		Bus:       rd.bus,
		Metrics:   metrics.New(),
		Cleanup: func() {
			redisCleanup()
			pgCleanup()
		},
	}
	return NewForwardWithDeps(cfg, logger, deps), nil
}

// NewForwardWithDeps builds a forward runner around pre-wired collaborators.
func NewForwardWithDeps(cfg config.Config, logger *slog.Logger, deps ForwardDeps) *Forward {
	if deps.Sleep == nil {
		deps.Sleep = sleepWithContext
	}
	return &Forward{cfg: cfg, logger: logger, deps: deps}
}

// replaySource loads the configured CSV bars and serves them as live quotes.
// Paper forward runs have no upstream vendor; the replay source exercises the
// identical quote path.
func replaySource(ctx context.Context, cfg config.Config) (domain.MarketData, error) {
	if cfg.Data.BarsCSV == "" {
		return nil, fmt.Errorf("forward: data.bars_csv must be set for paper replay")
	}
	start, end, err := dataWindow(cfg.Data)
	if err != nil {
		return nil, err
	}
	bars, err := marketdata.NewCSVBars(cfg.Data.BarsCSV).GetDailyBars(ctx, cfg.Engine.Symbols, start, end)
	if err != nil {
		return nil, err
	}
	return marketdata.NewReplay(bars, engine.RealClock{}), nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run executes the forward loop until the context is cancelled, the
// configured iteration limit is reached, or a replay source is exhausted.
// The Prometheus endpoint runs alongside when enabled.
func (f *Forward) Run(ctx context.Context) error {
	if f.deps.Cleanup != nil {
		defer f.deps.Cleanup()
	}

	g, ctx := errgroup.WithContext(ctx)
	loopCtx, stopLoop := context.WithCancel(ctx)

	if f.cfg.Metrics.Enabled && f.deps.Metrics != nil {
		g.Go(func() error {
			return f.deps.Metrics.Serve(loopCtx, f.cfg.Metrics.Addr)
		})
	}

	g.Go(func() error {
		defer stopLoop()
		return f.loop(loopCtx)
	})

	err := g.Wait()
	stopLoop()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (f *Forward) loop(ctx context.Context) error {
	if f.deps.Registry != nil {
		status := f.status(0)
		if err := f.deps.Registry.Register(ctx, f.cfg.Engine.ID, status, heartbeatTTL); err != nil {
			f.logger.Warn("register engine", slog.String("error", err.Error()))
		}
	}

	f.logger.Info("forward loop starting",
		slog.Any("symbols", f.cfg.Engine.Symbols),
		slog.Float64("poll_seconds", f.cfg.Engine.PollSeconds))

	iteration := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		f.drainOverrides(ctx)

		watchlist := f.watchlist(ctx)
		pollSeconds := f.pollSeconds(ctx)

		if err := f.tick(ctx, watchlist); err != nil {
			return err
		}

		iteration++
		if f.deps.Registry != nil {
			if err := f.deps.Registry.Heartbeat(ctx, f.cfg.Engine.ID, f.status(iteration), heartbeatTTL); err != nil {
				f.logger.Warn("heartbeat", slog.String("error", err.Error()))
			}
		}

		if f.cfg.Engine.MaxIterations > 0 && iteration >= f.cfg.Engine.MaxIterations {
			f.logger.Info("iteration limit reached", slog.Int("iterations", iteration))
			return nil
		}
		if replay, ok := f.deps.Data.(*marketdata.Replay); ok && replay.Exhausted(watchlist) {
			f.logger.Info("replay source exhausted", slog.Int("iterations", iteration))
			return nil
		}

		if err := f.deps.Sleep(ctx, time.Duration(pollSeconds*float64(time.Second))); err != nil {
			return err
		}
	}
}

// tick processes one poll cycle: quotes in, decisions out, fills back.
func (f *Forward) tick(ctx context.Context, watchlist []string) error {
	quotes, err := f.deps.Data.GetQuotes(ctx, watchlist)
	if err != nil {
		f.logger.Error("get quotes", slog.String("error", err.Error()))
		return nil // transient vendor errors do not kill the loop
	}

	symbols := make([]string, 0, len(quotes))
	for sym := range quotes {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		quote := quotes[sym]
		f.deps.Broker.SetPrice(sym, quote.Price, quote.TS)

		decision := f.deps.Engine.OnMarket(domain.NewQuoteEvent(quote))
		f.observeMarketEvent(decision)
		if decision == nil {
			continue
		}

		if _, err := f.deps.Broker.PlaceOrders(ctx, decision.OrderIntents); err != nil {
			return fmt.Errorf("forward: place orders: %w", err)
		}
		if f.deps.Bus != nil {
			if err := f.deps.Bus.PublishDecision(ctx, *decision); err != nil {
				f.logger.Warn("publish decision", slog.String("error", err.Error()))
			}
		}
	}

	fills, err := f.deps.Broker.PollFills(ctx)
	if err != nil {
		return fmt.Errorf("forward: poll fills: %w", err)
	}
	if len(fills) > 0 {
		f.deps.Engine.OnFills(fills, time.Now().UTC())
		if f.deps.Metrics != nil {
			f.deps.Metrics.Fills.Add(float64(len(fills)))
		}
	}
	return nil
}

// drainOverrides applies every pending operator command in arrival order.
func (f *Forward) drainOverrides(ctx context.Context) {
	if f.deps.Overrides == nil {
		return
	}
	events, err := f.deps.Overrides.PollOverrides(ctx, overridePollBatch)
	if err != nil {
		f.logger.Error("poll overrides", slog.String("error", err.Error()))
		return
	}
	for _, event := range events {
		f.logger.Info("override received",
			slog.String("command", event.Command),
			slog.Any("args", event.Args))
		f.deps.Engine.OnOverride(event)
		if f.deps.Metrics != nil {
			f.deps.Metrics.Overrides.Inc()
		}
	}
}

// watchlist prefers the Redis runtime watchlist and falls back to the static
// configuration when unset or unavailable.
func (f *Forward) watchlist(ctx context.Context) []string {
	if f.deps.Runtime == nil {
		return f.cfg.Engine.Symbols
	}
	symbols, err := f.deps.Runtime.GetWatchlist(ctx, f.cfg.Engine.ID, f.cfg.Risk.MaxSymbols)
	if err != nil {
		f.logger.Warn("get watchlist", slog.String("error", err.Error()))
		return f.cfg.Engine.Symbols
	}
	if len(symbols) == 0 {
		return f.cfg.Engine.Symbols
	}
	return symbols
}

func (f *Forward) pollSeconds(ctx context.Context) float64 {
	def := f.cfg.Engine.PollSeconds
	if f.deps.Runtime == nil {
		return def
	}
	v, err := f.deps.Runtime.GetPollSeconds(ctx, f.cfg.Engine.ID, def)
	if err != nil {
		f.logger.Warn("get poll seconds", slog.String("error", err.Error()))
		return def
	}
	return v
}

func (f *Forward) status(iteration int) map[string]any {
	return map[string]any{
		"run_id":    f.deps.RunID,
		"paused":    f.deps.Engine.IsPaused(),
		"iteration": iteration,
		"symbols":   len(f.cfg.Engine.Symbols),
	}
}

func (f *Forward) observeMarketEvent(decision *domain.DecisionEvent) {
	m := f.deps.Metrics
	if m == nil {
		return
	}
	m.MarketEvents.Inc()
	if decision == nil {
		return
	}
	m.Decisions.Inc()
	m.IntentsFinal.Add(float64(len(decision.OrderIntents)))
	m.IntentsVetoed.Add(float64(len(decision.Audit.Vetoed)))
	for _, e := range decision.Audit.RiskEvents {
		m.RiskEvents.WithLabelValues(e.Type).Inc()
	}
}

// Portfolio exposes the run's portfolio for inspection after Run returns.
func (f *Forward) Portfolio() *portfolio.Portfolio { return f.deps.Portfolio }
