package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/quantfold/algotrader/internal/broker"
	"github.com/quantfold/algotrader/internal/config"
	"github.com/quantfold/algotrader/internal/domain"
	"github.com/quantfold/algotrader/internal/engine"
	"github.com/quantfold/algotrader/internal/marketdata"
	"github.com/quantfold/algotrader/internal/portfolio"
	"github.com/quantfold/algotrader/internal/report"
)

// Backtest replays historical daily bars chronologically through the engine
// against the paper broker and renders a summary when the series ends. Each
// bar executes at its close: the fixed clock is advanced to the bar's close
// time before the engine sees the event.
type Backtest struct {
	cfg    config.Config
	logger *slog.Logger
	out    io.Writer

	runID   string
	clock   *engine.FixedClock
	eng     *engine.Engine
	port    *portfolio.Portfolio
	brk     *broker.Paper
	bars    []domain.Bar
	cleanup func()
	summary report.Summary
}

// NewBacktest wires a backtest run from configuration: strategy, portfolio,
// journal, paper broker, and the CSV bar series. When a database is
// configured the loaded bars are also upserted into the daily-bar cache.
func NewBacktest(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backtest, error) {
	runID := resolveRunID(cfg.Engine)
	logger = logger.With(slog.String("run_id", runID), slog.String("mode", "backtest"))

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

	jrnl, store, cleanup, err := wireJournal(ctx, cfg, runID, logger)
	if err != nil {
		return nil, err
	}

	start, end, err := dataWindow(cfg.Data)
	if err != nil {
		cleanup()
		return nil, err
	}

	// Bars come from the CSV when configured (and feed the cache), otherwise
	// from a previously-populated daily-bar cache.
	var bars []domain.Bar
	switch {
	case cfg.Data.BarsCSV != "":
		bars, err = marketdata.NewCSVBars(cfg.Data.BarsCSV).GetDailyBars(ctx, cfg.Engine.Symbols, start, end)
		if err != nil {
			cleanup()
			return nil, err
		}
		if store != nil {
			if err := store.UpsertDailyBars(ctx, bars); err != nil {
				logger.Warn("cache daily bars", slog.String("error", err.Error()))
			}
		}
	case store != nil:
		bars, err = store.GetDailyBars(ctx, cfg.Engine.Symbols, start, end)
		if err != nil {
			cleanup()
			return nil, err
		}
	default:
		cleanup()
		return nil, fmt.Errorf("backtest: no bar source configured (set data.bars_csv or postgres)")
	}

	clock := &engine.FixedClock{}
	return &Backtest{
		cfg:     cfg,
		logger:  logger,
		out:     os.Stdout,
		runID:   runID,
		clock:   clock,
		eng:     engine.New(clock, strat, port, jrnl),
		port:    port,
		brk:     broker.NewPaper(),
		bars:    bars,
		cleanup: cleanup,
	}, nil
}

// Run feeds every bar through the engine in (day, symbol) order, bridges
// decisions to the paper broker, applies fills, and renders the summary.
func (b *Backtest) Run(ctx context.Context) error {
	defer b.cleanup()

	b.logger.Info("backtest starting",
		slog.Int("bars", len(b.bars)),
		slog.Any("symbols", b.cfg.Engine.Symbols))

	summary := report.Summary{
		RunID:   b.runID,
		Symbols: b.cfg.Engine.Symbols,
	}

	for _, bar := range b.bars {
		if err := ctx.Err(); err != nil {
			return err
		}

		closeTime := bar.CloseTime()
		b.clock.Set(closeTime)
		b.brk.SetPrice(bar.Symbol, bar.Close, closeTime)

		decision := b.eng.OnMarket(domain.NewBarEvent(bar))
		summary.BarsFed++

		if decision != nil {
			summary.Decisions++
			for _, intent := range decision.OrderIntents {
				switch intent.Side {
				case domain.SideBuy:
					summary.BuyIntents++
				case domain.SideSell:
					summary.SellIntents++
				}
			}
			if _, err := b.brk.PlaceOrders(ctx, decision.OrderIntents); err != nil {
				return fmt.Errorf("backtest: place orders: %w", err)
			}
		}

		fills, err := b.brk.PollFills(ctx)
		if err != nil {
			return fmt.Errorf("backtest: poll fills: %w", err)
		}
		if len(fills) > 0 {
			b.eng.OnFills(fills, closeTime)
			summary.FillsTotal += len(fills)
		}
	}

	summary.RealizedPnL = b.port.Equity().RealizedPnL()
	b.summary = summary
	report.Render(b.out, summary, b.port.Equity())

	b.logger.Info("backtest finished",
		slog.Int("decisions", summary.Decisions),
		slog.Int("fills", summary.FillsTotal),
		slog.String("final_equity", b.port.Equity().Equity().String()))
	return nil
}

// Portfolio exposes the run's portfolio for inspection after Run returns.
func (b *Backtest) Portfolio() *portfolio.Portfolio { return b.port }

// Summary returns the totals accumulated by the last Run.
func (b *Backtest) Summary() report.Summary { return b.summary }

// SetOutput redirects the summary table, mainly for tests.
func (b *Backtest) SetOutput(w io.Writer) { b.out = w }
