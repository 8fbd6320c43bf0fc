package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/algotrader/internal/broker"
	"github.com/quantfold/algotrader/internal/config"
	"github.com/quantfold/algotrader/internal/domain"
	"github.com/quantfold/algotrader/internal/engine"
	"github.com/quantfold/algotrader/internal/journal"
	"github.com/quantfold/algotrader/internal/marketdata"
	"github.com/quantfold/algotrader/internal/portfolio"
	"github.com/quantfold/algotrader/internal/strategy"
)

// queuedOverrides delivers a fixed batch once, then nothing.
type queuedOverrides struct {
	events []domain.OverrideEvent
}

func (q *queuedOverrides) PollOverrides(context.Context, int) ([]domain.OverrideEvent, error) {
	out := q.events
	q.events = nil
	return out, nil
}

func crossoverBars(symbol string) []domain.Bar {
	prices := []int64{10, 10, 10, 20, 30, 1}
	bars := make([]domain.Bar, 0, len(prices))
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, px := range prices {
		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Day:    day.AddDate(0, 0, i),
			Close:  decimal.NewFromInt(px),
		})
	}
	return bars
}

type forwardFixture struct {
	fw   *Forward
	port *portfolio.Portfolio
	jrnl *journal.Memory
}

func newForwardFixture(t *testing.T, symbol string, overrides domain.OverrideSource) *forwardFixture {
	t.Helper()

	cfg := config.Defaults()
	cfg.Mode = "forward"
	cfg.Engine.Symbols = []string{symbol}
	cfg.Engine.PollSeconds = 0
	cfg.Metrics.Enabled = false

	port, err := portfolio.New(portfolio.DefaultConfig())
	require.NoError(t, err)
	strat, err := strategy.NewRegistry().Build("sma_crossover", strategy.Params{FastWindow: 2, SlowWindow: 3})
	require.NoError(t, err)

	jrnl := journal.NewMemory()
	clock := engine.RealClock{}
	replay := marketdata.NewReplay(crossoverBars(symbol), clock)

	deps := ForwardDeps{
		RunID:     "fw-test",
		Engine:    engine.New(clock, strat, port, jrnl),
		Portfolio: port,
		Broker:    broker.NewPaper(),
		Data:      replay,
		Overrides: overrides,
		Sleep:     func(context.Context, time.Duration) error { return nil },
	}
	return &forwardFixture{
		fw:   NewForwardWithDeps(cfg, testLogger(), deps),
		port: port,
		jrnl: jrnl,
	}
}

func TestForwardReplayRoundTripsACrossover(t *testing.T) {
	fx := newForwardFixture(t, "TEST", nil)

	require.NoError(t, fx.fw.Run(context.Background()))

	require.Len(t, fx.jrnl.Decisions, 2, "one buy decision and one sell decision")
	assert.Equal(t, domain.SideBuy, fx.jrnl.Decisions[0].OrderIntents[0].Side)
	assert.Equal(t, domain.SideSell, fx.jrnl.Decisions[1].OrderIntents[0].Side)

	require.Len(t, fx.jrnl.Fills, 2)
	assert.True(t, fx.port.Position("TEST").IsZero(), "the run ends flat")
	assert.True(t, fx.port.Equity().RealizedPnL().Equal(decimal.NewFromInt(-19)),
		"bought at 20, sold at 1")
}

func TestForwardPauseOverrideSuppressesTrading(t *testing.T) {
	overrides := &queuedOverrides{events: []domain.OverrideEvent{
		{TS: time.Now().UTC(), Command: "pause"},
	}}
	fx := newForwardFixture(t, "TEST", overrides)

	require.NoError(t, fx.fw.Run(context.Background()))

	assert.Len(t, fx.jrnl.Overrides, 1)
	assert.Empty(t, fx.jrnl.Decisions, "a paused engine journals no decisions")
	assert.Empty(t, fx.jrnl.Fills)
	assert.True(t, fx.port.Position("TEST").IsZero())
}

func TestForwardHonorsIterationLimit(t *testing.T) {
	fx := newForwardFixture(t, "TEST", nil)
	fx.fw.cfg.Engine.MaxIterations = 2

	require.NoError(t, fx.fw.Run(context.Background()))

	// Two iterations consume two quotes; the slow window never fills.
	assert.Empty(t, fx.jrnl.Decisions)
}

func TestForwardStopsOnCancelledContext(t *testing.T) {
	fx := newForwardFixture(t, "TEST", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Cancellation surfaces as a clean shutdown.
	require.NoError(t, fx.fw.Run(ctx))
}

func TestForwardDisableSymbolOverride(t *testing.T) {
	overrides := &queuedOverrides{events: []domain.OverrideEvent{
		{TS: time.Now().UTC(), Command: "disable_symbol", Args: map[string]string{"symbol": "TEST"}},
	}}
	fx := newForwardFixture(t, "TEST", overrides)

	require.NoError(t, fx.fw.Run(context.Background()))

	// The strategy still proposes, but the portfolio drops the disabled
	// symbol silently, so nothing is approved or filled.
	assert.Empty(t, fx.jrnl.Decisions)
	assert.Empty(t, fx.jrnl.Fills)
}
