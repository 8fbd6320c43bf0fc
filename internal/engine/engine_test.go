package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/algotrader/internal/domain"
	"github.com/quantfold/algotrader/internal/journal"
)

var baseTS = time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)

type stubStrategy struct {
	calls   int
	intents []domain.OrderIntent
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) OnMarket(domain.MarketEvent, domain.PortfolioView) []domain.OrderIntent {
	s.calls++
	return s.intents
}

type stubPortfolio struct {
	decision  domain.PortfolioDecision
	fills     []domain.Fill
	overrides []domain.OverrideEvent
}

func (p *stubPortfolio) Position(string) decimal.Decimal { return decimal.Zero }

func (p *stubPortfolio) Manage(_ domain.MarketEvent, proposed []domain.OrderIntent) domain.PortfolioDecision {
	d := p.decision
	d.ProposedIntents = proposed
	return d
}

func (p *stubPortfolio) ApplyFill(fill domain.Fill) { p.fills = append(p.fills, fill) }

func (p *stubPortfolio) OnOverride(event domain.OverrideEvent) {
	p.overrides = append(p.overrides, event)
}

func quoteEvent(symbol string, price int64, ts time.Time) domain.MarketEvent {
	return domain.NewQuoteEvent(domain.Quote{
		Symbol: symbol,
		TS:     ts,
		Price:  decimal.NewFromInt(price),
	})
}

func intent(symbol string, side domain.Side) domain.OrderIntent {
	return domain.OrderIntent{Symbol: symbol, Side: side, Qty: decimal.NewFromInt(1), Reason: "test"}
}

func newEngine(decision domain.PortfolioDecision) (*Engine, *stubStrategy, *stubPortfolio, *journal.Memory, *FixedClock) {
	strat := &stubStrategy{intents: []domain.OrderIntent{intent("AAPL", domain.SideBuy)}}
	port := &stubPortfolio{decision: decision}
	jrnl := journal.NewMemory()
	clock := &FixedClock{Current: baseTS}
	return New(clock, strat, port, jrnl), strat, port, jrnl, clock
}

func TestOnMarketJournalsApprovedDecision(t *testing.T) {
	final := []domain.OrderIntent{intent("AAPL", domain.SideBuy)}
	eng, strat, _, jrnl, _ := newEngine(domain.PortfolioDecision{FinalIntents: final})

	decision := eng.OnMarket(quoteEvent("AAPL", 100, baseTS))

	require.NotNil(t, decision)
	assert.Equal(t, 1, strat.calls)
	assert.Equal(t, baseTS, decision.TS)
	assert.Equal(t, final, decision.OrderIntents)
	require.Len(t, jrnl.Decisions, 1)
	assert.Equal(t, final, jrnl.Decisions[0].OrderIntents)
}

func TestOnMarketSkipsJournalWhenNothingApproved(t *testing.T) {
	eng, strat, _, jrnl, _ := newEngine(domain.PortfolioDecision{})

	decision := eng.OnMarket(quoteEvent("AAPL", 100, baseTS))

	assert.Nil(t, decision)
	assert.Equal(t, 1, strat.calls, "the strategy still runs on empty decisions")
	assert.Empty(t, jrnl.Decisions)
}

func TestOperatorPauseSuppressesStrategy(t *testing.T) {
	eng, strat, _, jrnl, _ := newEngine(domain.PortfolioDecision{
		FinalIntents: []domain.OrderIntent{intent("AAPL", domain.SideBuy)},
	})

	eng.OnOverride(domain.OverrideEvent{TS: baseTS, Command: "pause"})
	require.True(t, eng.IsPaused())

	assert.Nil(t, eng.OnMarket(quoteEvent("AAPL", 100, baseTS)))
	assert.Nil(t, eng.OnMarket(quoteEvent("AAPL", 101, baseTS)))
	assert.Zero(t, strat.calls, "a paused engine never invokes the strategy")

	// The override itself is journaled; no decisions are.
	assert.Len(t, jrnl.Overrides, 1)
	assert.Empty(t, jrnl.Decisions)

	eng.OnOverride(domain.OverrideEvent{TS: baseTS, Command: "resume"})
	assert.False(t, eng.IsPaused())
	assert.NotNil(t, eng.OnMarket(quoteEvent("AAPL", 102, baseTS)))
	assert.Equal(t, 1, strat.calls)
}

func TestRiskPauseExpiresOnItsOwn(t *testing.T) {
	until := baseTS.Add(5 * time.Minute)
	eng, _, _, _, clock := newEngine(domain.PortfolioDecision{PauseUntil: &until})

	eng.OnMarket(quoteEvent("AAPL", 100, baseTS))
	assert.True(t, eng.IsPaused())

	clock.Set(until.Add(time.Second))
	assert.False(t, eng.IsPaused(), "a risk pause lifts without an operator resume")
}

func TestResumeClearsRiskPause(t *testing.T) {
	until := baseTS.Add(5 * time.Minute)
	eng, _, _, _, _ := newEngine(domain.PortfolioDecision{PauseUntil: &until})

	eng.OnMarket(quoteEvent("AAPL", 100, baseTS))
	require.True(t, eng.IsPaused())
	require.NotNil(t, eng.PauseUntil())

	eng.OnOverride(domain.OverrideEvent{TS: baseTS, Command: "resume"})
	assert.False(t, eng.IsPaused())
	assert.Nil(t, eng.PauseUntil(), "resume clears the risk cooldown too")
}

func TestPauseDeadlineOnlyExtends(t *testing.T) {
	expired := baseTS.Add(-time.Minute)
	eng, _, port, _, clock := newEngine(domain.PortfolioDecision{PauseUntil: &expired})

	// An already-expired deadline is recorded but does not pause.
	eng.OnMarket(quoteEvent("AAPL", 100, baseTS))
	require.Equal(t, expired, *eng.PauseUntil())
	require.False(t, eng.IsPaused())

	// A later deadline extends.
	far := baseTS.Add(10 * time.Minute)
	port.decision = domain.PortfolioDecision{PauseUntil: &far}
	eng.OnMarket(quoteEvent("AAPL", 100, baseTS))
	require.Equal(t, far, *eng.PauseUntil())

	// Once far has passed, an earlier deadline must not replace it.
	clock.Set(far.Add(time.Second))
	near := baseTS.Add(5 * time.Minute)
	port.decision = domain.PortfolioDecision{PauseUntil: &near}
	eng.OnMarket(quoteEvent("AAPL", 100, clock.Now()))
	assert.Equal(t, far, *eng.PauseUntil())
}

func TestOnFillsAppliesAndRecords(t *testing.T) {
	eng, _, port, jrnl, _ := newEngine(domain.PortfolioDecision{})

	fills := []domain.Fill{
		{Symbol: "AAPL", Side: domain.SideBuy, Qty: decimal.NewFromInt(2), Price: decimal.NewFromInt(100), TS: baseTS},
		{Symbol: "MSFT", Side: domain.SideSell, Qty: decimal.NewFromInt(1), Price: decimal.NewFromInt(50), TS: baseTS},
	}
	eng.OnFills(fills, baseTS)

	assert.Equal(t, fills, port.fills)
	assert.Equal(t, fills, jrnl.Fills)
}

func TestUnknownOverrideForwardsToPortfolio(t *testing.T) {
	eng, _, port, jrnl, _ := newEngine(domain.PortfolioDecision{})

	event := domain.OverrideEvent{TS: baseTS, Command: "disable_symbol", Args: map[string]string{"symbol": "AAPL"}}
	eng.OnOverride(event)

	require.Len(t, port.overrides, 1)
	assert.Equal(t, event, port.overrides[0])
	assert.Len(t, jrnl.Overrides, 1)
}
