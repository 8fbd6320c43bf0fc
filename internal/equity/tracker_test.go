package equity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/algotrader/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fill(symbol string, side domain.Side, qty, price string) domain.Fill {
	return domain.Fill{
		Symbol: symbol,
		Side:   side,
		Qty:    d(qty),
		Price:  d(price),
		TS:     time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC),
	}
}

func TestApplyFillBuyUpdatesCashAndPosition(t *testing.T) {
	tr := NewTracker(d("100000"))

	realized := tr.ApplyFill(fill("AAPL", domain.SideBuy, "10", "100"))

	assert.True(t, realized.IsZero())
	assert.True(t, tr.Cash.Equal(d("99000")), "cash=%s", tr.Cash)
	assert.True(t, tr.Position("AAPL").Equal(d("10")))

	cost, ok := tr.AvgCost("AAPL")
	require.True(t, ok)
	assert.True(t, cost.Equal(d("100")))
}

func TestApplyFillBuyReweightsAverageCost(t *testing.T) {
	tr := NewTracker(d("100000"))

	tr.ApplyFill(fill("AAPL", domain.SideBuy, "10", "100"))
	tr.ApplyFill(fill("AAPL", domain.SideBuy, "10", "120"))

	cost, ok := tr.AvgCost("AAPL")
	require.True(t, ok)
	assert.True(t, cost.Equal(d("110")), "avg cost=%s", cost)
	assert.True(t, tr.Position("AAPL").Equal(d("20")))
}

func TestApplyFillSellRealizesAgainstAverageCost(t *testing.T) {
	tr := NewTracker(d("100000"))
	tr.ApplyFill(fill("AAPL", domain.SideBuy, "10", "100"))

	realized := tr.ApplyFill(fill("AAPL", domain.SideSell, "5", "150"))

	assert.True(t, realized.Equal(d("250")), "realized=%s", realized)
	assert.True(t, tr.Cash.Equal(d("99750")), "cash=%s", tr.Cash)
	assert.True(t, tr.Position("AAPL").Equal(d("5")))
	assert.True(t, tr.RealizedPnL().Equal(d("250")))

	// The partial sell keeps the cost basis.
	cost, ok := tr.AvgCost("AAPL")
	require.True(t, ok)
	assert.True(t, cost.Equal(d("100")))
}

func TestApplyFillClosingRemovesPositionAndCost(t *testing.T) {
	tr := NewTracker(d("100000"))
	tr.ApplyFill(fill("AAPL", domain.SideBuy, "10", "100"))
	tr.ApplyFill(fill("AAPL", domain.SideSell, "10", "90"))

	assert.True(t, tr.Position("AAPL").IsZero())
	_, ok := tr.AvgCost("AAPL")
	assert.False(t, ok, "cost basis must be removed with the position")
	assert.Empty(t, tr.Positions())
	assert.True(t, tr.RealizedPnL().Equal(d("-100")))
}

func TestPositionIsSignedSumOfFills(t *testing.T) {
	tr := NewTracker(d("100000"))
	tr.ApplyFill(fill("MSFT", domain.SideBuy, "10", "50"))
	tr.ApplyFill(fill("MSFT", domain.SideBuy, "5", "52"))
	tr.ApplyFill(fill("MSFT", domain.SideSell, "8", "55"))

	assert.True(t, tr.Position("MSFT").Equal(d("7")))
}

func TestEquityExcludesUnpricedSymbols(t *testing.T) {
	tr := NewTracker(d("1000"))
	tr.ApplyFill(fill("AAPL", domain.SideBuy, "2", "100"))
	tr.ApplyFill(fill("MSFT", domain.SideBuy, "3", "50"))

	// Only AAPL has a mark.
	tr.UpdatePrice("AAPL", d("110"))

	// 1000 - 200 - 150 cash, plus 2 * 110 for AAPL; MSFT excluded.
	assert.True(t, tr.Equity().Equal(d("870")), "equity=%s", tr.Equity())
}

func TestRefreshTracksPeakAndDrawdown(t *testing.T) {
	tr := NewTracker(d("1000"))
	tr.ApplyFill(fill("AAPL", domain.SideBuy, "10", "100"))

	tr.UpdatePrice("AAPL", d("120"))
	dd := tr.Refresh()
	assert.True(t, dd.IsZero())
	assert.True(t, tr.PeakEquity().Equal(d("1200")))

	tr.UpdatePrice("AAPL", d("90"))
	dd = tr.Refresh()
	// equity 900, peak 1200 -> drawdown 0.25
	assert.True(t, dd.Equal(d("0.25")), "drawdown=%s", dd)
	assert.True(t, tr.LastEquity().Equal(d("900")))
	// Peak never decreases.
	assert.True(t, tr.PeakEquity().Equal(d("1200")))
}

func TestRefreshZeroPeakReturnsZeroDrawdown(t *testing.T) {
	tr := NewTracker(decimal.Zero)
	assert.True(t, tr.Refresh().IsZero())
}
