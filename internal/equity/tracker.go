// Package equity tracks cash, positions, and the equity curve used by the
// portfolio's drawdown controls.
package equity

import (
	"github.com/shopspring/decimal"

	"github.com/quantfold/algotrader/internal/domain"
)

// DefaultCash is the starting cash balance when none is configured.
var DefaultCash = decimal.NewFromInt(100_000)

// Tracker owns cash, per-symbol position size, per-symbol weighted-average
// cost, and per-symbol latest marks. Equity is defined as
// cash + sum(position_qty[s] * latest_price[s]) over symbols with a known
// price. Not safe for concurrent use; a Tracker belongs to exactly one
// portfolio.
type Tracker struct {
	Cash decimal.Decimal

	positions   map[string]decimal.Decimal
	avgCost     map[string]decimal.Decimal
	latestPrice map[string]decimal.Decimal

	peakEquity  decimal.Decimal
	lastEquity  decimal.Decimal
	realizedPnL decimal.Decimal
}

// NewTracker returns a Tracker seeded with the given cash balance. The peak
// equity starts at the cash balance so drawdown is zero until equity moves.
func NewTracker(cash decimal.Decimal) *Tracker {
	return &Tracker{
		Cash:        cash,
		positions:   make(map[string]decimal.Decimal),
		avgCost:     make(map[string]decimal.Decimal),
		latestPrice: make(map[string]decimal.Decimal),
		peakEquity:  cash,
		lastEquity:  cash,
	}
}

// UpdatePrice records the latest mark for a symbol.
func (t *Tracker) UpdatePrice(symbol string, price decimal.Decimal) {
	t.latestPrice[symbol] = price
}

// Position returns the signed quantity held for a symbol (zero when flat).
func (t *Tracker) Position(symbol string) decimal.Decimal {
	return t.positions[symbol]
}

// AvgCost returns the weighted-average cost basis for a symbol, and whether
// a position exists.
func (t *Tracker) AvgCost(symbol string) (decimal.Decimal, bool) {
	c, ok := t.avgCost[symbol]
	return c, ok
}

// LatestPrice returns the last recorded mark for a symbol, and whether one
// has been seen.
func (t *Tracker) LatestPrice(symbol string) (decimal.Decimal, bool) {
	p, ok := t.latestPrice[symbol]
	return p, ok
}

// Positions returns a copy of the open positions by symbol.
func (t *Tracker) Positions() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(t.positions))
	for s, q := range t.positions {
		out[s] = q
	}
	return out
}

// Equity returns current marked-to-market equity. Symbols without a recorded
// price are excluded rather than treated as zero, so equity can under-count
// until a mark arrives.
func (t *Tracker) Equity() decimal.Decimal {
	total := t.Cash
	for sym, qty := range t.positions {
		px, ok := t.latestPrice[sym]
		if !ok {
			continue
		}
		total = total.Add(qty.Mul(px))
	}
	return total
}

// Refresh recomputes equity, advances the peak, and returns the current
// drawdown fraction (peak - equity) / peak, or zero when peak <= 0. Call
// before any drawdown-dependent risk check.
func (t *Tracker) Refresh() decimal.Decimal {
	eq := t.Equity()
	t.lastEquity = eq
	if eq.GreaterThan(t.peakEquity) {
		t.peakEquity = eq
	}
	if t.peakEquity.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return t.peakEquity.Sub(eq).Div(t.peakEquity)
}

// LastEquity returns the equity computed by the most recent Refresh.
func (t *Tracker) LastEquity() decimal.Decimal { return t.lastEquity }

// PeakEquity returns the highest equity seen so far.
func (t *Tracker) PeakEquity() decimal.Decimal { return t.peakEquity }

// RealizedPnL returns the cumulative realized P&L across all fills.
func (t *Tracker) RealizedPnL() decimal.Decimal { return t.realizedPnL }

// ApplyFill applies an executed fill and returns the realized P&L (always
// zero for buys, signed for sells; negative means a loss).
//
// Buys move cash out and re-weight the average cost; sells move cash in and
// realize (price - avg_cost) * qty. A position that reaches exactly zero is
// removed together with its cost basis.
func (t *Tracker) ApplyFill(fill domain.Fill) decimal.Decimal {
	qty := fill.Qty
	px := fill.Price

	if fill.Side == domain.SideBuy {
		t.Cash = t.Cash.Sub(qty.Mul(px))
		curQty := t.positions[fill.Symbol]
		curCost := t.avgCost[fill.Symbol]
		newQty := curQty.Add(qty)
		if newQty.IsZero() {
			delete(t.positions, fill.Symbol)
			delete(t.avgCost, fill.Symbol)
			return decimal.Zero
		}
		newCost := curQty.Mul(curCost).Add(qty.Mul(px)).Div(newQty)
		t.avgCost[fill.Symbol] = newCost
		t.positions[fill.Symbol] = newQty
		return decimal.Zero
	}

	// SELL
	t.Cash = t.Cash.Add(qty.Mul(px))
	curQty := t.positions[fill.Symbol]
	curCost := t.avgCost[fill.Symbol]
	realized := px.Sub(curCost).Mul(qty)
	t.realizedPnL = t.realizedPnL.Add(realized)
	newQty := curQty.Sub(qty)
	if newQty.IsZero() {
		delete(t.positions, fill.Symbol)
		delete(t.avgCost, fill.Symbol)
	} else {
		t.positions[fill.Symbol] = newQty
	}
	return realized
}
