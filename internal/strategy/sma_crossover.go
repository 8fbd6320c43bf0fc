// Package strategy contains the trading strategy contract implementations
// and a registry mapping strategy identifiers to constructors.
package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quantfold/algotrader/internal/domain"
)

const (
	ReasonCrossUp   = "sma_cross_up"
	ReasonCrossDown = "sma_cross_down"
)

// SMACrossover is the reference moving-average crossover strategy.
//
// It keeps a bounded rolling close history per symbol (slow window + 1
// entries) and on each event compares the fast and slow simple moving
// averages: fast above slow while flat or short emits a one-unit BUY; fast at
// or below slow while long emits a SELL for the full position. The
// position-based guard is what prevents duplicate signals, so no previous-tick
// state is consulted.
type SMACrossover struct {
	fastWindow int
	slowWindow int
	unitQty    decimal.Decimal

	closes map[string][]decimal.Decimal
}

// NewSMACrossover builds the strategy. The fast window must be strictly
// shorter than the slow window; both must be positive. This is a
// configuration error and fails fast rather than being silently corrected.
func NewSMACrossover(fastWindow, slowWindow int) (*SMACrossover, error) {
	if fastWindow <= 0 || slowWindow <= 0 {
		return nil, fmt.Errorf("%w: windows must be positive (fast=%d slow=%d)",
			domain.ErrInvalidWindow, fastWindow, slowWindow)
	}
	if fastWindow >= slowWindow {
		return nil, fmt.Errorf("%w: fast window %d must be shorter than slow window %d",
			domain.ErrInvalidWindow, fastWindow, slowWindow)
	}
	return &SMACrossover{
		fastWindow: fastWindow,
		slowWindow: slowWindow,
		unitQty:    decimal.NewFromInt(1),
		closes:     make(map[string][]decimal.Decimal),
	}, nil
}

// Name returns the strategy identifier.
func (s *SMACrossover) Name() string { return "sma_crossover" }

// OnMarket records the event's price and emits at most one intent once the
// slow window is full. Warm-up (insufficient history) is an expected
// condition and returns an empty result, never an error.
func (s *SMACrossover) OnMarket(event domain.MarketEvent, view domain.PortfolioView) []domain.OrderIntent {
	sym := event.Symbol()
	px, ok := event.Price()
	if sym == "" || !ok {
		return nil
	}

	history := append(s.closes[sym], px)
	if keep := s.slowWindow + 1; len(history) > keep {
		history = history[len(history)-keep:]
	}
	s.closes[sym] = history

	if len(history) < s.slowWindow {
		return nil
	}

	fast := sma(history[len(history)-s.fastWindow:])
	slow := sma(history[len(history)-s.slowWindow:])
	pos := view.Position(sym)

	if fast.GreaterThan(slow) && pos.LessThanOrEqual(decimal.Zero) {
		return []domain.OrderIntent{{
			Symbol: sym,
			Side:   domain.SideBuy,
			Qty:    s.unitQty,
			Reason: ReasonCrossUp,
		}}
	}
	if fast.LessThanOrEqual(slow) && pos.GreaterThan(decimal.Zero) {
		return []domain.OrderIntent{{
			Symbol: sym,
			Side:   domain.SideSell,
			Qty:    pos,
			Reason: ReasonCrossDown,
		}}
	}
	return nil
}

func sma(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total.Div(decimal.NewFromInt(int64(len(values))))
}
