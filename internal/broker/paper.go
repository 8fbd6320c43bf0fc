// Package broker provides the in-memory paper broker used by backtests and
// forward-test paper runs.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfold/algotrader/internal/domain"
)

// Paper fills orders immediately at the latest price set via SetPrice.
// Orders for symbols with no known price are accepted (an order id is
// returned) but never fill. Not safe for concurrent use.
type Paper struct {
	prices   map[string]decimal.Decimal
	ts       time.Time
	fills    []domain.Fill
	orderSeq int
}

// NewPaper returns an empty paper broker.
func NewPaper() *Paper {
	return &Paper{prices: make(map[string]decimal.Decimal)}
}

// SetPrice establishes the execution price and timestamp for a symbol.
func (b *Paper) SetPrice(symbol string, price decimal.Decimal, ts time.Time) {
	b.prices[symbol] = price
	b.ts = ts
}

// PlaceOrders queues immediate fills at the latest known price.
func (b *Paper) PlaceOrders(_ context.Context, intents []domain.OrderIntent) ([]string, error) {
	ids := make([]string, 0, len(intents))
	for _, intent := range intents {
		b.orderSeq++
		ids = append(ids, fmt.Sprintf("paper-%d", b.orderSeq))

		price, ok := b.prices[intent.Symbol]
		if !ok {
			// No price, no fill.
			continue
		}
		ts := b.ts
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		b.fills = append(b.fills, domain.Fill{
			Symbol: intent.Symbol,
			Side:   intent.Side,
			Qty:    intent.Qty,
			Price:  price,
			TS:     ts,
		})
	}
	return ids, nil
}

// PollFills returns and clears the queued fills.
func (b *Paper) PollFills(_ context.Context) ([]domain.Fill, error) {
	fills := b.fills
	b.fills = nil
	return fills, nil
}
