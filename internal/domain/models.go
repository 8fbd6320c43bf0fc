// Package domain defines the core data model of the trading engine: market
// observations, order intents, fills, and the events exchanged between the
// engine, its strategy, and its collaborators. All monetary values use
// fixed-point decimals; nothing in this package performs I/O.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order or fill.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Bar is a daily OHLCV observation for one symbol. Produced by historical
// market-data retrieval; immutable once constructed.
type Bar struct {
	Symbol string
	Day    time.Time // calendar day, UTC midnight
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// barCloseHour is the assumed execution hour for daily bars (16:00 UTC,
// regular-session close).
const barCloseHour = 16

// CloseTime returns the instant a daily bar is considered executable.
func (b Bar) CloseTime() time.Time {
	d := b.Day.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), barCloseHour, 0, 0, 0, time.UTC)
}

// Quote is a point-in-time price observation for one symbol, produced by live
// polling. Bid, Ask, and Volume are optional.
type Quote struct {
	Symbol string
	TS     time.Time
	Price  decimal.Decimal
	Bid    *decimal.Decimal
	Ask    *decimal.Decimal
	Volume *int64
}

// OrderIntent is a proposed, not-yet-approved order. Strategies create
// intents; the portfolio may resize them during risk evaluation; once placed
// with a broker an intent is never mutated again.
type OrderIntent struct {
	Symbol string
	Side   Side
	Qty    decimal.Decimal // > 0
	Reason string
	// ReferencePrice is the price the intent was sized against. It is used
	// later to measure slippage on the resulting fill. Nil when unknown.
	ReferencePrice *decimal.Decimal
}

// Fill is a completed execution reported by a broker. Consumed exactly once
// by Engine.OnFills.
type Fill struct {
	Symbol string
	Side   Side
	Qty    decimal.Decimal
	Price  decimal.Decimal
	TS     time.Time
}
