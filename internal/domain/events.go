package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketEventKind discriminates the payload of a MarketEvent.
type MarketEventKind string

const (
	MarketEventBar   MarketEventKind = "bar"
	MarketEventQuote MarketEventKind = "quote"
)

// MarketEvent is the unit of work the engine consumes per tick: either a
// daily bar or a live quote, tagged by Kind. Exactly one of Bar/Quote is set.
type MarketEvent struct {
	Kind  MarketEventKind
	Bar   *Bar
	Quote *Quote
}

// NewBarEvent wraps a bar in a MarketEvent.
func NewBarEvent(b Bar) MarketEvent {
	return MarketEvent{Kind: MarketEventBar, Bar: &b}
}

// NewQuoteEvent wraps a quote in a MarketEvent.
func NewQuoteEvent(q Quote) MarketEvent {
	return MarketEvent{Kind: MarketEventQuote, Quote: &q}
}

// Symbol returns the symbol the event refers to, or "" for a malformed event.
func (e MarketEvent) Symbol() string {
	switch e.Kind {
	case MarketEventBar:
		if e.Bar != nil {
			return e.Bar.Symbol
		}
	case MarketEventQuote:
		if e.Quote != nil {
			return e.Quote.Symbol
		}
	}
	return ""
}

// Price returns the tradable price carried by the event (bar close or quote
// last) and whether one is present.
func (e MarketEvent) Price() (decimal.Decimal, bool) {
	switch e.Kind {
	case MarketEventBar:
		if e.Bar != nil {
			return e.Bar.Close, true
		}
	case MarketEventQuote:
		if e.Quote != nil {
			return e.Quote.Price, true
		}
	}
	return decimal.Decimal{}, false
}

// Time returns the event's effective timestamp: the quote time, or the bar's
// close time for daily bars.
func (e MarketEvent) Time() time.Time {
	switch e.Kind {
	case MarketEventBar:
		if e.Bar != nil {
			return e.Bar.CloseTime()
		}
	case MarketEventQuote:
		if e.Quote != nil {
			return e.Quote.TS
		}
	}
	return time.Time{}
}

// DecisionEvent is the journaled record of one tick's final, risk-approved
// intents, together with what was proposed and why anything was changed.
type DecisionEvent struct {
	TS              time.Time
	OrderIntents    []OrderIntent // final, post-risk
	ProposedIntents []OrderIntent
	Audit           Audit
}

// OverrideEvent is an operator-issued command delivered at least once over
// the override transport. Args are free-form string pairs; unrecognized
// commands are ignored by consumers.
type OverrideEvent struct {
	TS      time.Time
	Command string
	Args    map[string]string
}

// Arg returns the named argument or "".
func (e OverrideEvent) Arg(key string) string {
	if e.Args == nil {
		return ""
	}
	return e.Args[key]
}
