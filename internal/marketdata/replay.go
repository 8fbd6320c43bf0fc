package marketdata

import (
	"context"
	"time"

	"github.com/quantfold/algotrader/internal/domain"
)

// Replay serves a pre-loaded bar series as live quotes, one bar per symbol
// per poll. It lets the forward-test runner exercise the full quote path
// (polling, decisions, paper fills) without an upstream data vendor.
type Replay struct {
	bySymbol map[string][]domain.Bar
	cursor   map[string]int
	clock    domain.Clock
}

// NewReplay builds a replay source over the given bars.
func NewReplay(bars []domain.Bar, clock domain.Clock) *Replay {
	bySymbol := make(map[string][]domain.Bar)
	for _, b := range bars {
		bySymbol[b.Symbol] = append(bySymbol[b.Symbol], b)
	}
	return &Replay{
		bySymbol: bySymbol,
		cursor:   make(map[string]int),
		clock:    clock,
	}
}

// GetDailyBars returns the loaded bars for the requested symbols and range.
func (r *Replay) GetDailyBars(_ context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error) {
	var out []domain.Bar
	for _, sym := range symbols {
		for _, b := range r.bySymbol[sym] {
			if b.Day.Before(start) || b.Day.After(end) {
				continue
			}
			out = append(out, b)
		}
	}
	return out, nil
}

// GetQuotes advances each symbol's cursor by one bar and returns the bar
// close as a quote. Symbols that are exhausted are omitted from the result.
func (r *Replay) GetQuotes(_ context.Context, symbols []string) (map[string]domain.Quote, error) {
	out := make(map[string]domain.Quote)
	now := r.clock.Now()
	for _, sym := range symbols {
		series := r.bySymbol[sym]
		i := r.cursor[sym]
		if i >= len(series) {
			continue
		}
		r.cursor[sym] = i + 1
		out[sym] = domain.Quote{
			Symbol: sym,
			TS:     now,
			Price:  series[i].Close,
		}
	}
	return out, nil
}

// Exhausted reports whether every symbol's series has been fully replayed.
func (r *Replay) Exhausted(symbols []string) bool {
	for _, sym := range symbols {
		if r.cursor[sym] < len(r.bySymbol[sym]) {
			return false
		}
	}
	return true
}
