package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/algotrader/internal/domain"
)

type stubView struct {
	positions map[string]decimal.Decimal
}

func (v *stubView) Position(symbol string) decimal.Decimal {
	return v.positions[symbol]
}

func quoteAt(symbol string, price int64) domain.MarketEvent {
	return domain.NewQuoteEvent(domain.Quote{
		Symbol: symbol,
		TS:     time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC),
		Price:  decimal.NewFromInt(price),
	})
}

func TestNewSMACrossoverRejectsBadWindows(t *testing.T) {
	cases := []struct {
		name       string
		fast, slow int
	}{
		{"zero fast", 0, 10},
		{"zero slow", 5, 0},
		{"negative", -1, 10},
		{"fast equals slow", 10, 10},
		{"fast longer than slow", 20, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSMACrossover(tc.fast, tc.slow)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidWindow)
		})
	}
}

func TestSMACrossoverWarmupEmitsNothing(t *testing.T) {
	s, err := NewSMACrossover(2, 3)
	require.NoError(t, err)
	view := &stubView{positions: map[string]decimal.Decimal{}}

	assert.Nil(t, s.OnMarket(quoteAt("AAPL", 10), view))
	assert.Nil(t, s.OnMarket(quoteAt("AAPL", 10), view))
}

func TestSMACrossoverBuysOnCrossUpOnce(t *testing.T) {
	s, err := NewSMACrossover(2, 3)
	require.NoError(t, err)
	view := &stubView{positions: map[string]decimal.Decimal{}}

	for _, px := range []int64{10, 10, 10} {
		assert.Nil(t, s.OnMarket(quoteAt("AAPL", px), view))
	}

	intents := s.OnMarket(quoteAt("AAPL", 20), view)
	require.Len(t, intents, 1)
	assert.Equal(t, domain.SideBuy, intents[0].Side)
	assert.Equal(t, "AAPL", intents[0].Symbol)
	assert.True(t, intents[0].Qty.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, ReasonCrossUp, intents[0].Reason)

	// While long, a continued uptrend produces no duplicate signal.
	view.positions["AAPL"] = decimal.NewFromInt(1)
	assert.Nil(t, s.OnMarket(quoteAt("AAPL", 30), view))
}

func TestSMACrossoverSellsFullPositionOnCrossDown(t *testing.T) {
	s, err := NewSMACrossover(2, 3)
	require.NoError(t, err)
	view := &stubView{positions: map[string]decimal.Decimal{}}

	for _, px := range []int64{10, 10, 10, 20} {
		s.OnMarket(quoteAt("AAPL", px), view)
	}
	view.positions["AAPL"] = decimal.NewFromInt(3)
	s.OnMarket(quoteAt("AAPL", 30), view)

	intents := s.OnMarket(quoteAt("AAPL", 1), view)
	require.Len(t, intents, 1)
	assert.Equal(t, domain.SideSell, intents[0].Side)
	assert.True(t, intents[0].Qty.Equal(decimal.NewFromInt(3)), "sell covers the whole position")
	assert.Equal(t, ReasonCrossDown, intents[0].Reason)
}

func TestSMACrossoverTracksSymbolsIndependently(t *testing.T) {
	s, err := NewSMACrossover(2, 3)
	require.NoError(t, err)
	view := &stubView{positions: map[string]decimal.Decimal{}}

	for _, px := range []int64{10, 10, 10} {
		s.OnMarket(quoteAt("AAPL", px), view)
	}
	// MSFT has no history yet; its warm-up is unaffected by AAPL.
	assert.Nil(t, s.OnMarket(quoteAt("MSFT", 100), view))

	intents := s.OnMarket(quoteAt("AAPL", 20), view)
	assert.Len(t, intents, 1)
}
