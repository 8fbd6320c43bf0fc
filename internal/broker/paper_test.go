package broker

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/algotrader/internal/domain"
)

func TestPlaceOrdersFillsAtLatestPrice(t *testing.T) {
	b := NewPaper()
	ts := time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)
	b.SetPrice("AAPL", decimal.NewFromInt(100), ts)
	b.SetPrice("AAPL", decimal.NewFromInt(105), ts)

	ids, err := b.PlaceOrders(context.Background(), []domain.OrderIntent{
		{Symbol: "AAPL", Side: domain.SideBuy, Qty: decimal.NewFromInt(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"paper-1"}, ids)

	fills, err := b.PollFills(context.Background())
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, "AAPL", fills[0].Symbol)
	assert.Equal(t, domain.SideBuy, fills[0].Side)
	assert.True(t, fills[0].Price.Equal(decimal.NewFromInt(105)), "fills execute at the latest price")
	assert.Equal(t, ts, fills[0].TS)
}

func TestPlaceOrdersWithoutPriceNeverFills(t *testing.T) {
	b := NewPaper()

	ids, err := b.PlaceOrders(context.Background(), []domain.OrderIntent{
		{Symbol: "MSFT", Side: domain.SideBuy, Qty: decimal.NewFromInt(1)},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 1, "the order is accepted even without a price")

	fills, err := b.PollFills(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fills)
}

func TestPollFillsDrainsQueue(t *testing.T) {
	b := NewPaper()
	ts := time.Now().UTC()
	b.SetPrice("AAPL", decimal.NewFromInt(100), ts)

	_, err := b.PlaceOrders(context.Background(), []domain.OrderIntent{
		{Symbol: "AAPL", Side: domain.SideBuy, Qty: decimal.NewFromInt(1)},
		{Symbol: "AAPL", Side: domain.SideSell, Qty: decimal.NewFromInt(1)},
	})
	require.NoError(t, err)

	fills, err := b.PollFills(context.Background())
	require.NoError(t, err)
	assert.Len(t, fills, 2)

	fills, err = b.PollFills(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fills, "fills are delivered exactly once")
}

func TestOrderIDsAreSequential(t *testing.T) {
	b := NewPaper()
	b.SetPrice("AAPL", decimal.NewFromInt(100), time.Now().UTC())

	for i := 1; i <= 3; i++ {
		ids, err := b.PlaceOrders(context.Background(), []domain.OrderIntent{
			{Symbol: "AAPL", Side: domain.SideBuy, Qty: decimal.NewFromInt(1)},
		})
		require.NoError(t, err)
		require.Len(t, ids, 1)
	}
	ids, err := b.PlaceOrders(context.Background(), []domain.OrderIntent{
		{Symbol: "AAPL", Side: domain.SideBuy, Qty: decimal.NewFromInt(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"paper-4"}, ids)
}
