package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/quantfold/algotrader/internal/domain"
	"github.com/quantfold/algotrader/internal/equity"
)

func TestRenderIncludesRunTotalsAndOpenPositions(t *testing.T) {
	tracker := equity.NewTracker(decimal.NewFromInt(100000))
	tracker.ApplyFill(domain.Fill{
		Symbol: "AAPL",
		Side:   domain.SideBuy,
		Qty:    decimal.NewFromInt(5),
		Price:  decimal.NewFromInt(100),
		TS:     time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC),
	})
	tracker.UpdatePrice("AAPL", decimal.NewFromInt(110))

	var out bytes.Buffer
	Render(&out, Summary{
		RunID:       "run-42",
		Symbols:     []string{"AAPL"},
		BarsFed:     55,
		Decisions:   2,
		BuyIntents:  1,
		SellIntents: 1,
		FillsTotal:  2,
		RealizedPnL: decimal.NewFromInt(-19),
	}, tracker)

	text := out.String()
	assert.Contains(t, text, "BACKTEST SUMMARY")
	assert.Contains(t, text, "run-42")
	assert.Contains(t, text, "-19.00")
	assert.Contains(t, text, "Open AAPL")
	assert.Contains(t, text, "99500.00") // final cash
}
