// Package report renders a human-readable summary of a completed backtest.
package report

import (
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"

	"github.com/quantfold/algotrader/internal/equity"
)

// Summary captures the run-level outcome the backtest loop accumulates.
type Summary struct {
	RunID       string
	Symbols     []string
	BarsFed     int
	Decisions   int
	BuyIntents  int
	SellIntents int
	FillsTotal  int
	RealizedPnL decimal.Decimal
}

// Render writes the run summary plus the final portfolio state as a table.
func Render(w io.Writer, s Summary, tracker *equity.Tracker) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("BACKTEST SUMMARY")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"Run", s.RunID},
		{"Bars fed", s.BarsFed},
		{"Decisions", s.Decisions},
		{"Buy intents", s.BuyIntents},
		{"Sell intents", s.SellIntents},
		{"Fills", s.FillsTotal},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Final cash", tracker.Cash.StringFixed(2)},
		{"Final equity", tracker.Equity().StringFixed(2)},
		{"Peak equity", tracker.PeakEquity().StringFixed(2)},
		{"Realized PnL", s.RealizedPnL.StringFixed(2)},
	})

	positions := tracker.Positions()
	if len(positions) > 0 {
		symbols := make([]string, 0, len(positions))
		for sym := range positions {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)

		t.AppendSeparator()
		for _, sym := range symbols {
			t.AppendRow(table.Row{"Open " + sym, positions[sym].String()})
		}
	}

	t.Render()
}
