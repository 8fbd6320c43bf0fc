// Package marketdata provides MarketData implementations for backtests and
// paper forward runs: a CSV bar loader and a bar-replay quote source.
package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfold/algotrader/internal/domain"
)

// CSVBars loads daily bars from a CSV file with the header
// symbol,day,open,high,low,close,volume (day as YYYY-MM-DD).
type CSVBars struct {
	Path string
}

// NewCSVBars returns a provider reading from the given file.
func NewCSVBars(path string) *CSVBars {
	return &CSVBars{Path: path}
}

// GetDailyBars reads bars for the requested symbols inside [start, end],
// sorted by (day, symbol).
func (p *CSVBars) GetDailyBars(_ context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error) {
	file, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("marketdata: open %s: %w", p.Path, err)
	}
	defer file.Close()

	want := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		want[s] = struct{}{}
	}

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil { // header
		return nil, fmt.Errorf("marketdata: read header: %w", err)
	}

	var bars []domain.Bar
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("marketdata: read line %d: %w", line+1, err)
		}
		line++
		if len(record) < 7 {
			return nil, fmt.Errorf("marketdata: line %d: expected 7 columns, got %d", line, len(record))
		}

		if _, ok := want[record[0]]; len(want) > 0 && !ok {
			continue
		}

		bar, err := parseBarRecord(record)
		if err != nil {
			return nil, fmt.Errorf("marketdata: line %d: %w", line, err)
		}
		if bar.Day.Before(start) || bar.Day.After(end) {
			continue
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool {
		if !bars[i].Day.Equal(bars[j].Day) {
			return bars[i].Day.Before(bars[j].Day)
		}
		return bars[i].Symbol < bars[j].Symbol
	})
	return bars, nil
}

// GetQuotes is unsupported for a historical file source.
func (p *CSVBars) GetQuotes(_ context.Context, _ []string) (map[string]domain.Quote, error) {
	return nil, fmt.Errorf("marketdata: csv source has no live quotes: %w", domain.ErrNotFound)
}

func parseBarRecord(record []string) (domain.Bar, error) {
	day, err := time.ParseInLocation("2006-01-02", record[1], time.UTC)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parse day %q: %w", record[1], err)
	}

	prices := make([]decimal.Decimal, 4)
	for i, field := range record[2:6] {
		d, err := decimal.NewFromString(field)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("parse price %q: %w", field, err)
		}
		prices[i] = d
	}

	volume, err := strconv.ParseInt(record[6], 10, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parse volume %q: %w", record[6], err)
	}

	return domain.Bar{
		Symbol: record[0],
		Day:    day,
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: volume,
	}, nil
}
