package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/quantfold/algotrader/internal/domain"
)

// RunStore persists run metadata and the daily-bar cache.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a RunStore backed by the given connection pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// CreateRun records a new run with its mode and configuration snapshot.
func (s *RunStore) CreateRun(ctx context.Context, runID, mode string, cfg map[string]any) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("postgres: marshal run config: %w", err)
	}
	const query = `INSERT INTO runs (run_id, mode, config) VALUES ($1, $2, $3)
		ON CONFLICT (run_id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, runID, mode, cfgJSON); err != nil {
		return fmt.Errorf("postgres: create run %s: %w", runID, err)
	}
	return nil
}

// UpsertDailyBars writes bars into the cache, replacing existing rows for
// the same (symbol, day).
func (s *RunStore) UpsertDailyBars(ctx context.Context, bars []domain.Bar) error {
	const query = `INSERT INTO daily_bar (symbol, day, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, day) DO UPDATE SET
			open = EXCLUDED.open, high = EXCLUDED.high,
			low = EXCLUDED.low, close = EXCLUDED.close,
			volume = EXCLUDED.volume`
	for _, b := range bars {
		_, err := s.pool.Exec(ctx, query,
			b.Symbol, b.Day, b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return fmt.Errorf("postgres: upsert bar %s %s: %w", b.Symbol, b.Day.Format("2006-01-02"), err)
		}
	}
	return nil
}

// GetDailyBars reads cached bars for the symbols inside [start, end], sorted
// by (day, symbol) as the backtest loop expects.
func (s *RunStore) GetDailyBars(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error) {
	const query = `SELECT symbol, day, open, high, low, close, volume
		FROM daily_bar
		WHERE symbol = ANY($1) AND day BETWEEN $2 AND $3
		ORDER BY day, symbol`
	rows, err := s.pool.Query(ctx, query, symbols, start, end)
	if err != nil {
		return nil, fmt.Errorf("postgres: get daily bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var (
			b                          domain.Bar
			openS, highS, lowS, closeS string
		)
		if err := rows.Scan(&b.Symbol, &b.Day, &openS, &highS, &lowS, &closeS, &b.Volume); err != nil {
			return nil, fmt.Errorf("postgres: scan bar: %w", err)
		}
		if b.Open, err = decimal.NewFromString(openS); err != nil {
			return nil, fmt.Errorf("postgres: parse open: %w", err)
		}
		if b.High, err = decimal.NewFromString(highS); err != nil {
			return nil, fmt.Errorf("postgres: parse high: %w", err)
		}
		if b.Low, err = decimal.NewFromString(lowS); err != nil {
			return nil, fmt.Errorf("postgres: parse low: %w", err)
		}
		if b.Close, err = decimal.NewFromString(closeS); err != nil {
			return nil, fmt.Errorf("postgres: parse close: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: get daily bars rows: %w", err)
	}
	return bars, nil
}
