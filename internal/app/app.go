// Package app assembles the configured trading application: it wires the
// engine, portfolio, journal, transports, and market data into either a
// backtest or a forward paper run.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quantfold/algotrader/internal/config"
)

// App runs one trading session in the configured mode.
type App struct {
	cfg    config.Config
	logger *slog.Logger
}

// New creates an App from a validated configuration.
func New(cfg config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

// Run wires and executes the configured mode until completion or context
// cancellation.
func (a *App) Run(ctx context.Context) error {
	switch strings.ToLower(strings.TrimSpace(a.cfg.Mode)) {
	case "backtest":
		bt, err := NewBacktest(ctx, a.cfg, a.logger)
		if err != nil {
			return fmt.Errorf("app: wire backtest: %w", err)
		}
		return bt.Run(ctx)
	case "forward":
		fw, err := NewForward(ctx, a.cfg, a.logger)
		if err != nil {
			return fmt.Errorf("app: wire forward: %w", err)
		}
		return fw.Run(ctx)
	default:
		return fmt.Errorf("app: unknown mode %q", a.cfg.Mode)
	}
}
