package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Clock supplies the current instant. Swappable for a fixed clock in
// backtests and tests.
type Clock interface {
	Now() time.Time
}

// PortfolioView is the read-only capability a strategy receives. A strategy
// can inspect positions but cannot mutate portfolio state.
type PortfolioView interface {
	// Position returns the signed quantity currently held for a symbol
	// (zero when flat).
	Position(symbol string) decimal.Decimal
}

// Strategy consumes one market event plus read-only position info and
// produces zero or more proposed trade intents. Implementations must be
// deterministic given their inputs.
type Strategy interface {
	Name() string
	OnMarket(event MarketEvent, view PortfolioView) []OrderIntent
}

// PortfolioManager is the risk-constrained co-decision maker: it transforms
// proposed intents into final intents, applies fills, and handles
// portfolio-scoped operator overrides.
type PortfolioManager interface {
	PortfolioView
	Manage(event MarketEvent, proposed []OrderIntent) PortfolioDecision
	ApplyFill(fill Fill)
	OnOverride(event OverrideEvent)
}

// Journal records decision and override events for audit/replay. It must be
// durable and ordered per run; the engine treats writes as fire-and-forget.
type Journal interface {
	RecordDecision(event DecisionEvent)
	RecordOverride(event OverrideEvent)
}

// FillRecorder is an optional Journal extension for persisting fills.
type FillRecorder interface {
	RecordFill(fill Fill)
}

// Broker turns approved intents into orders and reports resulting fills.
// The engine never calls this directly; apps bridge decisions to it.
type Broker interface {
	PlaceOrders(ctx context.Context, intents []OrderIntent) ([]string, error)
	PollFills(ctx context.Context) ([]Fill, error)
}

// MarketData supplies historical bars and live quotes. Used by the apps to
// construct MarketEvents; never called from the engine core.
type MarketData interface {
	GetDailyBars(ctx context.Context, symbols []string, start, end time.Time) ([]Bar, error)
	GetQuotes(ctx context.Context, symbols []string) (map[string]Quote, error)
}

// OverrideSource delivers operator override commands at least once. The
// transport acknowledges each message on delivery so commands are not
// replayed indefinitely across engine restarts.
type OverrideSource interface {
	PollOverrides(ctx context.Context, maxItems int) ([]OverrideEvent, error)
}
