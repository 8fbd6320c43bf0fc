// Package portfolio implements the risk-constrained portfolio manager: an
// ordered pipeline that turns proposed trade intents into final intents,
// applies fills back into the equity tracker, and honors operator overrides.
package portfolio

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfold/algotrader/internal/domain"
	"github.com/quantfold/algotrader/internal/equity"
)

// Risk pipeline reason strings. These appear in audit trails and journals, so
// they are part of the stable surface.
const (
	ReasonMissingPrice      = "missing_price"
	ReasonMaxPositionSize   = "max_position_size"
	ReasonMaxGrossExposure  = "max_gross_exposure"
	ReasonDrawdownFlatten   = "risk_max_drawdown_flatten"
	riskTypeMaxDrawdown     = "max_drawdown"
	riskTypeSlippage        = "slippage_violation"
	riskTypeCooldownOnLoss  = "cooldown_after_loss"
)

// Config holds the risk limits, fixed for the life of a run. Fractions are
// expressed as decimals of equity (0.25 = 25%). A zero fraction disables the
// corresponding check.
type Config struct {
	MaxSymbols                   int
	MaxDrawdown                  decimal.Decimal
	CooldownAfterDrawdownSeconds int
	MaxPositionFraction          decimal.Decimal
	MaxGrossExposureFraction     decimal.Decimal
	MaxSlippageFraction          decimal.Decimal
	CooldownAfterLossSeconds     int
	InitialCash                  decimal.Decimal
}

// DefaultConfig mirrors the limits the engine ships with.
func DefaultConfig() Config {
	return Config{
		MaxSymbols:                   200,
		MaxDrawdown:                  decimal.RequireFromString("0.10"),
		CooldownAfterDrawdownSeconds: 300,
		MaxPositionFraction:          decimal.RequireFromString("0.25"),
		MaxGrossExposureFraction:     decimal.RequireFromString("1.00"),
		MaxSlippageFraction:          decimal.RequireFromString("0.02"),
		CooldownAfterLossSeconds:     0,
		InitialCash:                  equity.DefaultCash,
	}
}

// Validate rejects configurations that cannot express a sane risk policy.
func (c Config) Validate() error {
	if c.MaxSymbols <= 0 {
		return fmt.Errorf("%w: max_symbols must be > 0", domain.ErrInvalidConfig)
	}
	if c.MaxDrawdown.IsNegative() {
		return fmt.Errorf("%w: max_drawdown must be >= 0", domain.ErrInvalidConfig)
	}
	if c.MaxPositionFraction.IsNegative() || c.MaxGrossExposureFraction.IsNegative() {
		return fmt.Errorf("%w: exposure fractions must be >= 0", domain.ErrInvalidConfig)
	}
	if c.MaxSlippageFraction.IsNegative() {
		return fmt.Errorf("%w: max_slippage_fraction must be >= 0", domain.ErrInvalidConfig)
	}
	if c.CooldownAfterDrawdownSeconds < 0 || c.CooldownAfterLossSeconds < 0 {
		return fmt.Errorf("%w: cooldown seconds must be >= 0", domain.ErrInvalidConfig)
	}
	if c.InitialCash.IsNegative() {
		return fmt.Errorf("%w: initial_cash must be >= 0", domain.ErrInvalidConfig)
	}
	return nil
}

// Portfolio applies the layered risk pipeline. Owned by exactly one engine;
// never accessed concurrently.
type Portfolio struct {
	cfg    Config
	equity *equity.Tracker

	disabledSymbols map[string]struct{}
	cooldownUntil   *time.Time

	// Reference price recorded per approved symbol, consumed by the next
	// fill for that symbol to evaluate slippage.
	pendingRefPrice map[string]decimal.Decimal

	// Risk events accumulated since the last Manage call (slippage, loss
	// cooldowns); drained into the next decision's audit.
	pendingRiskEvents []domain.RiskEvent
}

// New constructs a Portfolio from a validated config.
func New(cfg Config) (*Portfolio, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cash := cfg.InitialCash
	if cash.IsZero() {
		cash = equity.DefaultCash
	}
	return &Portfolio{
		cfg:             cfg,
		equity:          equity.NewTracker(cash),
		disabledSymbols: make(map[string]struct{}),
		pendingRefPrice: make(map[string]decimal.Decimal),
	}, nil
}

// Equity exposes the tracker for read-only inspection by apps and reports.
func (p *Portfolio) Equity() *equity.Tracker { return p.equity }

// Position implements domain.PortfolioView.
func (p *Portfolio) Position(symbol string) decimal.Decimal {
	return p.equity.Position(symbol)
}

// CooldownUntil returns the active risk cooldown deadline, if any.
func (p *Portfolio) CooldownUntil() *time.Time { return p.cooldownUntil }

// Manage runs the ordered risk pipeline over the proposed intents and
// returns the decision for this tick. Stages short-circuit:
//
//  1. cooldown gate: an active cooldown suppresses all trading
//  2. drawdown gate: breaching max drawdown flattens open longs and pauses
//  3. per-intent rules: disabled symbols, max symbols, reference price,
//     position-size cap, gross-exposure cap
func (p *Portfolio) Manage(event domain.MarketEvent, proposed []domain.OrderIntent) domain.PortfolioDecision {
	now := event.Time()

	// Mark the event's price before any equity-dependent check.
	if px, ok := event.Price(); ok && event.Symbol() != "" {
		p.equity.UpdatePrice(event.Symbol(), px)
	}

	// Stage 1: cooldown gate.
	if p.cooldownUntil != nil && p.cooldownUntil.After(now) {
		until := *p.cooldownUntil
		return domain.PortfolioDecision{
			ProposedIntents: append([]domain.OrderIntent(nil), proposed...),
			PauseUntil:      &until,
			Audit:           domain.Audit{RiskEvents: p.drainRiskEvents()},
		}
	}

	dd := p.equity.Refresh()
	eq := p.equity.LastEquity()

	// Stage 2: drawdown gate.
	if decision, breached := p.flattenOnDrawdown(dd, eq, now); breached {
		return decision
	}

	// Stage 3: per-intent evaluation, in proposal order.
	var (
		final   []domain.OrderIntent
		audit   domain.Audit
		gross   = p.grossExposure()
		held    = p.heldSymbols()
	)
	for _, intent := range proposed {
		if _, off := p.disabledSymbols[intent.Symbol]; off {
			continue // silently filtered, not a veto
		}
		if intent.Side == domain.SideBuy {
			if _, open := held[intent.Symbol]; !open && len(held) >= p.cfg.MaxSymbols {
				continue // silently filtered
			}
		}

		ref, ok := p.resolveReferencePrice(intent, event)
		if !ok {
			audit.Vetoed = append(audit.Vetoed, domain.Veto{Symbol: intent.Symbol, Reason: ReasonMissingPrice})
			continue
		}

		qty := intent.Qty
		if intent.Side == domain.SideBuy {
			var vetoed bool
			qty, vetoed = p.sizeBuy(intent, qty, ref, eq, gross, &audit)
			if vetoed || qty.LessThanOrEqual(decimal.Zero) {
				continue
			}
			gross = gross.Add(qty.Mul(ref))
			held[intent.Symbol] = struct{}{}
		}

		refCopy := ref
		p.pendingRefPrice[intent.Symbol] = ref
		final = append(final, domain.OrderIntent{
			Symbol:         intent.Symbol,
			Side:           intent.Side,
			Qty:            qty,
			Reason:         intent.Reason,
			ReferencePrice: &refCopy,
		})
	}

	// Stage 4: attach risk events accumulated since the previous call.
	audit.RiskEvents = append(audit.RiskEvents, p.drainRiskEvents()...)

	var pauseUntil *time.Time
	if p.cooldownUntil != nil && p.cooldownUntil.After(now) {
		until := *p.cooldownUntil
		pauseUntil = &until
	}

	return domain.PortfolioDecision{
		ProposedIntents: append([]domain.OrderIntent(nil), proposed...),
		FinalIntents:    final,
		PauseUntil:      pauseUntil,
		Audit:           audit,
	}
}

// flattenOnDrawdown synthesizes SELLs for every open long when drawdown
// breaches the configured limit. Proposed intents are ignored for this tick
// and trading pauses for the configured cooldown.
func (p *Portfolio) flattenOnDrawdown(dd, eq decimal.Decimal, now time.Time) (domain.PortfolioDecision, bool) {
	if p.cfg.MaxDrawdown.LessThanOrEqual(decimal.Zero) || dd.LessThan(p.cfg.MaxDrawdown) {
		return domain.PortfolioDecision{}, false
	}

	var flatten []domain.OrderIntent
	for sym, qty := range p.equity.Positions() {
		if qty.LessThanOrEqual(decimal.Zero) {
			continue
		}
		intent := domain.OrderIntent{
			Symbol: sym,
			Side:   domain.SideSell,
			Qty:    qty,
			Reason: ReasonDrawdownFlatten,
		}
		if px, ok := p.equity.LatestPrice(sym); ok {
			ref := px
			intent.ReferencePrice = &ref
			p.pendingRefPrice[sym] = px
		}
		flatten = append(flatten, intent)
	}

	until := now.Add(time.Duration(p.cfg.CooldownAfterDrawdownSeconds) * time.Second)
	if p.cooldownUntil == nil || until.After(*p.cooldownUntil) {
		p.cooldownUntil = &until
	}
	p.pendingRiskEvents = append(p.pendingRiskEvents, domain.RiskEvent{
		Type: riskTypeMaxDrawdown,
		Fields: map[string]string{
			"drawdown":    dd.String(),
			"equity":      eq.String(),
			"peak_equity": p.equity.PeakEquity().String(),
		},
	})

	return domain.PortfolioDecision{
		FinalIntents: flatten,
		PauseUntil:   &until,
		Audit:        domain.Audit{RiskEvents: p.drainRiskEvents()},
	}, true
}

// resolveReferencePrice picks the price an intent is evaluated against: its
// own reference price, the triggering event's price when the symbols match,
// or the latest recorded mark.
func (p *Portfolio) resolveReferencePrice(intent domain.OrderIntent, event domain.MarketEvent) (decimal.Decimal, bool) {
	if intent.ReferencePrice != nil && intent.ReferencePrice.GreaterThan(decimal.Zero) {
		return *intent.ReferencePrice, true
	}
	if px, ok := event.Price(); ok && event.Symbol() == intent.Symbol && px.GreaterThan(decimal.Zero) {
		return px, true
	}
	if px, ok := p.equity.LatestPrice(intent.Symbol); ok && px.GreaterThan(decimal.Zero) {
		return px, true
	}
	return decimal.Decimal{}, false
}

// sizeBuy applies the position-size and gross-exposure caps to a BUY,
// recording resizes and vetoes in the audit. Returns the (possibly reduced)
// quantity and whether the intent was vetoed.
func (p *Portfolio) sizeBuy(
	intent domain.OrderIntent,
	qty, ref, eq, gross decimal.Decimal,
	audit *domain.Audit,
) (decimal.Decimal, bool) {
	// Position-size cap: resize down to whole units that fit.
	if p.cfg.MaxPositionFraction.GreaterThan(decimal.Zero) {
		maxPosVal := eq.Mul(p.cfg.MaxPositionFraction)
		if qty.Mul(ref).GreaterThan(maxPosVal) {
			newQty := maxPosVal.Div(ref).Floor()
			if newQty.LessThanOrEqual(decimal.Zero) {
				audit.Vetoed = append(audit.Vetoed, domain.Veto{Symbol: intent.Symbol, Reason: ReasonMaxPositionSize})
				return qty, true
			}
			audit.Resized = append(audit.Resized, domain.Resize{
				Symbol:  intent.Symbol,
				Reason:  ReasonMaxPositionSize,
				FromQty: qty,
				ToQty:   newQty,
			})
			qty = newQty
		}
	}

	// Gross-exposure cap: the running exposure includes positions already
	// held plus BUY notional approved earlier in this call.
	if p.cfg.MaxGrossExposureFraction.GreaterThan(decimal.Zero) {
		maxGross := eq.Mul(p.cfg.MaxGrossExposureFraction)
		remaining := maxGross.Sub(gross)
		if remaining.LessThanOrEqual(decimal.Zero) {
			audit.Vetoed = append(audit.Vetoed, domain.Veto{Symbol: intent.Symbol, Reason: ReasonMaxGrossExposure})
			return qty, true
		}
		if qty.Mul(ref).GreaterThan(remaining) {
			newQty := remaining.Div(ref)
			if newQty.LessThanOrEqual(decimal.Zero) {
				audit.Vetoed = append(audit.Vetoed, domain.Veto{Symbol: intent.Symbol, Reason: ReasonMaxGrossExposure})
				return qty, true
			}
			audit.Resized = append(audit.Resized, domain.Resize{
				Symbol:  intent.Symbol,
				Reason:  ReasonMaxGrossExposure,
				FromQty: qty,
				ToQty:   newQty,
			})
			qty = newQty
		}
	}

	return qty, false
}

// grossExposure sums the absolute value of priced open positions.
func (p *Portfolio) grossExposure() decimal.Decimal {
	gross := decimal.Zero
	for sym, qty := range p.equity.Positions() {
		px, ok := p.equity.LatestPrice(sym)
		if !ok {
			continue
		}
		gross = gross.Add(qty.Mul(px).Abs())
	}
	return gross
}

// heldSymbols returns the set of symbols with open positions.
func (p *Portfolio) heldSymbols() map[string]struct{} {
	held := make(map[string]struct{})
	for sym := range p.equity.Positions() {
		held[sym] = struct{}{}
	}
	return held
}

func (p *Portfolio) drainRiskEvents() []domain.RiskEvent {
	if len(p.pendingRiskEvents) == 0 {
		return nil
	}
	out := p.pendingRiskEvents
	p.pendingRiskEvents = nil
	return out
}

// ApplyFill updates the equity tracker with an executed fill, audits
// slippage against the pending reference price, and arms the post-loss
// cooldown when the realized P&L is negative.
func (p *Portfolio) ApplyFill(fill domain.Fill) {
	if ref, ok := p.pendingRefPrice[fill.Symbol]; ok {
		delete(p.pendingRefPrice, fill.Symbol)
		if ref.GreaterThan(decimal.Zero) && p.cfg.MaxSlippageFraction.GreaterThan(decimal.Zero) {
			slip := fill.Price.Sub(ref).Abs().Div(ref)
			if slip.GreaterThan(p.cfg.MaxSlippageFraction) {
				p.pendingRiskEvents = append(p.pendingRiskEvents, domain.RiskEvent{
					Type: riskTypeSlippage,
					Fields: map[string]string{
						"symbol":          fill.Symbol,
						"slippage":        slip.String(),
						"reference_price": ref.String(),
						"fill_price":      fill.Price.String(),
					},
				})
			}
		}
	}

	realized := p.equity.ApplyFill(fill)
	if realized.IsNegative() && p.cfg.CooldownAfterLossSeconds > 0 {
		until := fill.TS.Add(time.Duration(p.cfg.CooldownAfterLossSeconds) * time.Second)
		if p.cooldownUntil == nil || until.After(*p.cooldownUntil) {
			p.cooldownUntil = &until
		}
		p.pendingRiskEvents = append(p.pendingRiskEvents, domain.RiskEvent{
			Type: riskTypeCooldownOnLoss,
			Fields: map[string]string{
				"until":        p.cooldownUntil.UTC().Format(time.RFC3339),
				"realized_pnl": realized.String(),
			},
		})
	}
	_ = p.equity.Refresh()
}

// OnOverride handles portfolio-scoped operator commands. disable_symbol and
// enable_symbol mutate the disabled set; flatten is realized upstream by the
// engine/broker issuing explicit SELLs; anything else is ignored. All
// commands are idempotent against duplicate delivery.
func (p *Portfolio) OnOverride(event domain.OverrideEvent) {
	switch normalizeCommand(event.Command) {
	case "disable_symbol":
		if sym := event.Arg("symbol"); sym != "" {
			p.disabledSymbols[sym] = struct{}{}
		}
	case "enable_symbol":
		if sym := event.Arg("symbol"); sym != "" {
			delete(p.disabledSymbols, sym)
		}
	case "flatten":
		// No-op at this layer.
	}
}

func normalizeCommand(cmd string) string {
	return strings.ToLower(strings.TrimSpace(cmd))
}

// DisabledSymbols returns the currently disabled symbols (copy).
func (p *Portfolio) DisabledSymbols() []string {
	out := make([]string, 0, len(p.disabledSymbols))
	for s := range p.disabledSymbols {
		out = append(out, s)
	}
	return out
}
