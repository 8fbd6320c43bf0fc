package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Veto records an intent that was rejected by the risk pipeline.
type Veto struct {
	Symbol string
	Reason string
}

// Resize records an intent whose quantity was reduced by the risk pipeline.
type Resize struct {
	Symbol  string
	Reason  string
	FromQty decimal.Decimal
	ToQty   decimal.Decimal
}

// RiskEvent is a risk occurrence surfaced through the audit trail, either
// produced during manage (e.g. max_drawdown) or accumulated between calls
// (e.g. slippage_violation, cooldown_after_loss).
type RiskEvent struct {
	Type   string
	Fields map[string]string
}

// Audit is the structured trail attached to each portfolio decision.
type Audit struct {
	Vetoed     []Veto
	Resized    []Resize
	RiskEvents []RiskEvent
}

// Empty reports whether the audit carries no entries.
func (a Audit) Empty() bool {
	return len(a.Vetoed) == 0 && len(a.Resized) == 0 && len(a.RiskEvents) == 0
}

// PortfolioDecision is the pure return value of PortfolioManager.Manage: the
// proposed intents as received, the final intents after the risk pipeline,
// an optional pause deadline, and the audit trail.
type PortfolioDecision struct {
	ProposedIntents []OrderIntent
	FinalIntents    []OrderIntent
	PauseUntil      *time.Time
	Audit           Audit
}
