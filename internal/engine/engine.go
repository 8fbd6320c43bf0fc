// Package engine implements the event-driven trading orchestrator. The
// engine is single-threaded and synchronous: each market event, fill batch,
// or override is processed to completion before the next is accepted, and no
// operation here blocks on I/O.
package engine

import (
	"time"

	"github.com/quantfold/algotrader/internal/domain"
)

// Engine routes market events through the strategy and the risk-managed
// portfolio, journals the resulting decisions, and holds the pause state.
//
// Pause state is two independent flags: paused is operator-controlled and
// sticky until an explicit resume; pauseUntil is risk-controlled and expires
// on its own. The engine holds no persisted state across restarts.
type Engine struct {
	clock     domain.Clock
	strategy  domain.Strategy
	portfolio domain.PortfolioManager
	journal   domain.Journal

	paused     bool
	pauseUntil *time.Time
}

// New wires an engine from its collaborators.
func New(clock domain.Clock, strategy domain.Strategy, portfolio domain.PortfolioManager, journal domain.Journal) *Engine {
	return &Engine{
		clock:     clock,
		strategy:  strategy,
		portfolio: portfolio,
		journal:   journal,
	}
}

// IsPaused reports whether trading is currently suppressed, either by an
// operator pause or by an unexpired risk cooldown.
func (e *Engine) IsPaused() bool {
	if e.paused {
		return true
	}
	return e.pauseUntil != nil && e.pauseUntil.After(e.clock.Now())
}

// PauseUntil returns the risk-controlled pause deadline, if any.
func (e *Engine) PauseUntil() *time.Time { return e.pauseUntil }

// OnMarket processes one market event. While paused the strategy is never
// invoked and nothing is journaled; this is a hard contract, not an
// optimization. Otherwise the strategy's proposed intents run through the
// portfolio's risk pipeline; a decision cooldown only ever extends the
// active pause window. Decisions with final intents are journaled and
// returned for the caller to forward to a broker.
func (e *Engine) OnMarket(event domain.MarketEvent) *domain.DecisionEvent {
	if e.IsPaused() {
		return nil
	}

	proposed := e.strategy.OnMarket(event, e.portfolio)
	decision := e.portfolio.Manage(event, proposed)

	if decision.PauseUntil != nil {
		if e.pauseUntil == nil || decision.PauseUntil.After(*e.pauseUntil) {
			until := *decision.PauseUntil
			e.pauseUntil = &until
		}
	}

	if len(decision.FinalIntents) == 0 {
		return nil
	}

	out := domain.DecisionEvent{
		TS:              e.clock.Now(),
		OrderIntents:    decision.FinalIntents,
		ProposedIntents: decision.ProposedIntents,
		Audit:           decision.Audit,
	}
	e.journal.RecordDecision(out)
	return &out
}

// OnOverride applies an operator command. pause and resume act on the
// engine itself; resume clears the risk cooldown unconditionally. Every
// other command is forwarded to the portfolio. All commands are idempotent
// against at-least-once delivery.
func (e *Engine) OnOverride(event domain.OverrideEvent) {
	e.journal.RecordOverride(event)

	switch normalizeCommand(event.Command) {
	case "pause":
		e.paused = true
	case "resume":
		e.paused = false
		e.pauseUntil = nil
	default:
		e.portfolio.OnOverride(event)
	}
}

// OnFills applies executed fills to the portfolio and, when the journal
// implements the fill-recording extension, persists them.
func (e *Engine) OnFills(fills []domain.Fill, _ time.Time) {
	recorder, _ := e.journal.(domain.FillRecorder)
	for _, fill := range fills {
		e.portfolio.ApplyFill(fill)
		if recorder != nil {
			recorder.RecordFill(fill)
		}
	}
}
