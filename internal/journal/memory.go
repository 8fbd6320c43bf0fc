// Package journal provides the in-memory Journal used by backtests running
// without a database and by tests. The durable implementation lives in the
// postgres subpackage.
package journal

import (
	"github.com/quantfold/algotrader/internal/domain"
)

// Memory accumulates journaled events in slices. Not safe for concurrent use.
type Memory struct {
	Decisions []domain.DecisionEvent
	Overrides []domain.OverrideEvent
	Fills     []domain.Fill
}

// NewMemory returns an empty in-memory journal.
func NewMemory() *Memory { return &Memory{} }

// RecordDecision appends a decision event.
func (m *Memory) RecordDecision(event domain.DecisionEvent) {
	m.Decisions = append(m.Decisions, event)
}

// RecordOverride appends an override event.
func (m *Memory) RecordOverride(event domain.OverrideEvent) {
	m.Overrides = append(m.Overrides, event)
}

// RecordFill appends a fill, implementing the optional fill-recording
// extension.
func (m *Memory) RecordFill(fill domain.Fill) {
	m.Fills = append(m.Fills, fill)
}
