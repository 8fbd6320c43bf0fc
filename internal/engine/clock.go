package engine

import (
	"strings"
	"time"
)

// RealClock reads the wall clock in UTC. Used by the forward-test runner.
type RealClock struct{}

// Now returns the current UTC time.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// FixedClock reports a settable instant. Backtests advance it to each bar's
// close so decisions are reproducible.
type FixedClock struct {
	Current time.Time
}

// Now returns the clock's current instant.
func (c *FixedClock) Now() time.Time { return c.Current }

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) { c.Current = t }

func normalizeCommand(cmd string) string {
	return strings.ToLower(strings.TrimSpace(cmd))
}
