package strategy

import (
	"fmt"
	"sort"

	"github.com/quantfold/algotrader/internal/domain"
)

// Params carries the knobs a strategy constructor may read. Only the fields
// a given strategy uses are consulted.
type Params struct {
	FastWindow int
	SlowWindow int
}

// Constructor builds a strategy instance from its parameters.
type Constructor func(p Params) (Strategy, error)

// Strategy re-exports the domain contract so callers registering strategies
// do not need to import the domain package for the type alone.
type Strategy = domain.Strategy

// Registry maps strategy identifiers to constructors. It is populated
// explicitly at process start; adding a strategy is a one-line registration,
// never implicit scanning.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry returns a registry pre-populated with the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}
	r.Register("sma_crossover", func(p Params) (Strategy, error) {
		return NewSMACrossover(p.FastWindow, p.SlowWindow)
	})
	return r
}

// Register adds (or replaces) a constructor under the given name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.constructors[name] = ctor
}

// Build constructs the named strategy with the given parameters.
func (r *Registry) Build(name string, p Params) (Strategy, error) {
	ctor, ok := r.constructors[name]
	if !ok {
		return nil, fmt.Errorf("strategy %q: not registered", name)
	}
	return ctor(p)
}

// List returns the registered strategy names in sorted order.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.constructors))
	for n := range r.constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
