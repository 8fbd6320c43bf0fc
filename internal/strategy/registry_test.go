package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryBuildsBuiltinStrategy(t *testing.T) {
	reg := NewRegistry()

	s, err := reg.Build("sma_crossover", Params{FastWindow: 10, SlowWindow: 20})
	require.NoError(t, err)
	assert.Equal(t, "sma_crossover", s.Name())
}

func TestRegistryRejectsUnknownName(t *testing.T) {
	_, err := NewRegistry().Build("momentum", Params{FastWindow: 1, SlowWindow: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRegistryPropagatesConstructorError(t *testing.T) {
	_, err := NewRegistry().Build("sma_crossover", Params{FastWindow: 20, SlowWindow: 10})
	require.Error(t, err)
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry()
	reg.Register("custom", func(p Params) (Strategy, error) { return nil, nil })

	assert.Equal(t, []string{"custom", "sma_crossover"}, reg.List())
}
