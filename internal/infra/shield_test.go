package infra

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
)

// mockProcessManager implements domain.ProcessManager for testing.
type mockProcessManager struct {
	swept  []string
	killed map[string][]int
	errFor string
}

func (m *mockProcessManager) TerminateMatching(pattern string) ([]int, error) {
	m.swept = append(m.swept, pattern)
	if pattern == m.errFor {
		return nil, errors.New("kill denied")
	}
	return m.killed[pattern], nil
}

func TestProcessShield_ApplySweepsEveryPattern(t *testing.T) {
	pm := &mockProcessManager{killed: map[string][]int{"steam": {101, 102}}}
	shield := NewProcessShield(pm, zap.NewNop())

	sel := domain.ResourceSelection{ProcessPatterns: []string{"steam", "Dota 2"}}
	require.NoError(t, shield.Apply(sel))

	assert.Equal(t, []string{"steam", "Dota 2"}, pm.swept)
	current, applied := shield.Current()
	assert.True(t, applied)
	assert.Equal(t, sel, current)
}

func TestProcessShield_SweepFailureDoesNotAbort(t *testing.T) {
	pm := &mockProcessManager{errFor: "steam"}
	shield := NewProcessShield(pm, zap.NewNop())

	// The first pattern's failure must not stop the second sweep.
	require.NoError(t, shield.Apply(domain.ResourceSelection{
		ProcessPatterns: []string{"steam", "browser"},
	}))
	assert.Equal(t, []string{"steam", "browser"}, pm.swept)
}

func TestProcessShield_ClearIsIdempotent(t *testing.T) {
	shield := NewProcessShield(&mockProcessManager{}, zap.NewNop())
	require.NoError(t, shield.Apply(domain.ResourceSelection{ProcessPatterns: []string{"steam"}}))

	require.NoError(t, shield.Clear())
	require.NoError(t, shield.Clear())

	_, applied := shield.Current()
	assert.False(t, applied)
}
