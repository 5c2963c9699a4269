package prewarmcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPriorityWeight(t *testing.T) {
	require.Equal(t, 4, PriorityCritical.Weight())
	require.Equal(t, 3, PriorityHigh.Weight())
	require.Equal(t, 2, PriorityNormal.Weight())
	require.Equal(t, 1, PriorityLow.Weight())

	// Unknown priorities weigh the same as normal.
	require.Equal(t, 2, Priority("").Weight())
	require.Equal(t, 2, Priority("urgent").Weight())
}

func TestStrategyAdmits(t *testing.T) {
	tests := []struct {
		strategy Strategy
		priority Priority
		want     bool
	}{
		{StrategyAggressive, PriorityLow, true},
		{StrategyAggressive, PriorityCritical, true},
		{StrategyBalanced, PriorityCritical, true},
		{StrategyBalanced, PriorityHigh, true},
		{StrategyBalanced, PriorityNormal, false},
		{StrategyBalanced, PriorityLow, false},
		{StrategyConservative, PriorityCritical, true},
		{StrategyConservative, PriorityHigh, false},
		{StrategyManual, PriorityCritical, false},
		{StrategyManual, PriorityLow, false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, tt.strategy.Admits(tt.priority),
			"strategy %s priority %s", tt.strategy, tt.priority)
	}
}

func TestStatusReady(t *testing.T) {
	require.True(t, StatusWarm.Ready())
	require.True(t, StatusHot.Ready())
	require.False(t, StatusCold.Ready())
	require.False(t, StatusWarming.Ready())
	require.False(t, StatusExpired.Ready())
	require.False(t, StatusError.Ready())
}
