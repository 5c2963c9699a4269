package prewarmcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateSize(t *testing.T) {
	tests := []struct {
		name       string
		durationMs int
		framerate  int
		want       int64
	}{
		{name: "defaults", durationMs: 0, framerate: 0, want: 30 * 10 * 1024},
		{name: "two seconds at 60fps", durationMs: 2000, framerate: 60, want: 120 * 10 * 1024},
		{name: "default framerate", durationMs: 500, framerate: 0, want: 15 * 10 * 1024},
		{name: "partial frame rounds up", durationMs: 1001, framerate: 30, want: 31 * 10 * 1024},
		{name: "negative falls back to defaults", durationMs: -5, framerate: -1, want: 30 * 10 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, EstimateSize(tt.durationMs, tt.framerate))
		})
	}
}

func TestEstimateSizeDeterministic(t *testing.T) {
	first := EstimateSize(3200, 24)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, EstimateSize(3200, 24))
	}
}
