package clock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLatencyStatsInit(t *testing.T) {
	var s latencyStats
	s.init()

	require.Equal(t, int64(initDecoderLatency), s.means)
	require.Equal(t, int64(initDecoderLatency), s.max)
	require.Equal(t, int64(0), s.count)
}

func TestLatencyStatsFirstUpdateSnapsToMeans(t *testing.T) {
	var s latencyStats
	s.init()

	s.update(20_000)

	require.Equal(t, int64(20_000), s.means)
	require.Equal(t, int64(20_000), s.max)
	require.Equal(t, int64(1), s.count)
}

func TestLatencyStatsMaxTracksWeightedPeak(t *testing.T) {
	var s latencyStats
	s.init()

	s.update(10_000)
	s.update(50_000)

	// max moves toward the new peak but is weighted, not a hard jump.
	require.Greater(t, s.max, int64(10_000))
	require.Less(t, s.max, int64(50_000))
}

func TestLatencyStatsMaxDecaysAfterTwoStaleSamples(t *testing.T) {
	var s latencyStats
	s.init()

	s.update(50_000)
	peak := s.max

	s.update(1_000)
	s.update(1_000)

	require.Less(t, s.max, peak)
}

func TestLatencyStatsWindowReseedsMeans(t *testing.T) {
	var s latencyStats
	s.init()

	for i := 0; i < latencyWindow; i++ {
		s.update(1_000)
	}
	require.Equal(t, int64(1_000), s.means)

	// crossing the window boundary resets means to 0 before folding in the
	// next sample, rather than keeping the long-run mean.
	s.update(5_000)
	require.Equal(t, int64(5_000), s.means)
}
