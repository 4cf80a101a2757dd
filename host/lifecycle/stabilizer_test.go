package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStabilizerCommitsOnFirstRepeat(t *testing.T) {
	s := newStabilizer()
	run := s.start(nil, 12)

	_, _, status := s.tick(run, 1920, 1080)
	require.Equal(t, stabPending, status)

	w, h, status := s.tick(run, 1920, 1080)
	require.Equal(t, stabCommitted, status)
	require.Equal(t, uint32(1920), w)
	require.Equal(t, uint32(1080), h)

	// The run is finished; further ticks are stale.
	_, _, status = s.tick(run, 1920, 1080)
	require.Equal(t, stabStale, status)
}

func TestStabilizerCommitsAtAttemptCap(t *testing.T) {
	s := newStabilizer()
	run := s.start(nil, 12)

	// Never-settling stream: every sample differs from the previous one.
	for i := 0; i < 11; i++ {
		_, _, status := s.tick(run, uint32(100+i), uint32(200+i))
		require.Equal(t, stabPending, status, "tick %d", i)
	}

	w, h, status := s.tick(run, 111, 211)
	require.Equal(t, stabCommitted, status)
	require.Equal(t, uint32(111), w)
	require.Equal(t, uint32(211), h)
}

func TestStabilizerOrientationCorrection(t *testing.T) {
	s := newStabilizer()
	landscape := Rotation90
	run := s.start(&landscape, 12)

	// Transposed samples get swapped, so both read as 1920x1080 and the
	// second one confirms the first.
	_, _, status := s.tick(run, 1080, 1920)
	require.Equal(t, stabPending, status)

	w, h, status := s.tick(run, 1920, 1080)
	require.Equal(t, stabCommitted, status)
	require.True(t, w >= h, "landscape commit must have width >= height")
	require.Equal(t, uint32(1920), w)
	require.Equal(t, uint32(1080), h)
}

func TestStabilizerPortraitCorrection(t *testing.T) {
	s := newStabilizer()
	portrait := Rotation0
	run := s.start(&portrait, 12)

	s.tick(run, 1920, 1080)
	w, h, status := s.tick(run, 1080, 1920)
	require.Equal(t, stabCommitted, status)
	require.True(t, h >= w, "portrait commit must have height >= width")
}

func TestStabilizerLastRequestWins(t *testing.T) {
	s := newStabilizer()
	run1 := s.start(nil, 12)
	run2 := s.start(nil, 12)

	_, _, status := s.tick(run1, 10, 10)
	require.Equal(t, stabStale, status, "ticks from a cancelled run must be ignored")

	s.tick(run2, 800, 600)
	w, h, status := s.tick(run2, 800, 600)
	require.Equal(t, stabCommitted, status)
	require.Equal(t, uint32(800), w)
	require.Equal(t, uint32(600), h)
}

func TestStabilizerCancelStopsRun(t *testing.T) {
	s := newStabilizer()
	run := s.start(nil, 12)
	s.cancel()

	_, _, status := s.tick(run, 1, 1)
	require.Equal(t, stabStale, status)
}
