package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsCountersAccumulate(t *testing.T) {
	require.NoError(t, MetricsInitialize())

	before := MetricsSnapshot()

	MetricsHandleAcquired()
	MetricsRebound()
	MetricsPresentChanged(true)
	MetricsPresentChanged(false)
	MetricsLoopStarted(true)
	MetricsLoopStarted(false)
	MetricsZombieReset()
	MetricsStabilizerRun()
	MetricsStabilizerCommitted()

	after := MetricsSnapshot()
	require.Equal(t, before.HandleAcquires+1, after.HandleAcquires)
	require.Equal(t, before.Rebinds+1, after.Rebinds)
	require.Equal(t, before.PresentEnables+1, after.PresentEnables)
	require.Equal(t, before.PresentDisables+1, after.PresentDisables)
	require.Equal(t, before.FallbackLoops+1, after.FallbackLoops)
	require.Equal(t, before.HostLoops+1, after.HostLoops)
	require.Equal(t, before.ZombieResets+1, after.ZombieResets)
	require.Equal(t, before.StabilizerRuns+1, after.StabilizerRuns)
	require.Equal(t, before.StabilizerCommits+1, after.StabilizerCommits)
}
