package systems

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gantryengine/gantry/host/core"
)

type callbackLog struct {
	mu      sync.Mutex
	bound   int
	unbound int
	stopped int
}

func (l *callbackLog) callbacks() HostCallbacks {
	return HostCallbacks{
		OnBound:   func() { l.mu.Lock(); l.bound++; l.mu.Unlock() },
		OnUnbound: func() { l.mu.Lock(); l.unbound++; l.mu.Unlock() },
		OnStopped: func() { l.mu.Lock(); l.stopped++; l.mu.Unlock() },
	}
}

func (l *callbackLog) counts() (bound, unbound, stopped int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bound, l.unbound, l.stopped
}

func newTestHost(t *testing.T) (*BackgroundHostSystem, *callbackLog) {
	t.Helper()
	log := &callbackLog{}
	bh, err := NewBackgroundHostSystem(&BackgroundHostSystemConfig{QueueSize: 8}, log.callbacks())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bh.Shutdown() })
	return bh, log
}

func TestBackgroundHostBindCompletesAsync(t *testing.T) {
	bh, log := newTestHost(t)
	require.NoError(t, bh.Start())

	require.NoError(t, bh.Bind())
	require.Eventually(t, func() bool {
		bound, _, _ := log.counts()
		return bound == 1
	}, time.Second, 5*time.Millisecond)

	bh.Unbind()
	require.Eventually(t, func() bool {
		_, unbound, _ := log.counts()
		return unbound == 1
	}, time.Second, 5*time.Millisecond)
}

func TestBackgroundHostRejectsWorkBeforeStart(t *testing.T) {
	bh, _ := newTestHost(t)

	require.ErrorIs(t, bh.Bind(), core.ErrHostUnavailable)
	require.False(t, bh.RunInHost(func() {}))
}

func TestBackgroundHostRunsWorkDetached(t *testing.T) {
	bh, log := newTestHost(t)
	require.NoError(t, bh.Start())

	// A blocking worker must not starve bind completions.
	release := make(chan struct{})
	running := make(chan struct{})
	require.True(t, bh.RunInHost(func() {
		close(running)
		<-release
	}))
	<-running

	require.NoError(t, bh.Bind())
	require.Eventually(t, func() bool {
		bound, _, _ := log.counts()
		return bound == 1
	}, time.Second, 5*time.Millisecond)
	close(release)
}

func TestBackgroundHostStopIsIdempotentAndFinal(t *testing.T) {
	bh, log := newTestHost(t)
	require.NoError(t, bh.Start())

	bh.Stop()
	bh.Stop()
	_, _, stopped := log.counts()
	require.Equal(t, 1, stopped, "stop must notify exactly once")

	// A stopped host never comes back.
	require.ErrorIs(t, bh.Start(), core.ErrHostUnavailable)
	require.ErrorIs(t, bh.Bind(), core.ErrHostUnavailable)
	require.False(t, bh.RunInHost(func() {}))
}

func TestBackgroundHostStartIsIdempotent(t *testing.T) {
	bh, _ := newTestHost(t)
	require.NoError(t, bh.Start())
	require.NoError(t, bh.Start())
	require.NoError(t, bh.Bind())
}

func TestBackgroundHostRejectsNegativeQueue(t *testing.T) {
	_, err := NewBackgroundHostSystem(&BackgroundHostSystemConfig{QueueSize: -1}, HostCallbacks{})
	require.ErrorIs(t, err, ErrNegativeQueueSize)
}
