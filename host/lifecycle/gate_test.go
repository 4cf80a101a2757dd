package lifecycle

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// manualScheduler captures scheduled callbacks so tests control when the
// settle delay "elapses".
type manualScheduler struct {
	mu      sync.Mutex
	pending []func()
}

func (m *manualScheduler) schedule(_ time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, fn)
}

func (m *manualScheduler) fireAll() {
	m.mu.Lock()
	fns := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type applyRecorder struct {
	mu    sync.Mutex
	calls []bool
}

func (a *applyRecorder) apply(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, enabled)
}

func (a *applyRecorder) snapshot() []bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]bool(nil), a.calls...)
}

func newTestGate() (*PresentGate, *applyRecorder, *manualScheduler) {
	rec := &applyRecorder{}
	sched := &manualScheduler{}
	g := NewPresentGate(rec.apply, func() time.Duration { return 0 }, sched.schedule, nil)
	return g, rec, sched
}

func TestGateEnablesOnlyAfterSettle(t *testing.T) {
	g, rec, sched := newTestGate()

	g.SetWindowFocus(true)
	g.SetRendererReady(true)
	require.False(t, g.Enabled(), "enable must wait for the settle re-check")
	require.Empty(t, rec.snapshot())

	sched.fireAll()
	require.True(t, g.Enabled())
	require.Equal(t, []bool{true}, rec.snapshot())
}

func TestGateEnableIsIdempotent(t *testing.T) {
	g, rec, sched := newTestGate()

	g.SetWindowFocus(true)
	g.SetRendererReady(true)
	sched.fireAll()

	// Re-asserting an already-true input must not reach the engine again.
	g.SetRendererReady(true)
	g.SetWindowFocus(true)
	sched.fireAll()
	require.Equal(t, []bool{true}, rec.snapshot())
}

func TestGateInputFlipDuringSettleCancelsEnable(t *testing.T) {
	g, rec, sched := newTestGate()

	g.SetWindowFocus(true)
	g.SetRendererReady(true)
	g.SetForeground(false)

	sched.fireAll()
	require.False(t, g.Enabled())
	// Never enabled, so there is nothing to disable either.
	require.Empty(t, rec.snapshot())
}

func TestGateDisableIsImmediate(t *testing.T) {
	g, rec, sched := newTestGate()

	g.SetWindowFocus(true)
	g.SetRendererReady(true)
	sched.fireAll()
	require.True(t, g.Enabled())

	g.SetWindowFocus(false)
	require.False(t, g.Enabled(), "disable must not wait for any timer")
	require.Equal(t, []bool{true, false}, rec.snapshot())
}

func TestGateForceDisable(t *testing.T) {
	g, rec, sched := newTestGate()

	g.SetWindowFocus(true)
	g.SetRendererReady(true)
	sched.fireAll()

	g.ForceDisable("cold reset")
	require.False(t, g.Enabled())
	require.Equal(t, []bool{true, false}, rec.snapshot())

	// A second force is a no-op at the engine boundary.
	g.ForceDisable("cold reset")
	require.Equal(t, []bool{true, false}, rec.snapshot())
}

func TestGateEnableHeldUntilAllowed(t *testing.T) {
	rec := &applyRecorder{}
	sched := &manualScheduler{}
	var allowed atomic.Bool
	g := NewPresentGate(rec.apply, func() time.Duration { return 0 }, sched.schedule, allowed.Load)

	g.SetWindowFocus(true)
	g.SetRendererReady(true)
	sched.fireAll()
	require.False(t, g.Enabled(), "enable must be held while engine calls are not allowed")
	require.Empty(t, rec.snapshot())

	allowed.Store(true)
	g.Reassert()
	sched.fireAll()
	require.True(t, g.Enabled())
	require.Equal(t, []bool{true}, rec.snapshot())
}

func TestGateDisableNeverHeld(t *testing.T) {
	rec := &applyRecorder{}
	sched := &manualScheduler{}
	var allowed atomic.Bool
	allowed.Store(true)
	g := NewPresentGate(rec.apply, func() time.Duration { return 0 }, sched.schedule, allowed.Load)

	g.SetWindowFocus(true)
	g.SetRendererReady(true)
	sched.fireAll()
	require.True(t, g.Enabled())

	// The predicate closing must not delay the disable.
	allowed.Store(false)
	g.ForceDisable("cold reset")
	require.False(t, g.Enabled())
	require.Equal(t, []bool{true, false}, rec.snapshot())
}

func TestGateRecordsDecisions(t *testing.T) {
	g, _, sched := newTestGate()

	g.SetWindowFocus(true)
	g.SetRendererReady(true)
	sched.fireAll()
	g.SetForeground(false)

	decisions := g.Decisions()
	require.Len(t, decisions, 2)
	require.True(t, decisions[0].Enabled)
	require.False(t, decisions[1].Enabled)
	require.NotEmpty(t, decisions[1].Reason)
}
