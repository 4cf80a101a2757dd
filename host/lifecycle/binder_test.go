package lifecycle

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeHost records boundary calls; bind/unbind completions are driven by the
// test, mirroring how the real host notifies asynchronously.
type fakeHost struct {
	mu          sync.Mutex
	wg          sync.WaitGroup
	startCalls  int
	bindCalls   int
	unbindCalls int
	stopCalls   int
	runCalls    int
	refuseRun   bool
}

func (h *fakeHost) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.startCalls++
	return nil
}

func (h *fakeHost) Bind() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bindCalls++
	return nil
}

func (h *fakeHost) Unbind() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unbindCalls++
}

func (h *fakeHost) RunInHost(fn func()) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refuseRun {
		return false
	}
	h.runCalls++
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn()
	}()
	return true
}

// wait blocks until every goroutine spawned by RunInHost has returned. Only
// usable by tests whose loop bodies terminate.
func (h *fakeHost) wait() {
	h.wg.Wait()
}

func (h *fakeHost) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopCalls++
}

func (h *fakeHost) counts() (start, bind, unbind, run int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.startCalls, h.bindCalls, h.unbindCalls, h.runCalls
}

func TestBinderEnsureStartedAndBoundIsIdempotent(t *testing.T) {
	host := &fakeHost{}
	b := NewBinder(host)

	b.EnsureStartedAndBound()
	b.EnsureStartedAndBound()
	b.EnsureStartedAndBound()

	start, bind, _, _ := host.counts()
	require.Equal(t, 1, start)
	require.Equal(t, 1, bind)
	require.Equal(t, HostBinding, b.State())

	b.MarkBound()
	require.Equal(t, HostBound, b.State())
	b.EnsureStartedAndBound()
	_, bind, _, _ = host.counts()
	require.Equal(t, 1, bind, "bound state must not trigger another bind")
}

func TestBinderLoopStartsInHostWhenBound(t *testing.T) {
	host := &fakeHost{}
	b := NewBinder(host)
	b.EnsureStartedAndBound()
	b.MarkBound()

	ran := make(chan struct{})
	needGrace, _ := b.RequestLoop(func() { close(ran) })
	require.False(t, needGrace)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("loop never ran in host")
	}
	_, _, _, run := host.counts()
	require.Equal(t, 1, run)
	require.True(t, b.LoopStarted())
	require.False(t, b.FallbackActive())
}

func TestBinderNoLoopDuplicationAcrossFlaps(t *testing.T) {
	host := &fakeHost{}
	b := NewBinder(host)
	b.EnsureStartedAndBound()
	b.MarkBound()

	var loops sync.WaitGroup
	loops.Add(1)
	needGrace, _ := b.RequestLoop(func() { loops.Done(); select {} })
	require.False(t, needGrace)
	loops.Wait()

	// Binding flaps must not start a second loop.
	b.MarkUnbound()
	b.MarkBound()
	b.StartLoopInHost()
	b.MarkUnbound()
	b.MarkBound()
	b.StartLoopInHost()

	_, _, _, run := host.counts()
	require.Equal(t, 1, run)
}

func TestBinderFallbackAfterGrace(t *testing.T) {
	host := &fakeHost{}
	b := NewBinder(host)
	b.EnsureStartedAndBound()

	ran := make(chan struct{})
	needGrace, seq := b.RequestLoop(func() { close(ran) })
	require.True(t, needGrace, "unbound binder must arm the grace timer")

	b.GraceExpired(seq)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("fallback loop never ran")
	}
	require.True(t, b.FallbackActive())

	// A late bind completion must not start a second loop.
	b.MarkBound()
	b.StartLoopInHost()
	_, _, _, run := host.counts()
	require.Equal(t, 0, run)
}

func TestBinderStaleGraceIsIgnored(t *testing.T) {
	host := &fakeHost{}
	b := NewBinder(host)
	b.EnsureStartedAndBound()

	needGrace, seq := b.RequestLoop(func() {})
	require.True(t, needGrace)
	b.MarkBound()
	b.StartLoopInHost()

	// Grace fires after the loop already started in the host.
	b.GraceExpired(seq)
	require.False(t, b.FallbackActive())
	_, _, _, run := host.counts()
	require.Equal(t, 1, run)
}

func TestBinderHostRefusalFallsBack(t *testing.T) {
	host := &fakeHost{refuseRun: true}
	b := NewBinder(host)
	b.EnsureStartedAndBound()
	b.MarkBound()

	ran := make(chan struct{})
	b.RequestLoop(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("refused run loop never fell back")
	}
	require.True(t, b.FallbackActive())
}

func TestBinderJoinFallbackBoundedWait(t *testing.T) {
	host := &fakeHost{}
	b := NewBinder(host)
	b.EnsureStartedAndBound()

	release := make(chan struct{})
	needGrace, seq := b.RequestLoop(func() { <-release })
	require.True(t, needGrace)
	b.GraceExpired(seq)

	// Stuck loop: join gives up after the timeout instead of hanging.
	start := time.Now()
	require.False(t, b.JoinFallback(30*time.Millisecond))
	require.Less(t, time.Since(start), 500*time.Millisecond)

	close(release)
	require.True(t, b.JoinFallback(time.Second))
}

func TestBinderUnbindNeverStopsLoop(t *testing.T) {
	host := &fakeHost{}
	b := NewBinder(host)
	b.EnsureStartedAndBound()
	b.MarkBound()

	stopped := make(chan struct{})
	running := make(chan struct{})
	b.RequestLoop(func() {
		close(running)
		<-stopped
	})
	<-running

	b.RequestUnbind()
	b.MarkUnbound()
	require.Equal(t, HostUnbound, b.State())
	select {
	case <-stopped:
		t.Fatal("unbind must not stop a running loop")
	default:
	}
	close(stopped)
}
