package lifecycle

import (
	"sync"
	"time"

	"github.com/gantryengine/gantry/host/core"
)

// HostBindingState tracks the binding to the background execution host.
// Transitions are driven only by the Binder; everyone else just reads.
type HostBindingState uint8

const (
	HostUnbound HostBindingState = iota
	HostBinding
	HostBound
	HostUnbinding
)

func (s HostBindingState) String() string {
	switch s {
	case HostUnbound:
		return "unbound"
	case HostBinding:
		return "binding"
	case HostBound:
		return "bound"
	case HostUnbinding:
		return "unbinding"
	}
	return "unknown"
}

// BackgroundHost is the boundary to the background execution context capable
// of running the engine's blocking run loop after the foreground UI is torn
// down. Bind completion, unbind completion and host death are reported
// asynchronously through the coordinator's Notify methods.
type BackgroundHost interface {
	Start() error
	Bind() error
	Unbind()
	// RunInHost runs fn on a host-owned goroutine. Returns false when the
	// host cannot take work (not started, stopped).
	RunInHost(fn func()) bool
	Stop()
}

// Binder owns the binding lifecycle and enforces the one-run-loop-per-session
// invariant: no matter how many times binding flaps, the engine loop starts
// at most once, either inside the host or on a local fallback goroutine.
//
// Once the fallback path is taken the session never migrates back to
// host-hosted execution. That keeps exactly one execution context per session
// at the cost of background survival for that session.
type Binder struct {
	mu   sync.Mutex
	host BackgroundHost

	state         HostBindingState
	hostStarted   bool
	loopRequested bool
	loopStarted   bool
	fallback      bool
	fallbackDone  chan struct{}
	graceSeq      int
	run           func()
}

func NewBinder(host BackgroundHost) *Binder {
	return &Binder{host: host}
}

func (b *Binder) State() HostBindingState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Binder) LoopStarted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loopStarted
}

func (b *Binder) FallbackActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fallback
}

// EnsureStartedAndBound idempotently starts the host and requests a binding.
// Safe to call once per surface-created event.
func (b *Binder) EnsureStartedAndBound() {
	b.mu.Lock()
	needStart := !b.hostStarted
	b.mu.Unlock()

	if needStart {
		if err := b.host.Start(); err != nil {
			core.LogWarn("background host start failed: %v", err)
			return
		}
		b.mu.Lock()
		b.hostStarted = true
		b.mu.Unlock()
	}

	b.mu.Lock()
	needBind := b.state == HostUnbound
	if needBind {
		b.state = HostBinding
	}
	b.mu.Unlock()

	if needBind {
		// Completion arrives asynchronously as MarkBound.
		if err := b.host.Bind(); err != nil {
			core.LogWarn("background host bind request failed: %v", err)
			b.mu.Lock()
			b.state = HostUnbound
			b.mu.Unlock()
		}
	}
}

// MarkBound records an asynchronous bind completion.
func (b *Binder) MarkBound() {
	b.mu.Lock()
	b.state = HostBound
	b.mu.Unlock()
	core.LogDebug("background host bound")
}

// MarkUnbound records an unbind completion or host death.
func (b *Binder) MarkUnbound() {
	b.mu.Lock()
	b.state = HostUnbound
	b.mu.Unlock()
	core.LogDebug("background host unbound")
}

// RequestUnbind asks the host to release the binding. It never stops an
// already-running loop.
func (b *Binder) RequestUnbind() {
	b.mu.Lock()
	if b.state != HostBound && b.state != HostBinding {
		b.mu.Unlock()
		return
	}
	b.state = HostUnbinding
	b.mu.Unlock()
	b.host.Unbind()
}

// RequestLoop records that the run loop should start. When the binding is
// already complete the loop starts in the host immediately; otherwise the
// caller must arm the grace timer with the returned sequence and call
// GraceExpired when it fires.
func (b *Binder) RequestLoop(run func()) (needGrace bool, graceSeq int) {
	b.mu.Lock()
	if b.loopRequested || b.loopStarted {
		b.mu.Unlock()
		return false, 0
	}
	b.loopRequested = true
	b.run = run
	bound := b.state == HostBound
	if !bound {
		b.graceSeq++
		graceSeq = b.graceSeq
	}
	b.mu.Unlock()

	if bound {
		b.StartLoopInHost()
		return false, 0
	}
	return true, graceSeq
}

// StartLoopInHost starts the requested loop inside the bound host. No-op when
// no loop is pending or one already started.
func (b *Binder) StartLoopInHost() {
	b.mu.Lock()
	if !b.loopRequested || b.loopStarted || b.state != HostBound {
		b.mu.Unlock()
		return
	}
	b.loopStarted = true
	run := b.run
	b.mu.Unlock()

	if b.host.RunInHost(run) {
		core.MetricsLoopStarted(false)
		core.LogInfo("engine run loop handed to background host")
		return
	}

	// Host refused between bind completion and dispatch; same recovery as a
	// bind timeout.
	core.LogWarn("background host refused run loop, falling back to local goroutine")
	b.startFallback(run)
}

// GraceExpired fires when the bind grace period elapsed. If binding still has
// not completed, the loop starts on a local fallback goroutine.
func (b *Binder) GraceExpired(seq int) {
	b.mu.Lock()
	if seq != b.graceSeq || !b.loopRequested || b.loopStarted {
		b.mu.Unlock()
		return
	}
	b.loopStarted = true
	run := b.run
	b.mu.Unlock()

	core.LogWarn("background host not bound within grace period, running loop on fallback goroutine")
	b.startFallback(run)
}

func (b *Binder) startFallback(run func()) {
	done := make(chan struct{})
	b.mu.Lock()
	b.fallback = true
	b.fallbackDone = done
	b.mu.Unlock()

	core.MetricsLoopStarted(true)
	go func() {
		defer close(done)
		run()
	}()
}

// JoinFallback waits for the fallback goroutine, if any, up to timeout.
// Returns false when the loop is abandoned rather than joined.
func (b *Binder) JoinFallback(timeout time.Duration) bool {
	b.mu.Lock()
	done := b.fallbackDone
	b.mu.Unlock()
	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// StopHost hard-stops the background host. Used by the zombie cold reset and
// by host shutdown.
func (b *Binder) StopHost() {
	b.host.Stop()
}
