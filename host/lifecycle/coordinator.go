package lifecycle

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gantryengine/gantry/host/config"
	"github.com/gantryengine/gantry/host/core"
	"github.com/gantryengine/gantry/host/engine"
	"github.com/gantryengine/gantry/host/storage"
)

// State is the coordinator's lifecycle state.
type State uint8

const (
	// No surface seen yet.
	StateIdle State = iota
	// A surface exists but no geometry has been committed.
	StateSurfaceReady
	// The run-loop start sequence has been triggered.
	StateStarted
	// Session torn down; terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSurfaceReady:
		return "surface-ready"
	case StateStarted:
		return "started"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// SurfaceProvider reports the current native drawable and its sizes.
type SurfaceProvider interface {
	// Native returns the live native window object, nil when none exists.
	// The returned value may silently change identity between calls.
	Native() any
	// FrameSize is the actual reported framebuffer size; may be zero while
	// the surface settles.
	FrameSize() (uint32, uint32)
	// ViewSize is the last measured logical size, used as a fallback when
	// the frame size reads zero.
	ViewSize() (uint32, uint32)
}

// Coordinator is the top-level lifecycle state machine. It owns the window
// handle, reacts to surface/window/app events, drives the stabilizer, binder
// and present gate, and issues the attach/resize/present calls into the
// engine.
//
// All inputs funnel through a single mailbox processed by one goroutine;
// callers on other threads (UI callbacks, binder completions, timers) only
// ever enqueue. Snapshot getters take the mutex and are safe from anywhere.
type Coordinator struct {
	cfg     *config.Config
	eng     *engine.Guarded
	surface SurfaceProvider
	binder  *Binder
	gate    *PresentGate
	stab    *stabilizer
	flag    *storage.RunFlag

	inbox     chan input
	quit      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	schedule  func(time.Duration, func())

	sessionID string

	mu            sync.Mutex
	state         State
	attached      bool
	handle        *WindowHandle
	rendererReady bool
	inputReady    bool
	geometry      SurfaceGeometry
	rotation      Rotation
	hasRotation   bool
	stableW       uint32
	stableH       uint32
	hasStable     bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithScheduler replaces the timer used for stabilizer ticks, bind grace and
// present settle delays. Intended for tests.
func WithScheduler(schedule func(time.Duration, func())) Option {
	return func(c *Coordinator) { c.schedule = schedule }
}

func NewCoordinator(cfg *config.Config, eng *engine.Guarded, surface SurfaceProvider, host BackgroundHost, flag *storage.RunFlag, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		eng:       eng,
		surface:   surface,
		binder:    NewBinder(host),
		stab:      newStabilizer(),
		flag:      flag,
		inbox:     make(chan input, 256),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		sessionID: uuid.NewString(),
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.gate = NewPresentGate(
		func(enabled bool) { c.eng.SetPresentEnabled(enabled) },
		func() time.Duration { return cfg.Timing().PresentSettleDelay() },
		c.schedule,
		c.engineCallsAllowed,
	)
	return c
}

// Start launches the coordinator loop. Idempotent.
func (c *Coordinator) Start() {
	c.startOnce.Do(func() { go c.run() })
}

// Done closes when the coordinator loop has exited.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

func (c *Coordinator) SessionID() string { return c.sessionID }

// ---- event producers (any thread) ----

func (c *Coordinator) OnSurfaceCreated()                  { c.enqueue(evSurfaceCreated{}) }
func (c *Coordinator) OnSurfaceChanged(g SurfaceGeometry) { c.enqueue(evSurfaceChanged{geometry: g}) }
func (c *Coordinator) OnSurfaceDestroyed()                { c.enqueue(evSurfaceDestroyed{}) }
func (c *Coordinator) OnWindowFocusChanged(focused bool)  { c.enqueue(evWindowFocus{focused: focused}) }
func (c *Coordinator) OnVisibilityChanged(visible bool)   { c.enqueue(evVisibility{visible: visible}) }
func (c *Coordinator) OnAppForeground(foreground bool)    { c.enqueue(evForeground{foreground: foreground}) }
func (c *Coordinator) OnRotationChanged(r Rotation)       { c.enqueue(evRotation{rotation: r}) }
func (c *Coordinator) Rebind(force bool)                  { c.enqueue(cmdRebind{force: force}) }
func (c *Coordinator) SetRendererReady(ready bool)        { c.enqueue(cmdSetRendererReady{ready: ready}) }
func (c *Coordinator) SetInputReady(ready bool)           { c.enqueue(cmdSetInputReady{ready: ready}) }
func (c *Coordinator) NotifyHostBound()                   { c.enqueue(evHostBound{}) }
func (c *Coordinator) NotifyHostUnbound()                 { c.enqueue(evHostUnbound{}) }
func (c *Coordinator) NotifyHostStopped()                 { c.enqueue(evHostStopped{}) }

// Close tears the engine session down: the only path that calls the engine's
// CloseSession. It joins any fallback loop with a bounded wait, clears the
// run flag and unbinds. Blocks the caller at most join-timeout plus a small
// margin.
func (c *Coordinator) Close() error {
	select {
	case <-c.quit:
		return core.ErrSessionClosed
	default:
	}
	reply := make(chan error, 1)
	if !c.enqueue(cmdClose{done: reply}) {
		return core.ErrMailboxFull
	}
	select {
	case err := <-reply:
		return err
	case <-time.After(c.cfg.Timing().JoinTimeout() + time.Second):
		core.LogWarn("close did not complete in time, proceeding")
		return nil
	}
}

// ---- snapshot getters (any thread) ----

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// Handle returns the current window handle, nil when detached.
func (c *Coordinator) Handle() *WindowHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

func (c *Coordinator) BindingState() HostBindingState { return c.binder.State() }

func (c *Coordinator) Gate() *PresentGate { return c.gate }

// SessionActive reports whether this process believes an engine session is
// live. Consulted by the zombie guard.
func (c *Coordinator) SessionActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateStarted
}

// StableSize returns the last committed stable size.
func (c *Coordinator) StableSize() (uint32, uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stableW, c.stableH, c.hasStable
}

// ResetRendererReady drops the cached renderer-ready flag. Part of the
// zombie cold reset.
func (c *Coordinator) ResetRendererReady() {
	c.mu.Lock()
	c.rendererReady = false
	c.mu.Unlock()
	c.gate.SetRendererReady(false)
}

// ---- loop ----

func (c *Coordinator) enqueue(in input) bool {
	select {
	case <-c.quit:
		return false
	default:
	}
	select {
	case c.inbox <- in:
		return true
	default:
		core.LogWarn("coordinator mailbox full, dropping %T", in)
		return false
	}
}

func (c *Coordinator) run() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			return
		case in := <-c.inbox:
			c.dispatch(in)
		}
	}
}

func (c *Coordinator) dispatch(in input) {
	switch ev := in.(type) {
	case evSurfaceCreated:
		c.handleSurfaceCreated()
	case evSurfaceChanged:
		c.handleSurfaceChanged(ev.geometry)
	case evSurfaceDestroyed:
		c.handleSurfaceDestroyed()
	case evWindowFocus:
		c.gate.SetWindowFocus(ev.focused)
	case evVisibility:
		c.handleVisibility(ev.visible)
	case evForeground:
		c.gate.SetForeground(ev.foreground)
	case evRotation:
		c.handleRotation(ev.rotation)
	case evHostBound:
		c.handleHostBound()
	case evHostUnbound:
		c.binder.MarkUnbound()
	case evHostStopped:
		c.handleHostStopped()
	case evBindGrace:
		c.binder.GraceExpired(ev.seq)
		if c.binder.FallbackActive() {
			c.gate.Reassert()
		}
	case evStabilizerTick:
		c.handleStabilizerTick(ev.run)
	case cmdRebind:
		c.handleRebind(ev.force)
	case cmdSetRendererReady:
		c.handleSetRendererReady(ev.ready)
	case cmdSetInputReady:
		c.mu.Lock()
		c.inputReady = ev.ready
		c.mu.Unlock()
	case cmdClose:
		c.handleClose(ev.done)
	}
}

func (c *Coordinator) handleSurfaceCreated() {
	if c.State() == StateClosed {
		return
	}
	core.LogDebug("surface created")
	c.binder.EnsureStartedAndBound()

	// Re-acquire unconditionally: the native surface object may have been
	// replaced silently even while a handle was attached.
	c.acquireHandle("surface created")

	c.mu.Lock()
	if c.state == StateIdle {
		c.state = StateSurfaceReady
	}
	c.mu.Unlock()
}

func (c *Coordinator) handleSurfaceChanged(g SurfaceGeometry) {
	if c.State() == StateClosed {
		return
	}
	core.LogDebug("surface changed: %dx%d rotation=%d", g.Width, g.Height, g.Rotation)

	// Equal dimensions do not imply the same native surface underneath.
	c.acquireHandle("surface changed")

	c.mu.Lock()
	c.geometry = g
	// Rotation 0 is a real portrait target when the sample carries one;
	// only samples without rotation information leave the target alone.
	if g.HasRotation {
		c.rotation = g.Rotation
		c.hasRotation = true
	}
	first := c.state != StateStarted
	c.state = StateStarted
	c.mu.Unlock()

	c.startStabilization()

	if first {
		c.requestRunLoop()
	}
}

func (c *Coordinator) handleSurfaceDestroyed() {
	core.LogDebug("surface destroyed")
	// Never leave a dangling binding across a backgrounding event. The
	// engine session itself survives; teardown happens only through Close.
	c.binder.RequestUnbind()
	c.invalidateHandle()
	c.stab.cancel()
}

func (c *Coordinator) handleVisibility(visible bool) {
	if !visible {
		// Some OS versions never deliver the surface-destroyed callback when a
		// task is swiped away; the visibility flip is the only signal we get.
		core.LogDebug("window no longer visible, releasing binding")
		c.binder.RequestUnbind()
		return
	}

	// Restore does not replay surface-created, so the binding must be rebuilt
	// here or the session stays unbound with its size commits held forever.
	c.mu.Lock()
	hasSurface := c.state == StateSurfaceReady || c.state == StateStarted
	c.mu.Unlock()
	if !hasSurface {
		return
	}
	core.LogDebug("window visible again, re-establishing binding")
	c.binder.EnsureStartedAndBound()
	c.handleRebind(false)
	c.reissueStableSize()
}

func (c *Coordinator) handleRotation(r Rotation) {
	core.LogDebug("rotation changed to %d", r)
	c.mu.Lock()
	c.rotation = r
	c.hasRotation = true
	started := c.state == StateStarted
	c.mu.Unlock()

	// Rotation is exactly the event that produces transient bogus geometry;
	// restart stabilization against the new target.
	if started {
		c.startStabilization()
	}
}

func (c *Coordinator) handleHostBound() {
	c.binder.MarkBound()
	if c.State() == StateStarted {
		c.binder.StartLoopInHost()
	}
	// Engine calls opened up; release anything held while unbound.
	c.gate.Reassert()
	c.reissueStableSize()
}

func (c *Coordinator) handleHostStopped() {
	core.LogWarn("background host stopped")
	c.binder.MarkUnbound()
	// The host died out from under the session; the persisted flag must not
	// outlive it.
	if err := c.flag.Clear(); err != nil {
		core.LogError("failed to clear run flag after host stop: %v", err)
	}
	// Same effect as the cold-reset path, unless a fallback loop is still
	// the session's live execution context.
	if !c.binder.FallbackActive() {
		c.gate.ForceDisable("background host stopped")
	}
}

func (c *Coordinator) handleStabilizerTick(run int) {
	w, h := c.surface.FrameSize()
	if w == 0 || h == 0 {
		w, h = c.surface.ViewSize()
	}
	cw, ch, status := c.stab.tick(run, w, h)
	switch status {
	case stabStale:
		return
	case stabPending:
		c.scheduleStabilizerTick(run)
	case stabCommitted:
		c.commitStableSize(cw, ch)
	}
}

func (c *Coordinator) startStabilization() {
	c.mu.Lock()
	var target *Rotation
	if c.hasRotation {
		r := c.rotation
		target = &r
	}
	c.mu.Unlock()

	run := c.stab.start(target, c.cfg.Timing().ResizeMaxAttempts)
	core.MetricsStabilizerRun()
	c.scheduleStabilizerTick(run)
}

func (c *Coordinator) scheduleStabilizerTick(run int) {
	c.schedule(c.cfg.Timing().ResizePollInterval(), func() {
		c.enqueue(evStabilizerTick{run: run})
	})
}

// engineCallsAllowed enforces the binding invariant: no handle or size calls
// reach the engine while unbound or unbinding, unless the fallback loop is
// the session's execution context.
func (c *Coordinator) engineCallsAllowed() bool {
	switch c.binder.State() {
	case HostBound, HostBinding:
		return true
	}
	return c.binder.FallbackActive()
}

func (c *Coordinator) commitStableSize(w, h uint32) {
	if w == 0 || h == 0 {
		core.LogWarn("stabilizer settled on a zero size, not committing")
		return
	}
	c.mu.Lock()
	c.stableW, c.stableH = w, h
	c.hasStable = true
	c.mu.Unlock()

	core.MetricsStabilizerCommitted()
	core.LogInfo("stable surface size committed: %dx%d", w, h)
	if !c.engineCallsAllowed() {
		core.LogDebug("holding size commit while unbound; rebind will re-issue")
		return
	}
	c.eng.SetRendererSize(w, h)
	c.eng.SetInputClientSize(w, h)
}

func (c *Coordinator) requestRunLoop() {
	needGrace, seq := c.binder.RequestLoop(c.runLoopBody)
	if !needGrace {
		return
	}
	c.schedule(c.cfg.Timing().BindGracePeriod(), func() {
		c.enqueue(evBindGrace{seq: seq})
	})
}

// runLoopBody executes on the background host or the fallback goroutine,
// never on the coordinator loop.
func (c *Coordinator) runLoopBody() {
	if err := c.flag.Write(true, c.sessionID); err != nil {
		core.LogError("failed to persist run flag: %v", err)
	}
	core.LogInfo("engine run loop starting (session %s)", c.sessionID)
	if err := c.eng.RunLoop(); err != nil {
		core.LogWarn("engine run loop ended with error: %v", err)
	}
	core.LogInfo("engine run loop ended (session %s)", c.sessionID)
	if err := c.flag.Clear(); err != nil {
		core.LogError("failed to clear run flag: %v", err)
	}
}

func (c *Coordinator) handleRebind(force bool) {
	if c.State() == StateClosed {
		return
	}
	if !force {
		c.mu.Lock()
		sameSurface := c.attached && c.handle != nil && c.handle.Native() == c.surface.Native()
		c.mu.Unlock()
		if sameSurface {
			return
		}
	}

	c.acquireHandle("rebind")
	core.MetricsRebound()
	c.reissueStableSize()
}

// reissueStableSize re-sends the committed size after a rebind or a binding
// restore. Size calls into a half-initialized engine crash it, so nothing is
// sent until the renderer has reported ready and input is up.
func (c *Coordinator) reissueStableSize() {
	c.mu.Lock()
	ready := c.rendererReady && c.inputReady && c.hasStable
	w, h := c.stableW, c.stableH
	c.mu.Unlock()

	if ready && c.engineCallsAllowed() {
		c.eng.SetRendererSize(w, h)
		c.eng.SetInputClientSize(w, h)
	}
}

func (c *Coordinator) handleSetRendererReady(ready bool) {
	c.mu.Lock()
	c.rendererReady = ready
	c.mu.Unlock()
	c.gate.SetRendererReady(ready)
}

func (c *Coordinator) handleClose(reply chan error) {
	c.mu.Lock()
	alreadyClosed := c.state == StateClosed
	c.state = StateClosed
	c.mu.Unlock()

	if alreadyClosed {
		reply <- core.ErrSessionClosed
		return
	}

	core.LogInfo("closing engine session %s", c.sessionID)
	c.stab.cancel()
	if err := c.eng.CloseSession(); err != nil {
		core.LogWarn("engine close reported: %v", err)
	}
	if !c.binder.JoinFallback(c.cfg.Timing().JoinTimeout()) {
		// A stuck native loop must not hold the UI thread hostage.
		core.LogWarn("fallback run loop did not finish in time, abandoning it")
	}
	if err := c.flag.Clear(); err != nil {
		core.LogError("failed to clear run flag on close: %v", err)
	}
	c.binder.RequestUnbind()
	c.gate.ForceDisable("session closed")
	c.invalidateHandle()

	reply <- nil
	c.closeOnce.Do(func() { close(c.quit) })
}

// acquireHandle re-queries the live native drawable and swaps the handle:
// invalidate-then-acquire, never the other way around.
func (c *Coordinator) acquireHandle(reason string) {
	c.mu.Lock()
	old := c.handle
	c.handle = nil
	c.attached = false
	c.mu.Unlock()
	if old != nil {
		old.invalidate()
	}

	native := c.surface.Native()
	if native == nil {
		core.LogWarn("no native surface available (%s)", reason)
		return
	}

	h := newWindowHandle(native)
	c.mu.Lock()
	c.handle = h
	c.attached = true
	c.mu.Unlock()

	core.MetricsHandleAcquired()
	if !c.engineCallsAllowed() {
		core.LogDebug("holding attach while unbound (%s)", reason)
		return
	}
	if !c.eng.AttachWindow(native) {
		core.LogDebug("engine did not accept window (%s); next lifecycle event retries", reason)
	}
}

func (c *Coordinator) invalidateHandle() {
	c.mu.Lock()
	old := c.handle
	c.handle = nil
	c.attached = false
	c.mu.Unlock()
	if old != nil {
		old.invalidate()
	}
}
