package engine

import (
	"sync"

	"github.com/gantryengine/gantry/host/core"
)

// Guarded wraps an Engine so that a failed or panicking engine call never
// propagates into the host's lifecycle handling. A single bad call (say, a
// size call on a torn-down renderer) costs at most a log line; the next
// lifecycle event retries naturally. Guarded is also nil-safe: with no engine
// attached every call is a logged no-op.
type Guarded struct {
	mu   sync.RWMutex
	impl Engine
}

func NewGuarded(impl Engine) *Guarded {
	return &Guarded{impl: impl}
}

func (g *Guarded) engine() Engine {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.impl
}

func guard(call string) {
	if r := recover(); r != nil {
		core.LogError("engine call %s failed: %v", call, r)
	}
}

func (g *Guarded) AttachWindow(native any) (ok bool) {
	e := g.engine()
	if e == nil {
		core.LogDebug("no engine, dropping AttachWindow")
		return false
	}
	defer guard("AttachWindow")
	return e.AttachWindow(native)
}

func (g *Guarded) SetRendererSize(width, height uint32) {
	e := g.engine()
	if e == nil {
		core.LogDebug("no engine, dropping SetRendererSize(%d, %d)", width, height)
		return
	}
	defer guard("SetRendererSize")
	e.SetRendererSize(width, height)
}

func (g *Guarded) SetInputClientSize(width, height uint32) {
	e := g.engine()
	if e == nil {
		return
	}
	defer guard("SetInputClientSize")
	e.SetInputClientSize(width, height)
}

func (g *Guarded) SetPresentEnabled(enabled bool) {
	e := g.engine()
	if e == nil {
		return
	}
	defer guard("SetPresentEnabled")
	e.SetPresentEnabled(enabled)
}

// RunLoop blocks until the engine session ends. A panic inside the loop is
// contained here so the hosting goroutine can still run its cleanup.
func (g *Guarded) RunLoop() (err error) {
	e := g.engine()
	if e == nil {
		core.LogWarn("no engine, run loop request dropped")
		return nil
	}
	defer guard("RunLoop")
	return e.RunLoop()
}

func (g *Guarded) CloseSession() (err error) {
	e := g.engine()
	if e == nil {
		return nil
	}
	defer guard("CloseSession")
	return e.CloseSession()
}
