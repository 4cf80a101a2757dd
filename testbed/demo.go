package testbed

import (
	"sync"
	"time"

	"github.com/gantryengine/gantry/host/core"
)

// DemoEngine is a stand-in for the real rendering engine: it honors the full
// engine contract, simulates frame production on its run loop, and reports
// readiness once it could have produced a first frame. Useful for exercising
// the host end to end without a GPU backend.
type DemoEngine struct {
	// OnReady fires once, from the run loop, when the renderer is sized and
	// could present. Wire it to Host.NotifyRendererReady.
	OnReady func()

	mu         sync.Mutex
	attached   bool
	width      uint32
	height     uint32
	presenting bool
	frames     uint64

	quit      chan struct{}
	closeOnce sync.Once
	readyOnce sync.Once
}

func NewDemoEngine() *DemoEngine {
	return &DemoEngine{
		quit: make(chan struct{}),
	}
}

func (e *DemoEngine) AttachWindow(native any) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attached = native != nil
	core.LogInfo("demo engine attached to window: %v", e.attached)
	return e.attached
}

func (e *DemoEngine) SetRendererSize(width, height uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.width, e.height = width, height
	core.LogInfo("demo engine renderer size %dx%d", width, height)
}

func (e *DemoEngine) SetInputClientSize(width, height uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	core.LogDebug("demo engine input client size %dx%d", width, height)
}

func (e *DemoEngine) SetPresentEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.presenting = enabled
	core.LogInfo("demo engine presenting: %v", enabled)
}

// RunLoop simulates a 60Hz frame loop until CloseSession.
func (e *DemoEngine) RunLoop() error {
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-e.quit:
			e.mu.Lock()
			frames := e.frames
			e.mu.Unlock()
			core.LogInfo("demo engine run loop ended after %d frames", frames)
			return nil
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *DemoEngine) tick() {
	e.mu.Lock()
	sized := e.attached && e.width > 0 && e.height > 0
	if sized && e.presenting {
		e.frames++
	}
	e.mu.Unlock()

	if sized {
		e.readyOnce.Do(func() {
			if e.OnReady != nil {
				e.OnReady()
			}
		})
	}
}

func (e *DemoEngine) CloseSession() error {
	e.closeOnce.Do(func() { close(e.quit) })
	return nil
}

// Frames returns the number of simulated presented frames.
func (e *DemoEngine) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}
