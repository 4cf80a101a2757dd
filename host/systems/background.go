package systems

import (
	"fmt"
	"sync"

	"github.com/gantryengine/gantry/host/core"
)

// HostCallbacks receive the asynchronous completions of the background host:
// bind finished, binding released, host stopped. They are invoked on the
// host's control goroutine and must only enqueue, never block.
type HostCallbacks struct {
	OnBound   func()
	OnUnbound func()
	OnStopped func()
}

type BackgroundHostSystemConfig struct {
	// QueueSize bounds the pending bind/unbind completions.
	QueueSize int
}

var ErrNegativeQueueSize = fmt.Errorf("attempting to create background host with a negative queue size")

// BackgroundHostSystem is the in-process background execution context. It
// owns a control goroutine that delivers bind and unbind completions
// asynchronously, and hands out worker goroutines for blocking run loops that
// must outlive the foreground window.
type BackgroundHostSystem struct {
	callbacks HostCallbacks
	tasks     chan func()
	quit      chan struct{}
	control   sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

func NewBackgroundHostSystem(config *BackgroundHostSystemConfig, callbacks HostCallbacks) (*BackgroundHostSystem, error) {
	if config.QueueSize < 0 {
		return nil, ErrNegativeQueueSize
	}
	size := config.QueueSize
	if size == 0 {
		size = 16
	}
	return &BackgroundHostSystem{
		callbacks: callbacks,
		tasks:     make(chan func(), size),
		quit:      make(chan struct{}),
	}, nil
}

// Start launches the control goroutine. Idempotent while the host is alive;
// a stopped host stays stopped.
func (bh *BackgroundHostSystem) Start() error {
	bh.mu.Lock()
	defer bh.mu.Unlock()
	if bh.stopped {
		return core.ErrHostUnavailable
	}
	if bh.started {
		return nil
	}
	bh.started = true

	bh.control.Add(1)
	go func() {
		defer bh.control.Done()
		for {
			select {
			case <-bh.quit:
				return
			case task := <-bh.tasks:
				task()
			}
		}
	}()
	core.LogDebug("background host started")
	return nil
}

// Bind requests a binding. Completion arrives asynchronously through
// OnBound; callers must not assume the binding exists when Bind returns.
func (bh *BackgroundHostSystem) Bind() error {
	return bh.post(func() {
		core.LogDebug("background host bind complete")
		if bh.callbacks.OnBound != nil {
			bh.callbacks.OnBound()
		}
	})
}

// Unbind releases the binding. Running work is unaffected.
func (bh *BackgroundHostSystem) Unbind() {
	err := bh.post(func() {
		core.LogDebug("background host unbind complete")
		if bh.callbacks.OnUnbound != nil {
			bh.callbacks.OnUnbound()
		}
	})
	if err != nil {
		core.LogDebug("unbind on unavailable host ignored")
	}
}

// RunInHost runs fn on a host-owned goroutine, detached from the control
// loop so blocking run loops never starve completions. Returns false when the
// host cannot take work.
func (bh *BackgroundHostSystem) RunInHost(fn func()) bool {
	bh.mu.Lock()
	ok := bh.started && !bh.stopped
	bh.mu.Unlock()
	if !ok {
		return false
	}
	go fn()
	return true
}

// Stop kills the host. Idempotent; pending completions are dropped, running
// work keeps running until its own loop ends.
func (bh *BackgroundHostSystem) Stop() {
	bh.mu.Lock()
	if !bh.started || bh.stopped {
		bh.mu.Unlock()
		return
	}
	bh.stopped = true
	bh.mu.Unlock()

	close(bh.quit)
	bh.control.Wait()
	core.LogDebug("background host stopped")
	if bh.callbacks.OnStopped != nil {
		bh.callbacks.OnStopped()
	}
}

// Shutdown stops the host and waits for the control goroutine.
func (bh *BackgroundHostSystem) Shutdown() error {
	bh.Stop()
	return nil
}

func (bh *BackgroundHostSystem) post(task func()) error {
	bh.mu.Lock()
	ok := bh.started && !bh.stopped
	bh.mu.Unlock()
	if !ok {
		return core.ErrHostUnavailable
	}
	select {
	case bh.tasks <- task:
		return nil
	default:
		core.LogWarn("background host queue full")
		return core.ErrHostUnavailable
	}
}
