package systems

import (
	"sync"
	"time"

	"github.com/gantryengine/gantry/host/config"
	"github.com/gantryengine/gantry/host/core"
	"github.com/gantryengine/gantry/host/engine"
	"github.com/gantryengine/gantry/host/lifecycle"
)

// metricsLogEvery spaces out the periodic counter dump so the log stays
// readable at small poll intervals.
const metricsLogEvery = 40

// PollerSystem periodically re-asserts the committed client size against the
// engine. Input routing inside the engine recalibrates from the client size,
// and a size call lost during a binding flap would otherwise leave touch
// coordinates skewed until the next resize.
type PollerSystem struct {
	cfg   *config.Config
	eng   *engine.Guarded
	coord *lifecycle.Coordinator

	quit     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewPollerSystem(cfg *config.Config, eng *engine.Guarded, coord *lifecycle.Coordinator) (*PollerSystem, error) {
	ps := &PollerSystem{
		cfg:   cfg,
		eng:   eng,
		coord: coord,
		quit:  make(chan struct{}),
	}
	ps.start()
	return ps, nil
}

func (ps *PollerSystem) start() {
	ps.wg.Add(1)
	go func() {
		defer ps.wg.Done()
		ticker := time.NewTicker(ps.cfg.Timing().PollerInterval())
		defer ticker.Stop()
		ticks := 0
		for {
			select {
			case <-ps.quit:
				return
			case <-ticker.C:
				ps.poll()
				ticks++
				if ticks%metricsLogEvery == 0 {
					m := core.MetricsSnapshot()
					core.LogDebug("lifecycle counters: handles=%d rebinds=%d commits=%d hostLoops=%d fallbackLoops=%d",
						m.HandleAcquires, m.Rebinds, m.StabilizerCommits, m.HostLoops, m.FallbackLoops)
				}
			}
		}
	}()
}

func (ps *PollerSystem) poll() {
	if !ps.coord.SessionActive() {
		return
	}
	// Only while bound: re-issuing sizes to an unbound engine violates the
	// binding contract, and the fallback path already committed its size.
	if ps.coord.BindingState() != lifecycle.HostBound {
		return
	}
	w, h, ok := ps.coord.StableSize()
	if !ok {
		return
	}
	ps.eng.SetInputClientSize(w, h)
}

func (ps *PollerSystem) Shutdown() error {
	ps.stopOnce.Do(func() { close(ps.quit) })
	ps.wg.Wait()
	return nil
}
