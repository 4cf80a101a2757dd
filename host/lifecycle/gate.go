package lifecycle

import (
	"sync"
	"time"

	"github.com/gantryengine/gantry/host/containers"
	"github.com/gantryengine/gantry/host/core"
)

const decisionHistorySize = 32

// PresentDecision is one recomputed, logged present-enable decision.
type PresentDecision struct {
	Enabled bool
	Reason  string
	At      time.Time
}

// PresentGate fuses foreground, window focus and renderer readiness into a
// single present-enable decision with hysteresis: enabling waits out a settle
// delay and is re-checked before it is applied, while disabling is always
// immediate. Presenting into a torn-down surface is worse than one spare
// disable call, so the asymmetry is deliberate.
//
// Transitions are idempotent at the engine boundary: the underlying apply
// function fires only when the decision actually flips.
type PresentGate struct {
	mu            sync.Mutex
	foreground    bool
	focused       bool
	rendererReady bool
	enabled       bool
	seq           int

	apply    func(bool)
	settle   func() time.Duration
	schedule func(time.Duration, func())
	allowed  func() bool
	history  *containers.RingQueue[PresentDecision]
}

// NewPresentGate builds a gate applying decisions through apply. settle
// supplies the current settle delay; schedule defaults to time.AfterFunc.
// allowed, when non-nil, is consulted before an enable reaches the engine;
// a held enable is re-run by Reassert. Disables are never held.
func NewPresentGate(apply func(bool), settle func() time.Duration, schedule func(time.Duration, func()), allowed func() bool) *PresentGate {
	if schedule == nil {
		schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	return &PresentGate{
		// Processes launch foregrounded; focus and readiness must be proven.
		foreground: true,
		apply:      apply,
		settle:     settle,
		schedule:   schedule,
		allowed:    allowed,
		history:    containers.NewRingQueue[PresentDecision](decisionHistorySize),
	}
}

func (g *PresentGate) SetForeground(foreground bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.foreground == foreground {
		return
	}
	g.foreground = foreground
	g.recomputeLocked("foreground changed")
}

func (g *PresentGate) SetWindowFocus(focused bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.focused == focused {
		return
	}
	g.focused = focused
	g.recomputeLocked("window focus changed")
}

func (g *PresentGate) SetRendererReady(ready bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rendererReady == ready {
		return
	}
	g.rendererReady = ready
	g.recomputeLocked("renderer readiness changed")
}

// ForceDisable drops renderer readiness and disables presentation
// immediately. Used by the zombie cold reset and session close.
func (g *PresentGate) ForceDisable(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rendererReady = false
	g.recomputeLocked(reason)
}

func (g *PresentGate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// Decisions returns the recent decision history, oldest first.
func (g *PresentGate) Decisions() []PresentDecision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.history.Items()
}

func (g *PresentGate) recomputeLocked(reason string) {
	want := g.foreground && g.focused && g.rendererReady

	if !want {
		// Invalidate any enable still waiting out its settle delay.
		g.seq++
		if g.enabled {
			g.enabled = false
			g.recordLocked(false, reason)
			g.apply(false)
		}
		return
	}

	if g.enabled {
		return
	}

	// Enabling a frame before the window is actually focused flashes a stale
	// frame, so the decision is re-checked after the settle delay.
	g.seq++
	seq := g.seq
	core.LogDebug("present enable candidate (%s), settling", reason)
	g.schedule(g.settle(), func() { g.confirmEnable(seq, reason) })
}

func (g *PresentGate) confirmEnable(seq int, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if seq != g.seq || g.enabled {
		return
	}
	if !(g.foreground && g.focused && g.rendererReady) {
		return
	}
	if g.allowed != nil && !g.allowed() {
		core.LogDebug("present enable held, engine calls not allowed (%s)", reason)
		return
	}
	g.enabled = true
	g.recordLocked(true, reason)
	g.apply(true)
}

// Reassert re-runs the enable decision after the allowed predicate opened up,
// typically on bind completion or fallback start. No-op when already enabled
// or the inputs disagree.
func (g *PresentGate) Reassert() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.enabled || !(g.foreground && g.focused && g.rendererReady) {
		return
	}
	g.recomputeLocked("engine calls allowed again")
}

func (g *PresentGate) recordLocked(enabled bool, reason string) {
	g.history.ForceEnqueue(PresentDecision{
		Enabled: enabled,
		Reason:  reason,
		At:      time.Now(),
	})
	core.MetricsPresentChanged(enabled)
	core.LogInfo("present %v (%s)", enabled, reason)
}
