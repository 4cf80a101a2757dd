package lifecycle

import (
	"github.com/gantryengine/gantry/host/core"
	"github.com/gantryengine/gantry/host/storage"
)

// ZombieGuard detects sessions whose owning process died without a clean
// close: the persisted run flag says "running" while no in-memory session
// exists. Detection runs at process start, on resume from background, and on
// host-stopped notifications.
type ZombieGuard struct {
	flag          *storage.RunFlag
	gate          *PresentGate
	host          BackgroundHost
	sessionActive func() bool
	resetRenderer func()
}

func NewZombieGuard(flag *storage.RunFlag, gate *PresentGate, host BackgroundHost, sessionActive func() bool, resetRenderer func()) *ZombieGuard {
	return &ZombieGuard{
		flag:          flag,
		gate:          gate,
		host:          host,
		sessionActive: sessionActive,
		resetRenderer: resetRenderer,
	}
}

// CheckAndReset performs a cold reset when a zombie session is found and
// reports whether one happened. It runs on cold start paths and must never
// panic outward.
func (z *ZombieGuard) CheckAndReset(trigger string) (reset bool) {
	defer func() {
		if r := recover(); r != nil {
			core.LogError("zombie check failed (%s): %v", trigger, r)
			reset = false
		}
	}()

	running, session := z.flag.ReadSession()
	if !running {
		return false
	}
	if z.sessionActive != nil && z.sessionActive() {
		// The flag is honest: a session is live in this process.
		return false
	}

	core.LogWarn("zombie session %q detected (%s), performing cold reset", session, trigger)
	if err := z.flag.Clear(); err != nil {
		core.LogError("failed to clear run flag during cold reset: %v", err)
	}
	if z.gate != nil {
		z.gate.ForceDisable("zombie cold reset")
	}
	if z.host != nil {
		z.host.Stop()
	}
	if z.resetRenderer != nil {
		z.resetRenderer()
	}
	core.MetricsZombieReset()
	return true
}
