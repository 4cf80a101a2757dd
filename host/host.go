package host

import (
	"fmt"
	"sync/atomic"

	"github.com/gantryengine/gantry/host/config"
	"github.com/gantryengine/gantry/host/core"
	"github.com/gantryengine/gantry/host/engine"
	"github.com/gantryengine/gantry/host/lifecycle"
	"github.com/gantryengine/gantry/host/platform"
	"github.com/gantryengine/gantry/host/storage"
	"github.com/gantryengine/gantry/host/systems"
)

type Stage uint8

const (
	// Host is in an uninitialized state
	HostStageUninitialized Stage = iota
	// Host is currently initializing
	HostStageInitializing
	// Host initialization is complete
	HostStageInitialized
	// Host is currently running
	HostStageRunning
	// Host is in the process of shutting down
	HostStageShuttingDown
)

// Host assembles the whole lifecycle stack around an externally supplied
// engine: window platform, event bus, background host, coordinator, present
// gate, zombie guard and the client-size poller. Embedders construct one Host
// per process and drive it with Initialize, Run and Shutdown from the main
// thread.
type Host struct {
	currentStage  Stage
	cfg           *config.Config
	eng           *engine.Guarded
	platform      *platform.Platform
	systemManager *systems.SystemManager
	coordinator   *lifecycle.Coordinator
	zombieGuard   *lifecycle.ZombieGuard
	runFlag       *storage.RunFlag
	clock         *core.Clock
	// Read by the pump loop, written by event handlers on the ProcessEvents
	// goroutine.
	isRunning atomic.Bool
}

func New(cfg *config.Config, impl engine.Engine) (*Host, error) {
	p, err := platform.New()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	h := &Host{
		currentStage: HostStageUninitialized,
		cfg:          cfg,
		eng:          engine.NewGuarded(impl),
		platform:     p,
		runFlag:      storage.NewRunFlag(cfg.StateDir()),
		clock:        core.NewClock(),
	}

	// The background host reports completions straight into the coordinator's
	// mailbox. The coordinator does not exist yet, so route through h.
	sm, err := systems.NewSystemManager(systems.HostCallbacks{
		OnBound:   func() { h.coordinator.NotifyHostBound() },
		OnUnbound: func() { h.coordinator.NotifyHostUnbound() },
		OnStopped: func() { h.coordinator.NotifyHostStopped() },
	})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	h.systemManager = sm

	h.coordinator = lifecycle.NewCoordinator(cfg, h.eng, p, sm.BackgroundHost(), h.runFlag)
	h.zombieGuard = lifecycle.NewZombieGuard(
		h.runFlag,
		h.coordinator.Gate(),
		sm.BackgroundHost(),
		h.coordinator.SessionActive,
		h.coordinator.ResetRendererReady,
	)
	return h, nil
}

func (h *Host) Initialize() error {
	h.currentStage = HostStageInitializing
	core.SetLogLevel(h.cfg.LogLevel())

	if !core.EventSystemInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	core.EventRegister(core.EVENT_TYPE_SURFACE_CREATED, h.onSurface)
	core.EventRegister(core.EVENT_TYPE_SURFACE_CHANGED, h.onSurface)
	core.EventRegister(core.EVENT_TYPE_SURFACE_DESTROYED, h.onSurface)
	core.EventRegister(core.EVENT_TYPE_WINDOW_FOCUS, h.onWindow)
	core.EventRegister(core.EVENT_TYPE_WINDOW_VISIBILITY, h.onWindow)
	core.EventRegister(core.EVENT_TYPE_APP_FOREGROUND, h.onForeground)
	core.EventRegister(core.EVENT_TYPE_ROTATION_CHANGED, h.onRotation)
	core.EventRegister(core.EVENT_TYPE_APPLICATION_QUIT, h.onQuit)
	go core.ProcessEvents()

	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	// A flag left behind by a process that died mid-session means stale
	// engine state; reset before anything touches the engine.
	h.zombieGuard.CheckAndReset("process start")

	h.coordinator.Start()

	if err := h.platform.Startup(h.cfg); err != nil {
		return err
	}
	if err := h.cfg.StartWatcher(); err != nil {
		core.LogWarn("config watcher not started: %v", err)
	}
	if err := h.systemManager.AttachPoller(h.cfg, h.eng, h.coordinator); err != nil {
		return err
	}

	// Input routing on the host side is ready as soon as the window exists.
	h.coordinator.SetInputReady(true)

	h.currentStage = HostStageInitialized
	return nil
}

// Run pumps window messages until quit. Must run on the main thread.
func (h *Host) Run() error {
	h.currentStage = HostStageRunning
	h.clock.Start()
	h.isRunning.Store(true)

	for h.isRunning.Load() {
		h.platform.PumpMessages()
		h.platform.WaitMessages()
	}
	return nil
}

func (h *Host) Shutdown() error {
	h.currentStage = HostStageShuttingDown
	h.isRunning.Store(false)
	h.clock.Update()
	h.clock.Stop()

	if err := h.coordinator.Close(); err != nil && err != core.ErrSessionClosed {
		core.LogWarn("coordinator close: %v", err)
	}
	h.cfg.StopWatcher()
	if err := h.systemManager.Shutdown(); err != nil {
		return err
	}
	if err := core.EventSystemShutdown(); err != nil {
		return err
	}
	if err := h.platform.Shutdown(); err != nil {
		return err
	}
	core.LogInfo("host shut down after %s", h.clock.Elapsed())
	return nil
}

// Coordinator exposes the lifecycle state machine for embedders and tests.
func (h *Host) Coordinator() *lifecycle.Coordinator { return h.coordinator }

// NotifyRendererReady is called by the engine integration once the renderer
// produced its first frame and can accept size and present calls.
func (h *Host) NotifyRendererReady(ready bool) {
	h.coordinator.SetRendererReady(ready)
}

// NotifyRotationChanged is called by embedders on platforms that report
// display rotation.
func (h *Host) NotifyRotationChanged(degrees uint16) {
	core.EventFire(core.EventContext{
		Type: core.EVENT_TYPE_ROTATION_CHANGED,
		Data: &core.RotationEvent{Degrees: degrees},
	})
}

func (h *Host) onSurface(context core.EventContext) {
	switch context.Type {
	case core.EVENT_TYPE_SURFACE_CREATED:
		h.coordinator.OnSurfaceCreated()
	case core.EVENT_TYPE_SURFACE_CHANGED:
		se, ok := context.Data.(*core.SurfaceEvent)
		if !ok {
			core.LogError("wrong event associated with the event type `%d`", context.Type)
			return
		}
		h.coordinator.OnSurfaceChanged(lifecycle.SurfaceGeometry{
			Width:  se.Width,
			Height: se.Height,
		})
	case core.EVENT_TYPE_SURFACE_DESTROYED:
		h.coordinator.OnSurfaceDestroyed()
	}
}

func (h *Host) onWindow(context core.EventContext) {
	switch context.Type {
	case core.EVENT_TYPE_WINDOW_FOCUS:
		fe, ok := context.Data.(*core.FocusEvent)
		if !ok {
			core.LogError("wrong event associated with the event type `%d`", context.Type)
			return
		}
		h.coordinator.OnWindowFocusChanged(fe.Focused)
	case core.EVENT_TYPE_WINDOW_VISIBILITY:
		ve, ok := context.Data.(*core.VisibilityEvent)
		if !ok {
			core.LogError("wrong event associated with the event type `%d`", context.Type)
			return
		}
		h.coordinator.OnVisibilityChanged(ve.Visible)
	}
}

func (h *Host) onForeground(context core.EventContext) {
	fe, ok := context.Data.(*core.ForegroundEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}
	h.coordinator.OnAppForeground(fe.Foreground)
	if fe.Foreground {
		// Resume is the other moment a stale flag can surface: the process
		// survived in the background while its session state did not.
		h.zombieGuard.CheckAndReset("foreground resume")
	}
}

func (h *Host) onRotation(context core.EventContext) {
	re, ok := context.Data.(*core.RotationEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}
	h.coordinator.OnRotationChanged(lifecycle.Rotation(re.Degrees))
}

func (h *Host) onQuit(context core.EventContext) {
	core.LogInfo("application quit requested, shutting down")
	h.isRunning.Store(false)
}
