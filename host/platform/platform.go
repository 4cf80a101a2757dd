package platform

import (
	"runtime"
	"sync/atomic"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gantryengine/gantry/host/config"
	"github.com/gantryengine/gantry/host/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the native window and translates GLFW callbacks into
// lifecycle events on the bus. Size getters are served from atomically
// cached values so the coordinator and stabilizer can sample them from any
// goroutine without touching GLFW off the main thread.
type Platform struct {
	Window *glfw.Window

	frameW atomic.Uint32
	frameH atomic.Uint32
	viewW  atomic.Uint32
	viewH  atomic.Uint32
}

func New() (*Platform, error) {
	return &Platform{
		Window: nil,
	}, nil
}

func (p *Platform) Startup(cfg *config.Config) error {
	if err := glfw.Init(); err != nil {
		core.LogFatal("failed to initialize glfw: %s", err)
		return err
	}

	wc := cfg.Window()

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // The engine brings its own graphics context.

	window, err := glfw.CreateWindow(int(wc.Width), int(wc.Height), wc.Title, nil, nil)
	if err != nil {
		core.LogFatal("failed to create window: %s", err)
		return err
	}
	p.Window = window

	p.viewW.Store(wc.Width)
	p.viewH.Store(wc.Height)
	fw, fh := window.GetFramebufferSize()
	p.frameW.Store(uint32(fw))
	p.frameH.Store(uint32(fh))

	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetSizeCallback(p.sizeCallback)
	p.Window.SetFocusCallback(p.focusCallback)
	p.Window.SetIconifyCallback(p.iconifyCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(wc.PosX), int(wc.PosY))
	p.Window.Show()

	core.EventFire(core.EventContext{Type: core.EVENT_TYPE_SURFACE_CREATED})

	return nil
}

func (p *Platform) Shutdown() error {
	glfw.Terminate()
	return nil
}

// PumpMessages drains pending window events. Must run on the main thread.
func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

// WaitMessages blocks until an event arrives, then drains. Keeps the pump
// loop off a busy spin while nothing happens.
func (p *Platform) WaitMessages() {
	glfw.WaitEventsTimeout(0.1)
}

// Native returns the live window object. Nil after the window closed.
func (p *Platform) Native() any {
	if p.Window == nil {
		return nil
	}
	return p.Window
}

// FrameSize is the last reported framebuffer size in pixels.
func (p *Platform) FrameSize() (uint32, uint32) {
	return p.frameW.Load(), p.frameH.Load()
}

// ViewSize is the last reported logical window size.
func (p *Platform) ViewSize() (uint32, uint32) {
	return p.viewW.Load(), p.viewH.Load()
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.frameW.Store(uint32(width))
	p.frameH.Store(uint32(height))
	core.EventFire(core.EventContext{
		Type: core.EVENT_TYPE_SURFACE_CHANGED,
		Data: &core.SurfaceEvent{Width: uint32(width), Height: uint32(height)},
	})
}

func (p *Platform) sizeCallback(w *glfw.Window, width, height int) {
	p.viewW.Store(uint32(width))
	p.viewH.Store(uint32(height))
}

func (p *Platform) focusCallback(w *glfw.Window, focused bool) {
	core.EventFire(core.EventContext{
		Type: core.EVENT_TYPE_WINDOW_FOCUS,
		Data: &core.FocusEvent{Focused: focused},
	})
}

func (p *Platform) iconifyCallback(w *glfw.Window, iconified bool) {
	// Iconify doubles as the foreground signal on desktop: a minimized
	// window is both invisible and backgrounded.
	core.EventFire(core.EventContext{
		Type: core.EVENT_TYPE_WINDOW_VISIBILITY,
		Data: &core.VisibilityEvent{Visible: !iconified},
	})
	core.EventFire(core.EventContext{
		Type: core.EVENT_TYPE_APP_FOREGROUND,
		Data: &core.ForegroundEvent{Foreground: !iconified},
	})
}

func (p *Platform) closeCallback(w *glfw.Window) {
	core.EventFire(core.EventContext{Type: core.EVENT_TYPE_SURFACE_DESTROYED})
	core.EventFire(core.EventContext{Type: core.EVENT_TYPE_APPLICATION_QUIT})
}
