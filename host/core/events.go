package core

import "sync"

type EventType int

// System internal event types. Applications should use types beyond 255.
const (
	// The native drawable surface became available.
	EVENT_TYPE_SURFACE_CREATED EventType = 0x01

	// The native drawable surface changed size.
	/* Data: *SurfaceEvent */
	EVENT_TYPE_SURFACE_CHANGED EventType = 0x02

	// The native drawable surface was destroyed or replaced.
	EVENT_TYPE_SURFACE_DESTROYED EventType = 0x03

	// The window gained or lost input focus.
	/* Data: *FocusEvent */
	EVENT_TYPE_WINDOW_FOCUS EventType = 0x04

	// The window became visible or hidden (iconified).
	/* Data: *VisibilityEvent */
	EVENT_TYPE_WINDOW_VISIBILITY EventType = 0x05

	// The application moved to the foreground or background.
	/* Data: *ForegroundEvent */
	EVENT_TYPE_APP_FOREGROUND EventType = 0x06

	// The device/display rotation changed.
	/* Data: *RotationEvent */
	EVENT_TYPE_ROTATION_CHANGED EventType = 0x07

	// The background execution host stopped outside of a clean close.
	EVENT_TYPE_HOST_STOPPED EventType = 0x08

	// Shuts the application down on the next pump.
	EVENT_TYPE_APPLICATION_QUIT EventType = 0x09

	MAX_EVENT_TYPE EventType = 0xFF
)

type EventContext struct {
	Type EventType
	Data interface{}
}

type SurfaceEvent struct {
	Width  uint32
	Height uint32
}

type FocusEvent struct {
	Focused bool
}

type VisibilityEvent struct {
	Visible bool
}

type ForegroundEvent struct {
	Foreground bool
}

type RotationEvent struct {
	Degrees uint16
}

type FnOnEvent func(context EventContext)

const eventQueueSize = 512

type eventSystemState struct {
	mu       sync.RWMutex
	handlers map[EventType][]FnOnEvent
	queue    chan EventContext
	quit     chan struct{}
}

var eventMu sync.Mutex
var eventState *eventSystemState = nil
var isInitialized bool = false

func EventSystemInitialize() bool {
	eventMu.Lock()
	defer eventMu.Unlock()
	if isInitialized {
		return false
	}
	eventState = &eventSystemState{
		handlers: make(map[EventType][]FnOnEvent),
		queue:    make(chan EventContext, eventQueueSize),
		quit:     make(chan struct{}),
	}
	isInitialized = true
	return true
}

func EventSystemShutdown() error {
	eventMu.Lock()
	defer eventMu.Unlock()
	if !isInitialized {
		return nil
	}
	isInitialized = false
	close(eventState.quit)
	eventState.mu.Lock()
	eventState.handlers = make(map[EventType][]FnOnEvent)
	eventState.mu.Unlock()
	return nil
}

func currentEventState() *eventSystemState {
	eventMu.Lock()
	defer eventMu.Unlock()
	if !isInitialized {
		return nil
	}
	return eventState
}

// EventRegister subscribes a callback to the given event type. Callbacks run
// on the ProcessEvents goroutine, never on the firing thread.
func EventRegister(eventType EventType, onEvent FnOnEvent) bool {
	state := currentEventState()
	if state == nil || onEvent == nil {
		return false
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	state.handlers[eventType] = append(state.handlers[eventType], onEvent)
	return true
}

// EventFire enqueues an event for asynchronous dispatch. Firing never blocks
// the caller; when the queue is saturated the event is dropped with a warning.
func EventFire(context EventContext) bool {
	state := currentEventState()
	if state == nil {
		return false
	}
	select {
	case state.queue <- context:
		return true
	case <-state.quit:
		return false
	default:
		LogWarn("event queue full, dropping event type %d", context.Type)
		return false
	}
}

// ProcessEvents dispatches queued events to their handlers until the event
// system is shut down. It is meant to run on its own goroutine and is the
// single place where event callbacks execute.
func ProcessEvents() {
	state := currentEventState()
	if state == nil {
		return
	}
	for {
		select {
		case <-state.quit:
			return
		case context := <-state.queue:
			state.mu.RLock()
			handlers := state.handlers[context.Type]
			state.mu.RUnlock()
			for _, h := range handlers {
				h(context)
			}
		}
	}
}
