package lifecycle

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// WindowHandle is an opaque reference to the current native drawable. At most
// one handle is live at a time; a handle is invalidated (never revalidated or
// reused) when the surface is destroyed or replaced. The coordinator owns the
// handle exclusively; the engine only borrows the native reference for the
// duration of a call.
type WindowHandle struct {
	id     uuid.UUID
	native any
	valid  atomic.Bool
}

func newWindowHandle(native any) *WindowHandle {
	h := &WindowHandle{
		id:     uuid.New(),
		native: native,
	}
	h.valid.Store(true)
	return h
}

func (h *WindowHandle) ID() uuid.UUID {
	return h.id
}

func (h *WindowHandle) Native() any {
	return h.native
}

func (h *WindowHandle) Valid() bool {
	return h.valid.Load()
}

func (h *WindowHandle) invalidate() {
	h.valid.Store(false)
}
