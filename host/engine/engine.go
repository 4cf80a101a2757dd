// Package engine defines the boundary to the hosted rendering/execution
// core. The host never reaches past this interface; the engine's internals
// are someone else's problem.
package engine

// Engine is the call surface the host drives. All calls are synchronous and
// best-effort: implementations may fail or panic while half-initialized, and
// the host will log and carry on (see Guarded).
//
// RunLoop blocks until the engine session ends and therefore must run on a
// background host or fallback goroutine, never on the UI thread.
type Engine interface {
	// AttachWindow hands the engine the current native drawable. The engine
	// only borrows the reference for the duration of the session; ownership
	// stays with the lifecycle coordinator.
	AttachWindow(native any) bool

	SetRendererSize(width, height uint32)
	SetInputClientSize(width, height uint32)
	SetPresentEnabled(enabled bool)

	RunLoop() error
	CloseSession() error
}
