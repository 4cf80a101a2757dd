package lifecycle

// input is an item delivered to the coordinator mailbox. Surface callbacks,
// binder completions, stabilizer ticks and close requests all arrive as
// inputs so the coordinator only ever mutates state on its own goroutine.
type input interface {
	isInput()
}

type inputBase struct{}

func (inputBase) isInput() {}

type evSurfaceCreated struct{ inputBase }

type evSurfaceChanged struct {
	inputBase
	geometry SurfaceGeometry
}

type evSurfaceDestroyed struct{ inputBase }

type evWindowFocus struct {
	inputBase
	focused bool
}

type evVisibility struct {
	inputBase
	visible bool
}

type evForeground struct {
	inputBase
	foreground bool
}

type evRotation struct {
	inputBase
	rotation Rotation
}

type evHostBound struct{ inputBase }

type evHostUnbound struct{ inputBase }

type evHostStopped struct{ inputBase }

type evBindGrace struct {
	inputBase
	seq int
}

type evStabilizerTick struct {
	inputBase
	run int
}

type cmdRebind struct {
	inputBase
	force bool
}

type cmdSetRendererReady struct {
	inputBase
	ready bool
}

type cmdSetInputReady struct {
	inputBase
	ready bool
}

type cmdClose struct {
	inputBase
	done chan error
}
