package lifecycle

// Device rotation delivers several transposed or plain wrong geometry
// callbacks before settling. Committing the first sample produces a squashed
// frame; waiting for silence is unbounded. The stabilizer debounces: it polls
// the actual surface size on a fixed cadence and commits on the first
// confirmed repeat, capped at a bounded number of attempts (~192ms worst case
// at 16ms x 12).
//
// The stabilizer is owned by the coordinator and only ever touched from the
// coordinator goroutine; ticks arrive as mailbox inputs, never from a
// dedicated goroutine.

type stabStatus uint8

const (
	// Tick belongs to a cancelled or finished run.
	stabStale stabStatus = iota
	// Run continues, schedule another tick.
	stabPending
	// Run finished with a committed size.
	stabCommitted
)

type stabilizer struct {
	run          int
	active       bool
	attempts     int
	stable       int
	candW, candH uint32
	hasCandidate bool
	target       Rotation
	hasTarget    bool
	maxAttempts  int
}

func newStabilizer() *stabilizer {
	return &stabilizer{}
}

// start begins a new stabilization run and cancels any in-flight one (last
// request wins). target is the known display rotation, nil when none was
// supplied. Returns the run ID that ticks must carry.
func (s *stabilizer) start(target *Rotation, maxAttempts int) int {
	s.run++
	s.active = true
	s.attempts = 0
	s.stable = 0
	s.hasCandidate = false
	s.candW, s.candH = 0, 0
	s.hasTarget = target != nil
	if s.hasTarget {
		s.target = *target
	}
	if maxAttempts <= 0 {
		maxAttempts = 12
	}
	s.maxAttempts = maxAttempts
	return s.run
}

// tick feeds one sampled surface size into the run identified by run. It
// returns the committed size when the run completes.
func (s *stabilizer) tick(run int, width, height uint32) (uint32, uint32, stabStatus) {
	if run != s.run || !s.active {
		return 0, 0, stabStale
	}
	if s.hasTarget {
		width, height = orientSize(width, height, s.target)
	}

	s.attempts++
	if s.hasCandidate && width == s.candW && height == s.candH {
		s.stable++
	} else {
		s.candW, s.candH = width, height
		s.stable = 0
		s.hasCandidate = true
	}

	if s.stable >= 1 || s.attempts >= s.maxAttempts {
		s.active = false
		return s.candW, s.candH, stabCommitted
	}
	return 0, 0, stabPending
}

func (s *stabilizer) cancel() {
	s.active = false
}
