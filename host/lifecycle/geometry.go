package lifecycle

// Rotation is the display rotation in degrees.
type Rotation uint16

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// IsLandscape reports whether the rotation implies width >= height.
func (r Rotation) IsLandscape() bool {
	return r == Rotation90 || r == Rotation270
}

// SurfaceGeometry is one raw sample from the OS. During a rotation flip the
// width/height pair can be transiently inconsistent with the rotation.
// HasRotation marks samples that actually carry rotation information;
// desktop resize callbacks do not, and must not disturb the target.
type SurfaceGeometry struct {
	Width       uint32
	Height      uint32
	Rotation    Rotation
	HasRotation bool
}

// orientSize sanity-corrects a sample against a target rotation by swapping
// components. Never reinterprets or crops.
func orientSize(width, height uint32, target Rotation) (uint32, uint32) {
	if target.IsLandscape() {
		if height > width {
			return height, width
		}
		return width, height
	}
	if width > height {
		return height, width
	}
	return width, height
}
