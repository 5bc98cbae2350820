package mathutil

import "github.com/go-gl/mathgl/mgl32"

// Coordinate-system corrections between trajectory files and the renderer's
// right-handed, camera-looks-down-minus-Z basis. Every sign flip lives here.
var (
	// FlipXZ mirrors the X and Z axes: diag(-1, 1, -1, 1). It is applied on
	// the right of every pose-quaternion view matrix. It is its own inverse.
	FlipXZ = mgl32.Diag4(mgl32.Vec4{-1, 1, -1, 1})

	// QuaternionAxisSigns negates the x and y quaternion components of the
	// pose-quaternion format before the rotation is built.
	QuaternionAxisSigns = mgl32.Vec3{-1, -1, 1}

	// MatrixFileBasis is the coordinate transform composed with every matrix
	// read from the row-major 4×4 format before inversion.
	MatrixFileBasis = [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
)
