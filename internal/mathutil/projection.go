package mathutil

import "github.com/go-gl/mathgl/mgl32"

// Intrinsics are pinhole camera parameters in pixels.
type Intrinsics struct {
	Width, Height int
	Fx, Fy        float32
	Cx, Cy        float32
}

// ProjectionFromIntrinsics returns a GL-style clip transform that maps a view
// space point (X, Y, Z), Z < 0, to window coordinates x = fx·X/-Z + cx and,
// counting rows from the top, y = cy - fy·Y/-Z. Window depth 0 is the near
// plane and 1 the far plane.
func ProjectionFromIntrinsics(in Intrinsics, near, far float32) mgl32.Mat4 {
	w, h := float32(in.Width), float32(in.Height)
	a := -(far + near) / (far - near)
	b := -2 * far * near / (far - near)

	// column-major
	return mgl32.Mat4{
		2 * in.Fx / w, 0, 0, 0,
		0, 2 * in.Fy / h, 0, 0,
		1 - 2*in.Cx/w, 2*in.Cy/h - 1, a, -1,
		0, 0, b, 0,
	}
}
