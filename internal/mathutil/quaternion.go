package mathutil

import "github.com/go-gl/mathgl/mgl32"

// PoseQuaternionView builds a view matrix from one pose-quaternion record
// (translation t, rotation q = qx,qy,qz,qw):
//
//	V = transpose(R(q')) · T(-tx, -ty, +tz) · FlipXZ
//
// where q' is q with QuaternionAxisSigns applied.
func PoseQuaternionView(t mgl32.Vec3, qx, qy, qz, qw float32) mgl32.Mat4 {
	q := mgl32.Quat{
		W: qw,
		V: mgl32.Vec3{
			qx * QuaternionAxisSigns[0],
			qy * QuaternionAxisSigns[1],
			qz * QuaternionAxisSigns[2],
		},
	}.Normalize()

	rot := q.Mat4().Transpose()
	trans := mgl32.Translate3D(-t[0], -t[1], t[2])
	return rot.Mul4(trans).Mul4(FlipXZ)
}

// PoseQuaternionFromView inverts PoseQuaternionView. The returned quaternion
// is normalized; q and -q describe the same pose.
func PoseQuaternionFromView(v mgl32.Mat4) (t mgl32.Vec3, qx, qy, qz, qw float32) {
	vp := v.Mul4(FlipXZ)

	// vp = R^T · T(u): the upper 3×3 is R^T and the last column is R^T·u.
	rt := vp.Mat3().Mat4()
	r := rt.Transpose()
	q := mgl32.Mat4ToQuat(r).Normalize()

	c := vp.Col(3)
	u := r.Mul4x1(mgl32.Vec4{c[0], c[1], c[2], 0})

	t = mgl32.Vec3{-u[0], -u[1], u[2]}
	qx = q.V[0] * QuaternionAxisSigns[0]
	qy = q.V[1] * QuaternionAxisSigns[1]
	qz = q.V[2] * QuaternionAxisSigns[2]
	qw = q.W
	return t, qx, qy, qz, qw
}
