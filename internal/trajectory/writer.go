package trajectory

import (
	"bufio"
	"fmt"
	"io"

	"splat-renderer/internal/mathutil"
)

// WriteQuaternions encodes traj in the pose-quaternion format. Reading the
// output with DecodeQuaternions reproduces the view matrices up to float32
// rounding.
func WriteQuaternions(w io.Writer, traj Trajectory) error {
	bw := bufio.NewWriter(w)
	for _, p := range traj {
		t, qx, qy, qz, qw := mathutil.PoseQuaternionFromView(p.View)
		fmt.Fprintf(bw, "%.6f %g %g %g %g %g %g %g\n", p.Timestamp, t[0], t[1], t[2], qx, qy, qz, qw)
	}
	return bw.Flush()
}

// WriteMatrices encodes traj in the 4×4 matrix format, one row per line.
func WriteMatrices(w io.Writer, traj Trajectory) error {
	bw := bufio.NewWriter(w)
	basisInv, err := mathutil.RowMajor(mathutil.MatrixFileBasis).Inverse()
	if err != nil {
		return err
	}
	for i, p := range traj {
		pose, err := mathutil.RowMajorFromMat4(p.View).Inverse()
		if err != nil {
			return fmt.Errorf("trajectory: pose %d: %w", i, err)
		}
		m := pose.Mul(basisInv)
		for r := 0; r < 4; r++ {
			fmt.Fprintf(bw, "%.9g %.9g %.9g %.9g\n", m[r*4], m[r*4+1], m[r*4+2], m[r*4+3])
		}
	}
	return bw.Flush()
}
