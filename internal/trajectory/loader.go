package trajectory

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"splat-renderer/internal/errs"
	"splat-renderer/internal/logging"
	"splat-renderer/internal/mathutil"
)

// Load reads the trajectory at path. format may be FormatAuto to select by
// extension.
func Load(path string, format Format) (Trajectory, error) {
	if format == FormatAuto {
		format = FormatForPath(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.LoadError{Path: path, Reason: "open", Err: err}
	}
	defer f.Close()

	var traj Trajectory
	switch format {
	case FormatQuaternion:
		traj, err = DecodeQuaternions(f)
	case FormatMatrix:
		traj, err = DecodeMatrices(f)
	default:
		return nil, &errs.LoadError{Path: path, Reason: fmt.Sprintf("unknown trajectory format %q", format)}
	}
	if err != nil {
		return nil, &errs.LoadError{Path: path, Reason: "decode", Err: err}
	}

	logging.Logger().Info("trajectory loaded", "path", path, "format", string(format), "poses", len(traj))
	return traj, nil
}

// DecodeQuaternions reads pose-quaternion lines. The first line that does
// not parse as eight numbers ends the trajectory, with one exception: blank
// lines and lines starting with '#' are skipped anywhere, so TUM-style
// ground-truth files with header comments load unchanged.
func DecodeQuaternions(r io.Reader) (Trajectory, error) {
	var traj Trajectory
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v, ok := parseFloats(strings.Fields(line), 8)
		if !ok {
			break
		}
		t := mgl32.Vec3{float32(v[1]), float32(v[2]), float32(v[3])}
		view := mathutil.PoseQuaternionView(t, float32(v[4]), float32(v[5]), float32(v[6]), float32(v[7]))
		traj = append(traj, Pose{Timestamp: v[0], View: view})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("trajectory: read: %w", err)
	}
	return traj, nil
}

// DecodeMatrices reads 4×4 row-major matrices, sixteen numbers per pose in
// any line layout. End of input, or a token that is not a number, ends the
// trajectory; a trailing partial block is dropped. Each matrix M becomes
// the view inverse(M · MatrixFileBasis), inverted in float64.
func DecodeMatrices(r io.Reader) (Trajectory, error) {
	var traj Trajectory
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	var m mathutil.RowMajor
	k := 0
	for sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			break
		}
		m[k] = v
		k++
		if k < 16 {
			continue
		}
		k = 0
		inv, err := m.Mul(mathutil.RowMajor(mathutil.MatrixFileBasis)).Inverse()
		if err != nil {
			return nil, fmt.Errorf("trajectory: pose %d: %w", len(traj), err)
		}
		traj = append(traj, Pose{Timestamp: float64(len(traj)), View: inv.Mat4()})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("trajectory: read: %w", err)
	}
	return traj, nil
}

func parseFloats(fields []string, n int) ([]float64, bool) {
	if len(fields) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
