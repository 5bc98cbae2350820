// Package trajectory decodes camera trajectories into view matrices.
//
// Two plain-text encodings are supported, chosen by file extension:
// pose-quaternion lines ("timestamp tx ty tz qx qy qz qw") and blocks of
// four rows of a row-major 4×4 matrix. Both decode to view matrices in the
// renderer's convention; the coordinate corrections are the named values in
// package mathutil.
package trajectory

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Pose is one camera of a trajectory.
type Pose struct {
	// Timestamp is the first field of the pose-quaternion format. For the
	// matrix format it is the block index.
	Timestamp float64
	View      mgl32.Mat4
}

// Trajectory is an ordered list of poses. Order is render order.
type Trajectory []Pose

// Format selects a trajectory encoding.
type Format string

const (
	FormatAuto       Format = ""
	FormatQuaternion Format = "quaternion"
	FormatMatrix     Format = "matrix"
)

var extFormats = map[string]Format{
	".txt":      FormatQuaternion,
	".tum":      FormatQuaternion,
	".freiburg": FormatQuaternion,
	".mat":      FormatMatrix,
	".matrix":   FormatMatrix,
	".poses":    FormatMatrix,
}

// FormatForPath returns the encoding implied by the file extension, or
// FormatAuto when the extension is unknown.
func FormatForPath(path string) Format {
	return extFormats[strings.ToLower(filepath.Ext(path))]
}

// ParseFormat accepts a format name as written in a config file. The empty
// string is FormatAuto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatAuto, FormatQuaternion, FormatMatrix:
		return f, nil
	case "tum", "freiburg":
		return FormatQuaternion, nil
	default:
		return "", fmt.Errorf("trajectory: unknown format %q", s)
	}
}
