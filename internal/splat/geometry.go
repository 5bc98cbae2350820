// Package splat builds the static disc geometry instanced once per point.
package splat

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MinSegments is the smallest fan that still encloses an area.
const MinSegments = 3

// BuildFan returns a triangle fan approximating a circle of the given radius
// in the local XY plane: the centre at the origin followed by segments+1
// perimeter vertices, the last coinciding with the first.
func BuildFan(segments int, radius float32) []mgl32.Vec3 {
	if segments < MinSegments {
		segments = MinSegments
	}
	verts := make([]mgl32.Vec3, 0, segments+2)
	verts = append(verts, mgl32.Vec3{})
	for i := 0; i <= segments; i++ {
		a := float64(i) / float64(segments) * 2 * math.Pi
		if i == segments {
			a = 0
		}
		verts = append(verts, mgl32.Vec3{
			radius * float32(math.Cos(a)),
			radius * float32(math.Sin(a)),
			0,
		})
	}
	return verts
}
