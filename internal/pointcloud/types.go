// Package pointcloud loads oriented, coloured point clouds into an
// index-aligned structure of arrays.
package pointcloud

import "github.com/go-gl/mathgl/mgl32"

// Default attribute values substituted when a file omits them.
const (
	DefaultConfidence = 1.0
	DefaultColor      = 255 // per channel: white
)

// Cloud holds N points as parallel arrays. Positions, Normals and Colors
// have 3N entries; Confidence and Radii have N.
type Cloud struct {
	Positions  []float32
	Normals    []float32
	Colors     []uint8
	Confidence []float32
	Radii      []float32
}

// Point is a value view of one point.
type Point struct {
	Position   mgl32.Vec3
	Normal     mgl32.Vec3
	Color      [3]uint8
	Confidence float32
	Radius     float32
}

// Len returns the number of points.
func (c *Cloud) Len() int {
	return len(c.Radii)
}

// Point returns point i.
func (c *Cloud) Point(i int) Point {
	return Point{
		Position:   mgl32.Vec3{c.Positions[i*3], c.Positions[i*3+1], c.Positions[i*3+2]},
		Normal:     mgl32.Vec3{c.Normals[i*3], c.Normals[i*3+1], c.Normals[i*3+2]},
		Color:      [3]uint8{c.Colors[i*3], c.Colors[i*3+1], c.Colors[i*3+2]},
		Confidence: c.Confidence[i],
		Radius:     c.Radii[i],
	}
}

// FromPoints builds a cloud from point values.
func FromPoints(pts []Point) *Cloud {
	n := len(pts)
	c := &Cloud{
		Positions:  make([]float32, 0, n*3),
		Normals:    make([]float32, 0, n*3),
		Colors:     make([]uint8, 0, n*3),
		Confidence: make([]float32, 0, n),
		Radii:      make([]float32, 0, n),
	}
	for _, p := range pts {
		c.Positions = append(c.Positions, p.Position[:]...)
		c.Normals = append(c.Normals, p.Normal[:]...)
		c.Colors = append(c.Colors, p.Color[:]...)
		c.Confidence = append(c.Confidence, p.Confidence)
		c.Radii = append(c.Radii, p.Radius)
	}
	return c
}

// Bounds returns the axis-aligned bounding box of the positions. An empty
// cloud returns zero vectors.
func (c *Cloud) Bounds() (min, max mgl32.Vec3) {
	if c.Len() == 0 {
		return
	}
	min = mgl32.Vec3{c.Positions[0], c.Positions[1], c.Positions[2]}
	max = min
	for i := 3; i < len(c.Positions); i += 3 {
		for k := 0; k < 3; k++ {
			v := c.Positions[i+k]
			if v < min[k] {
				min[k] = v
			}
			if v > max[k] {
				max[k] = v
			}
		}
	}
	return min, max
}
