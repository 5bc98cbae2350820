package pointcloud

import (
	"fmt"
	"os"

	"splat-renderer/internal/pointcloud/ply"
)

// Save writes the cloud as a binary little-endian PLY carrying all five
// attributes.
func Save(path string, c *Cloud) error {
	if c.Len() == 0 {
		return ErrEmptyCloud
	}
	n := c.Len()

	cols := map[string]ply.Column{
		"confidence": ply.Float32Column(c.Confidence),
		"radius":     ply.Float32Column(c.Radii),
	}
	props := make([]ply.Property, 0, 11)
	split := func(names []string, src []float32) {
		for k, name := range names {
			v := make([]float32, n)
			for i := range v {
				v[i] = src[i*3+k]
			}
			cols[name] = ply.Float32Column(v)
			props = append(props, ply.Property{Name: name, Type: ply.Float32})
		}
	}
	split(positionProps, c.Positions)
	split(normalProps, c.Normals)
	for k, name := range colorProps {
		v := make([]uint8, n)
		for i := range v {
			v[i] = c.Colors[i*3+k]
		}
		cols[name] = ply.Uint8Column(v)
		props = append(props, ply.Property{Name: name, Type: ply.Uint8})
	}
	props = append(props,
		ply.Property{Name: "confidence", Type: ply.Float32},
		ply.Property{Name: "radius", Type: ply.Float32})

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pointcloud: create %s: %w", path, err)
	}
	defer f.Close()

	err = ply.Encode(f, &ply.File{
		Format: ply.BinaryLittleEndian,
		Elements: []*ply.Element{{
			Name:       "vertex",
			Count:      n,
			Properties: props,
			Columns:    cols,
		}},
	})
	if err != nil {
		return fmt.Errorf("pointcloud: write %s: %w", path, err)
	}
	return f.Close()
}
