package pointcloud

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"golang.org/x/sync/errgroup"

	"splat-renderer/internal/errs"
	"splat-renderer/internal/logging"
	"splat-renderer/internal/pointcloud/ply"
)

var (
	positionProps = []string{"x", "y", "z"}
	normalProps   = []string{"nx", "ny", "nz"}
	colorProps    = []string{"red", "green", "blue"}
)

// Load reads a PLY point cloud. Positions and normals are mandatory; colour,
// confidence and radius fall back to white, DefaultConfidence and
// defaultRadius. Attribute groups are converted concurrently on at most
// workers goroutines.
func Load(ctx context.Context, path string, defaultRadius float32, workers int) (*Cloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.LoadError{Path: path, Reason: "open", Err: err}
	}
	defer f.Close()

	file, err := ply.Decode(f)
	if err != nil {
		return nil, &errs.LoadError{Path: path, Reason: "decode", Err: err}
	}
	cloud, err := FromPLY(ctx, file, defaultRadius, workers)
	if err != nil {
		var le *errs.LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	vertex := file.Element("vertex")

	logging.Logger().Info("point cloud loaded",
		"path", path,
		"points", cloud.Len(),
		"format", file.Format.String(),
		"colors", vertex.Has(colorProps...),
		"confidence", vertex.Has("confidence"),
		"radius", vertex.Has("radius"))
	return cloud, nil
}

// FromPLY converts the vertex element of an already decoded file, with the
// same defaults as Load. Failures are *errs.LoadError without a path.
func FromPLY(ctx context.Context, file *ply.File, defaultRadius float32, workers int) (*Cloud, error) {
	vertex := file.Element("vertex")
	if vertex == nil {
		return nil, &errs.LoadError{Reason: "no vertex element"}
	}
	for _, group := range [][]string{positionProps, normalProps} {
		if !vertex.Has(group...) {
			return nil, &errs.LoadError{Reason: fmt.Sprintf("missing mandatory properties %v", group)}
		}
	}
	cloud, err := decodeVertices(ctx, vertex, defaultRadius, workers)
	if err != nil {
		return nil, &errs.LoadError{Reason: "convert", Err: err}
	}
	return cloud, nil
}

// decodeVertices converts the vertex columns into a Cloud. Each attribute
// group writes only its own slice, so the tasks share nothing until Wait.
func decodeVertices(ctx context.Context, v *ply.Element, defaultRadius float32, workers int) (*Cloud, error) {
	n := v.Count
	c := &Cloud{
		Positions:  make([]float32, n*3),
		Normals:    make([]float32, n*3),
		Colors:     make([]uint8, n*3),
		Confidence: make([]float32, n),
		Radii:      make([]float32, n),
	}

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	g.Go(func() error { return interleave(ctx, c.Positions, v, positionProps) })
	g.Go(func() error { return interleave(ctx, c.Normals, v, normalProps) })
	g.Go(func() error {
		if !v.Has(colorProps...) {
			fillUint8(c.Colors, DefaultColor)
			return nil
		}
		return decodeColors(ctx, c.Colors, v)
	})
	g.Go(func() error {
		if !v.Has("confidence") {
			fillFloat32(c.Confidence, DefaultConfidence)
			return nil
		}
		return narrow(ctx, c.Confidence, v.Columns["confidence"])
	})
	g.Go(func() error {
		if !v.Has("radius") {
			fillFloat32(c.Radii, defaultRadius)
			return nil
		}
		return narrow(ctx, c.Radii, v.Columns["radius"])
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return c, nil
}

// cancelStride bounds how often long conversions poll for cancellation.
const cancelStride = 1 << 16

// narrow copies one column into dst, narrowing float64 to float32.
func narrow(ctx context.Context, dst []float32, col ply.Column) error {
	if col.Len() != len(dst) {
		return fmt.Errorf("column has %d values, want %d", col.Len(), len(dst))
	}
	for i := range dst {
		if i%cancelStride == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		dst[i] = float32(col.Float64(i))
	}
	return nil
}

// interleave packs three columns into an xyz-interleaved slice.
func interleave(ctx context.Context, dst []float32, v *ply.Element, names []string) error {
	for k, name := range names {
		col := v.Columns[name]
		if col.Len()*3 != len(dst) {
			return fmt.Errorf("property %s has %d values, want %d", name, col.Len(), len(dst)/3)
		}
		for i := 0; i < col.Len(); i++ {
			if i%cancelStride == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			dst[i*3+k] = float32(col.Float64(i))
		}
	}
	return nil
}

func decodeColors(ctx context.Context, dst []uint8, v *ply.Element) error {
	for k, name := range colorProps {
		col := v.Columns[name]
		if col.Len()*3 != len(dst) {
			return fmt.Errorf("property %s has %d values, want %d", name, col.Len(), len(dst)/3)
		}
		if col.Type == ply.Uint8 {
			for i, b := range col.Data {
				dst[i*3+k] = b
			}
			continue
		}
		scale := 1.0
		if col.Type.IsFloat() {
			scale = 255
		}
		for i := 0; i < col.Len(); i++ {
			if i%cancelStride == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			dst[i*3+k] = clamp255(col.Float64(i) * scale)
		}
	}
	return nil
}

func clamp255(v float64) uint8 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func fillFloat32(s []float32, v float32) {
	for i := range s {
		s[i] = v
	}
}

func fillUint8(s []uint8, v uint8) {
	for i := range s {
		s[i] = v
	}
}

// ErrEmptyCloud is returned by Save for a cloud without points.
var ErrEmptyCloud = errors.New("pointcloud: empty cloud")
