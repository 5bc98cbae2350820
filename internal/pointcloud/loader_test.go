package pointcloud

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splat-renderer/internal/errs"
	"splat-renderer/internal/pointcloud/ply"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalHeader = `ply
format ascii 1.0
element vertex 3
property float x
property float y
property float z
property float nx
property float ny
property float nz
`

const minimalBody = `0 0 0 0 0 1
1 2 3 0 1 0
-1 -2 -3 1 0 0
`

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "min.ply", minimalHeader+"end_header\n"+minimalBody)
	c, err := Load(context.Background(), path, 0.02, 4)
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	for i := 0; i < c.Len(); i++ {
		p := c.Point(i)
		assert.Equal(t, [3]uint8{255, 255, 255}, p.Color, "point %d color", i)
		assert.Equal(t, float32(0.02), p.Radius, "point %d radius", i)
		assert.Equal(t, float32(1), p.Confidence, "point %d confidence", i)
	}
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, c.Point(1).Position)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, c.Point(2).Normal)
}

func TestLoadOptionalAttributes(t *testing.T) {
	t.Parallel()

	header := minimalHeader + "property uchar red\nproperty uchar green\nproperty uchar blue\n" +
		"property float confidence\nproperty float radius\nend_header\n"
	body := "0 0 0 0 0 1 10 20 30 0.5 0.1\n" +
		"1 2 3 0 1 0 40 50 60 0.25 0.2\n" +
		"-1 -2 -3 1 0 0 70 80 90 0.75 0.3\n"
	c, err := Load(context.Background(), writeFile(t, "full.ply", header+body), 0.02, 2)
	require.NoError(t, err)

	assert.Equal(t, []uint8{10, 20, 30, 40, 50, 60, 70, 80, 90}, c.Colors)
	assert.Equal(t, []float32{0.5, 0.25, 0.75}, c.Confidence)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, c.Radii)
}

func TestLoadMissingMandatory(t *testing.T) {
	t.Parallel()

	noNormals := "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nproperty float z\nend_header\n1 2 3\n"
	noVertex := "ply\nformat ascii 1.0\nelement face 0\nproperty list uchar int vertex_indices\nend_header\n"

	for name, content := range map[string]string{"normals": noNormals, "vertex element": noVertex, "garbage": "not a ply"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, "bad.ply", content)
			_, err := Load(context.Background(), path, 0.02, 1)
			var le *errs.LoadError
			require.True(t, errors.As(err, &le), "want LoadError, got %v", err)
			assert.Equal(t, path, le.Path)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.ply"), 0.02, 1)
		var le *errs.LoadError
		require.True(t, errors.As(err, &le))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadHeaderCountBeyondBody(t *testing.T) {
	t.Parallel()

	props := "property float x\nproperty float y\nproperty float z\nproperty float nx\nproperty float ny\nproperty float nz\nend_header\n"
	for name, count := range map[string]string{"overflow": "4000000000000000000", "truncated": "1000000000"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			content := "ply\nformat binary_little_endian 1.0\nelement vertex " + count + "\n" + props
			path := writeFile(t, "huge.ply", content)
			var err error
			require.NotPanics(t, func() { _, err = Load(context.Background(), path, 0.02, 1) })
			var le *errs.LoadError
			require.True(t, errors.As(err, &le), "want LoadError, got %v", err)
		})
	}
}

func TestFromPLY(t *testing.T) {
	t.Parallel()

	file, err := ply.Decode(strings.NewReader(minimalHeader + "end_header\n" + minimalBody))
	require.NoError(t, err)
	require.False(t, file.Element("vertex").Has("radius"))

	c, err := FromPLY(context.Background(), file, 0.05, 2)
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())
	assert.Equal(t, []float32{0.05, 0.05, 0.05}, c.Radii)
	assert.Equal(t, mgl32.Vec3{-1, -2, -3}, c.Point(2).Position)

	t.Run("no vertex element", func(t *testing.T) {
		t.Parallel()
		faces, err := ply.Decode(strings.NewReader("ply\nformat ascii 1.0\nelement face 0\nproperty list uchar int vertex_indices\nend_header\n"))
		require.NoError(t, err)
		_, err = FromPLY(context.Background(), faces, 0.05, 1)
		var le *errs.LoadError
		require.True(t, errors.As(err, &le), "want LoadError, got %v", err)
		assert.Empty(t, le.Path)
		assert.Equal(t, "load: no vertex element", err.Error())
	})
}

func TestLoadNarrowsDoubles(t *testing.T) {
	t.Parallel()

	xs := []float64{0.1, 1e-9, 12345.678}
	zeros := []float64{0, 0, 0}
	ones := []float64{1, 1, 1}
	el := &ply.Element{
		Name:  "vertex",
		Count: 3,
		Properties: []ply.Property{
			{Name: "x", Type: ply.Float64}, {Name: "y", Type: ply.Float64}, {Name: "z", Type: ply.Float64},
			{Name: "nx", Type: ply.Float64}, {Name: "ny", Type: ply.Float64}, {Name: "nz", Type: ply.Float64},
			{Name: "radius", Type: ply.Float64},
		},
		Columns: map[string]ply.Column{
			"x": ply.Float64Column(xs), "y": ply.Float64Column(zeros), "z": ply.Float64Column(ones),
			"nx": ply.Float64Column(zeros), "ny": ply.Float64Column(zeros), "nz": ply.Float64Column(ones),
			"radius": ply.Float64Column([]float64{0.5, 0.25, 0.125}),
		},
	}
	path := filepath.Join(t.TempDir(), "doubles.ply")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, ply.Encode(f, &ply.File{Format: ply.BinaryBigEndian, Elements: []*ply.Element{el}}))
	require.NoError(t, f.Close())

	c, err := Load(context.Background(), path, 0.02, 3)
	require.NoError(t, err)
	for i, x := range xs {
		assert.Equal(t, float32(x), c.Positions[i*3], "x[%d]", i)
		assert.Equal(t, float32(1), c.Positions[i*3+2])
	}
	assert.Equal(t, []float32{0.5, 0.25, 0.125}, c.Radii)
}

func TestLoadFloatColors(t *testing.T) {
	t.Parallel()

	header := minimalHeader + "property float red\nproperty float green\nproperty float blue\nend_header\n"
	body := "0 0 0 0 0 1 1 0.5 0\n1 2 3 0 1 0 2 -1 0.25\n-1 -2 -3 1 0 0 0 0 0\n"
	c, err := Load(context.Background(), writeFile(t, "fc.ply", header+body), 0.02, 1)
	require.NoError(t, err)
	assert.Equal(t, [3]uint8{255, 128, 0}, c.Point(0).Color)
	assert.Equal(t, [3]uint8{255, 0, 64}, c.Point(1).Color)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	src := FromPoints([]Point{
		{Position: mgl32.Vec3{1, 2, 3}, Normal: mgl32.Vec3{0, 0, 1}, Color: [3]uint8{1, 2, 3}, Confidence: 0.5, Radius: 0.01},
		{Position: mgl32.Vec3{-4, 5, -6}, Normal: mgl32.Vec3{0, 1, 0}, Color: [3]uint8{200, 100, 0}, Confidence: 0.9, Radius: 0.03},
	})
	path := filepath.Join(t.TempDir(), "rt.ply")
	require.NoError(t, Save(path, src))

	got, err := Load(context.Background(), path, 99, 2)
	require.NoError(t, err)
	assert.Equal(t, src, got)

	assert.ErrorIs(t, Save(path, &Cloud{}), ErrEmptyCloud)
}

func TestLoadCancelled(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString(strings.Replace(minimalHeader, "element vertex 3", "element vertex 70000", 1))
	b.WriteString("end_header\n")
	for i := 0; i < 70000; i++ {
		b.WriteString("1 2 3 0 0 1\n")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, writeFile(t, "big.ply", b.String()), 0.02, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBounds(t *testing.T) {
	t.Parallel()

	c := FromPoints([]Point{
		{Position: mgl32.Vec3{1, -2, 3}},
		{Position: mgl32.Vec3{-1, 5, 0}},
	})
	min, max := c.Bounds()
	assert.Equal(t, mgl32.Vec3{-1, -2, 0}, min)
	assert.Equal(t, mgl32.Vec3{1, 5, 3}, max)

	min, max = (&Cloud{}).Bounds()
	assert.Equal(t, mgl32.Vec3{}, min)
	assert.Equal(t, mgl32.Vec3{}, max)
}
