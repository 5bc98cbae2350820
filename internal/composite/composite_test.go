package composite

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splat-renderer/internal/errs"
	"splat-renderer/internal/mathutil"
	"splat-renderer/internal/pointcloud"
	"splat-renderer/internal/raster"
	"splat-renderer/internal/splat"
)

const (
	testW    = 64
	testH    = 48
	testNear = 0.1
	testFar  = 100
)

// Pixel the optical axis passes through, rows counted from the bottom.
const centreX, centreY = 32, 24

func testParams() Params {
	return Params{
		Intrinsics:       mathutil.Intrinsics{Width: testW, Height: testH, Fx: 50, Fy: 50, Cx: 32, Cy: 24},
		Near:             testNear,
		Far:              testFar,
		SurfaceThickness: 0.1,
		Background:       mgl32.Vec3{0, 0.25, 0},
	}
}

func point(z float32, color [3]uint8) pointcloud.Point {
	return pointcloud.Point{
		Position:   mgl32.Vec3{0, 0, z},
		Normal:     mgl32.Vec3{0, 0, 1},
		Color:      color,
		Confidence: 1,
		Radius:     0.2,
	}
}

func render(t *testing.T, method Method, p Params, pts ...pointcloud.Point) (Strategy, raster.Targets) {
	t.Helper()
	ctx, err := raster.NewContext(testW, testH)
	require.NoError(t, err)
	t.Cleanup(ctx.Close)

	s, err := New(ctx, method, p, pointcloud.FromPoints(pts), splat.BuildFan(16, 1))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	targets, err := s.RenderFrame(mgl32.Ident4())
	require.NoError(t, err)
	require.NoError(t, ctx.Finish())
	return s, targets
}

func windowDepth(dist float64) float32 {
	return float32(mathutil.WindowDepth(dist, testNear, testFar))
}

func assertColor(t *testing.T, want mgl32.Vec4, tex *raster.Texture, x, y int) {
	t.Helper()
	got := tex.Fetch(x, y)
	assert.True(t, want.ApproxEqualThreshold(got, 1e-4), "pixel %d,%d: want %v, got %v", x, y, want, got)
}

func depthAt(tg raster.Targets, x, y int) float32 {
	return tg.Depth.Depth[y*tg.Depth.Width+x]
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Method{"": MethodStandard, "standard": MethodStandard, "EWA": MethodEWA, " ewa ": MethodEWA} {
		got, err := ParseMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMethod("gaussian")
	assert.Error(t, err)
}

func TestStandardSinglePoint(t *testing.T) {
	t.Parallel()

	s, tg := render(t, MethodStandard, testParams(), point(-2, [3]uint8{255, 0, 0}))
	assert.Equal(t, "rgb", s.OutputDir())
	assert.Equal(t, "standard", s.Name())

	assertColor(t, mgl32.Vec4{1, 0, 0, 1}, tg.Color, centreX, centreY)
	assertColor(t, mgl32.Vec4{1, 0, 0, 1}, tg.Color, centreX-3, centreY+3)
	assert.InDelta(t, windowDepth(2), depthAt(tg, centreX, centreY), 1e-5)

	// outside the 5 pixel disc
	assertColor(t, mgl32.Vec4{0, 0.25, 0, 1}, tg.Color, centreX+8, centreY)
	assertColor(t, mgl32.Vec4{0, 0.25, 0, 1}, tg.Color, 0, 0)
	assert.Equal(t, float32(1), depthAt(tg, 0, 0))
}

func TestStandardNearestWins(t *testing.T) {
	t.Parallel()

	for _, order := range [][2]float32{{-2, -3}, {-3, -2}} {
		pts := []pointcloud.Point{point(order[0], [3]uint8{0, 0, 255}), point(order[1], [3]uint8{0, 0, 255})}
		for i := range pts {
			if pts[i].Position.Z() == -2 {
				pts[i].Color = [3]uint8{255, 0, 0}
			}
		}
		_, tg := render(t, MethodStandard, testParams(), pts...)
		assertColor(t, mgl32.Vec4{1, 0, 0, 1}, tg.Color, centreX, centreY)
		assert.InDelta(t, windowDepth(2), depthAt(tg, centreX, centreY), 1e-5)
	}
}

func TestEWAAveragesEqualDepth(t *testing.T) {
	t.Parallel()

	s, tg := render(t, MethodEWA, testParams(),
		point(-2, [3]uint8{255, 0, 0}),
		point(-2, [3]uint8{0, 0, 255}),
	)
	e := s.(*EWA)
	assert.Equal(t, "debug", e.OutputDir())

	assert.Equal(t, float32(2), e.acc[accCount].Fetch(centreX, centreY).X())
	assertColor(t, mgl32.Vec4{0.5, 0, 0.5, 1}, tg.Color, centreX, centreY)
	assert.InDelta(t, windowDepth(2), depthAt(tg, centreX, centreY), 1e-5)
}

func TestEWABlendsWithinThickness(t *testing.T) {
	t.Parallel()

	s, tg := render(t, MethodEWA, testParams(),
		point(-2.05, [3]uint8{0, 0, 255}),
		point(-2, [3]uint8{255, 0, 0}),
	)
	e := s.(*EWA)
	assert.Equal(t, float32(2), e.acc[accCount].Fetch(centreX, centreY).X())
	assertColor(t, mgl32.Vec4{0.5, 0, 0.5, 1}, tg.Color, centreX, centreY)
	// nearest contributor
	assert.InDelta(t, windowDepth(2), depthAt(tg, centreX, centreY), 1e-5)
}

func TestEWAOccludesBeyondThickness(t *testing.T) {
	t.Parallel()

	s, tg := render(t, MethodEWA, testParams(),
		point(-4, [3]uint8{0, 0, 255}),
		point(-2, [3]uint8{255, 0, 0}),
	)
	e := s.(*EWA)
	assert.Equal(t, float32(1), e.acc[accCount].Fetch(centreX, centreY).X())
	assertColor(t, mgl32.Vec4{1, 0, 0, 1}, tg.Color, centreX, centreY)
}

func TestEWABackground(t *testing.T) {
	t.Parallel()

	_, tg := render(t, MethodEWA, testParams(), point(-2, [3]uint8{255, 255, 255}))
	assertColor(t, mgl32.Vec4{0, 0.25, 0, 1}, tg.Color, 1, 1)
	assert.Equal(t, float32(1), depthAt(tg, 1, 1))
}

func TestEWAClearsBetweenFrames(t *testing.T) {
	t.Parallel()

	ctx, err := raster.NewContext(testW, testH)
	require.NoError(t, err)
	t.Cleanup(ctx.Close)
	s, err := New(ctx, MethodEWA, testParams(), pointcloud.FromPoints([]pointcloud.Point{point(-2, [3]uint8{255, 0, 0})}), splat.BuildFan(16, 1))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.RenderFrame(mgl32.Ident4())
		require.NoError(t, err)
	}
	require.NoError(t, ctx.Finish())
	assert.Equal(t, float32(1), s.(*EWA).acc[accCount].Fetch(centreX, centreY).X())
}

func TestBackfaceCull(t *testing.T) {
	t.Parallel()

	p := testParams()
	p.BackfaceCull = true

	away := point(-2, [3]uint8{255, 0, 0})
	away.Normal = mgl32.Vec3{0, 0, -1}
	_, tg := render(t, MethodStandard, p, away)
	assertColor(t, mgl32.Vec4{0, 0.25, 0, 1}, tg.Color, centreX, centreY)

	_, tg = render(t, MethodStandard, p, point(-2, [3]uint8{255, 0, 0}))
	assertColor(t, mgl32.Vec4{1, 0, 0, 1}, tg.Color, centreX, centreY)
}

func TestNewRejectsSizeMismatch(t *testing.T) {
	t.Parallel()

	ctx, err := raster.NewContext(10, 10)
	require.NoError(t, err)
	t.Cleanup(ctx.Close)
	_, err = New(ctx, MethodStandard, testParams(), &pointcloud.Cloud{}, splat.BuildFan(8, 1))
	assert.Error(t, err)
}

func TestLinkFailureIsShaderError(t *testing.T) {
	t.Parallel()

	ctx, err := raster.NewContext(4, 4)
	require.NoError(t, err)
	t.Cleanup(ctx.Close)

	broken := accumulateProgram()
	broken.Fragment = nil
	err = linkAll(ctx, visibilityProgram(), broken)
	var se *errs.ShaderError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "ewa-accumulate", se.Program)
}
