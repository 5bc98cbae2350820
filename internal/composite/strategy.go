// Package composite turns a point cloud into colour and depth targets for
// one camera pose. Two strategies are provided: Standard draws every splat
// once against an ordinary depth buffer; EWA blends overlapping splats of
// the same surface in three passes.
package composite

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"splat-renderer/internal/mathutil"
	"splat-renderer/internal/pointcloud"
	"splat-renderer/internal/raster"
)

// Method names a compositing strategy.
type Method string

const (
	MethodStandard Method = "standard"
	MethodEWA      Method = "ewa"
)

// ParseMethod accepts a method name in any case.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodStandard, MethodEWA:
		return m, nil
	case "":
		return MethodStandard, nil
	default:
		return "", fmt.Errorf("composite: unknown method %q", s)
	}
}

// Params are the per-session rendering constants.
type Params struct {
	Intrinsics mathutil.Intrinsics
	Near, Far  float32

	// SurfaceThickness is how far behind the nearest surface a splat may
	// lie and still be blended into it (EWA only).
	SurfaceThickness float32

	Background   mgl32.Vec3
	BackfaceCull bool
}

// Strategy renders one frame per call. The returned targets belong to the
// strategy and are overwritten by the next RenderFrame; commands that read
// them must be issued before that.
type Strategy interface {
	RenderFrame(view mgl32.Mat4) (raster.Targets, error)
	Name() string
	OutputDir() string
	Close()
}

// New links the programs of the requested method and uploads the cloud as
// per-instance streams of fan. Link failures are returned as
// *errs.ShaderError.
func New(ctx *raster.Context, method Method, p Params, cloud *pointcloud.Cloud, fan []mgl32.Vec3) (Strategy, error) {
	if ctx.Width() != p.Intrinsics.Width || ctx.Height() != p.Intrinsics.Height {
		return nil, fmt.Errorf("composite: context %dx%d does not match intrinsics %dx%d",
			ctx.Width(), ctx.Height(), p.Intrinsics.Width, p.Intrinsics.Height)
	}
	base := session{
		ctx:        ctx,
		params:     p,
		projection: mathutil.ProjectionFromIntrinsics(p.Intrinsics, p.Near, p.Far),
		instances:  newInstances(cloud, fan),
	}
	switch method {
	case MethodStandard:
		return newStandard(base)
	case MethodEWA:
		return newEWA(base)
	default:
		return nil, fmt.Errorf("composite: unknown method %q", method)
	}
}

// session is the state shared by both strategies.
type session struct {
	ctx        *raster.Context
	params     Params
	projection mgl32.Mat4
	instances  *raster.VertexArray
}

func (s *session) uniforms(view mgl32.Mat4) raster.Uniforms {
	bg := s.params.Background
	return raster.Uniforms{
		View:       view,
		Projection: s.projection,
		Near:       s.params.Near,
		Far:        s.params.Far,
		Background: mgl32.Vec4{bg[0], bg[1], bg[2], 1},
		BackCull:   s.params.BackfaceCull,
	}
}

// Instance stream slots.
const (
	slotPosition = iota
	slotRadius
	slotColor
	slotNormal
)

func newInstances(cloud *pointcloud.Cloud, fan []mgl32.Vec3) *raster.VertexArray {
	n := cloud.Len()
	va := &raster.VertexArray{
		Topology:  raster.TriangleFan,
		Vertices:  fan,
		Instances: n,
	}
	colors := make([]float32, len(cloud.Colors))
	for i, c := range cloud.Colors {
		colors[i] = float32(c) / 255
	}
	va.Streams[slotPosition] = raster.Stream{Components: 3, Data: cloud.Positions}
	va.Streams[slotRadius] = raster.Stream{Components: 1, Data: cloud.Radii}
	va.Streams[slotColor] = raster.Stream{Components: 3, Data: colors}
	va.Streams[slotNormal] = raster.Stream{Components: 3, Data: cloud.Normals}
	return va
}
