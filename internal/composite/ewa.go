package composite

import (
	"github.com/go-gl/mathgl/mgl32"

	"splat-renderer/internal/raster"
)

// EWA composites overlapping splats of the same surface:
//
//  1. visibility: depth only, every splat pushed SurfaceThickness away
//     from the eye, giving the nearest committed surface;
//  2. accumulation: splats within SurfaceThickness of that surface add
//     their colour and a unit count, and keep the minimum depth;
//  3. normalization: a fullscreen pass divides colour by count and writes
//     the final colour and depth.
type EWA struct {
	session

	visibility *raster.Program
	accumulate *raster.Program
	normalize  *raster.Program

	// accumulation targets, cleared every frame
	acc      [accOutputs]*raster.Texture
	visDepth *raster.DepthBuffer

	targets raster.Targets

	// accumulation configuration; normalization derives from it
	state raster.State
}

func newEWA(s session) (*EWA, error) {
	e := &EWA{
		session:    s,
		visibility: visibilityProgram(),
		accumulate: accumulateProgram(),
		normalize:  normalizeProgram(),
	}
	if err := linkAll(s.ctx, e.visibility, e.accumulate, e.normalize); err != nil {
		return nil, err
	}
	w, h := s.ctx.Width(), s.ctx.Height()
	for i := range e.acc {
		e.acc[i] = raster.NewTexture(w, h)
	}
	e.visDepth = raster.NewDepthBuffer(w, h)
	e.targets = s.ctx.NewTargets()

	e.state = raster.State{
		DepthTest:  true,
		DepthFunc:  raster.DepthLessEqual,
		DepthWrite: false,
		ColorWrite: true,
	}
	e.state.Blend[accColor] = raster.BlendAdd
	e.state.Blend[accCount] = raster.BlendAdd
	e.state.Blend[accDepth] = raster.BlendMin
	return e, nil
}

func (e *EWA) clear() error {
	ctx := e.ctx
	for i, t := range e.acc {
		v := mgl32.Vec4{}
		if i == accDepth {
			v = mgl32.Vec4{1, 1, 1, 1}
		}
		if err := ctx.ClearTexture(t, v); err != nil {
			return err
		}
	}
	if err := ctx.ClearDepth(e.visDepth, 1); err != nil {
		return err
	}
	if err := ctx.ClearTexture(e.targets.Color, mgl32.Vec4{}); err != nil {
		return err
	}
	return ctx.ClearDepth(e.targets.Depth, 1)
}

// RenderFrame implements Strategy.
func (e *EWA) RenderFrame(view mgl32.Mat4) (raster.Targets, error) {
	if err := e.clear(); err != nil {
		return raster.Targets{}, err
	}
	u := e.uniforms(view)

	// visibility
	vis := raster.State{DepthTest: true, DepthFunc: raster.DepthLess, DepthWrite: true}
	uv := u
	uv.Epsilon = e.params.SurfaceThickness
	if err := e.ctx.Draw(raster.Framebuffer{Depth: e.visDepth}, e.visibility, vis, e.instances, uv); err != nil {
		return raster.Targets{}, err
	}

	// accumulation
	accFB := raster.Framebuffer{Color: e.acc[:], Depth: e.visDepth}
	if err := e.ctx.Draw(accFB, e.accumulate, e.state, e.instances, u); err != nil {
		return raster.Targets{}, err
	}

	// normalization; the depth func is Always for this pass only
	norm := e.state
	norm.DepthFunc = raster.DepthAlways
	norm.DepthWrite = true
	norm.Blend = [raster.MaxAttachments]raster.BlendOp{}
	un := u
	copy(un.Textures[:], e.acc[:])
	outFB := raster.Framebuffer{Color: []*raster.Texture{e.targets.Color}, Depth: e.targets.Depth}
	if err := e.ctx.DrawFullscreen(outFB, e.normalize, norm, un); err != nil {
		return raster.Targets{}, err
	}
	return e.targets, nil
}

// Name implements Strategy.
func (e *EWA) Name() string { return string(MethodEWA) }

// OutputDir implements Strategy.
func (e *EWA) OutputDir() string { return "debug" }

// Close implements Strategy. Commands already issued keep their targets
// alive until they have executed.
func (e *EWA) Close() {
	e.acc = [accOutputs]*raster.Texture{}
	e.visDepth = nil
	e.targets = raster.Targets{}
}
