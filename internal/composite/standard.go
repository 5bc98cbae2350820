package composite

import (
	"github.com/go-gl/mathgl/mgl32"

	"splat-renderer/internal/raster"
)

// Standard draws every splat once with an ordinary depth test. Gaps
// between points stay visible.
type Standard struct {
	session
	prog    *raster.Program
	targets raster.Targets
}

func newStandard(s session) (*Standard, error) {
	st := &Standard{session: s, prog: standardProgram()}
	if err := linkAll(s.ctx, st.prog); err != nil {
		return nil, err
	}
	st.targets = s.ctx.NewTargets()
	return st, nil
}

// RenderFrame implements Strategy.
func (s *Standard) RenderFrame(view mgl32.Mat4) (raster.Targets, error) {
	bg := s.params.Background
	if err := s.ctx.ClearTexture(s.targets.Color, mgl32.Vec4{bg[0], bg[1], bg[2], 1}); err != nil {
		return raster.Targets{}, err
	}
	if err := s.ctx.ClearDepth(s.targets.Depth, 1); err != nil {
		return raster.Targets{}, err
	}
	fb := raster.Framebuffer{Color: []*raster.Texture{s.targets.Color}, Depth: s.targets.Depth}
	if err := s.ctx.Draw(fb, s.prog, raster.DefaultState(), s.instances, s.uniforms(view)); err != nil {
		return raster.Targets{}, err
	}
	return s.targets, nil
}

// Name implements Strategy.
func (s *Standard) Name() string { return string(MethodStandard) }

// OutputDir implements Strategy.
func (s *Standard) OutputDir() string { return "rgb" }

// Close implements Strategy.
func (s *Standard) Close() {}
