package composite

import (
	"github.com/go-gl/mathgl/mgl32"

	"splat-renderer/internal/mathutil"
	"splat-renderer/internal/raster"
)

// Varying layout shared by the splat programs.
const (
	varyR = iota
	varyG
	varyB
	splatVaryings
)

// splatVertex places a camera-facing disc of the instance radius around
// the view-space centre of the point. Uniforms.Epsilon pushes the whole
// disc that far away from the eye along the view ray through its centre.
func splatVertex(in *raster.VertexIn, u *raster.Uniforms, out *raster.Varyings) (mgl32.Vec4, bool) {
	va := in.Array
	pos := va.Attrib(slotPosition, in.Instance)
	centre := u.View.Mul4x1(mgl32.Vec4{pos[0], pos[1], pos[2], 1}).Vec3()

	if u.BackCull {
		nrm := va.Attrib(slotNormal, in.Instance)
		n := u.View.Mul4x1(mgl32.Vec4{nrm[0], nrm[1], nrm[2], 0}).Vec3()
		if n.Dot(centre) > 0 {
			return mgl32.Vec4{}, false
		}
	}

	r := va.Attrib(slotRadius, in.Instance)[0]
	p := centre.Add(mgl32.Vec3{in.Local.X() * r, in.Local.Y() * r, 0})
	if u.Epsilon != 0 {
		if l := centre.Len(); l > 0 {
			p = p.Add(centre.Mul(u.Epsilon / l))
		}
	}

	col := va.Attrib(slotColor, in.Instance)
	out[varyR], out[varyG], out[varyB] = col[0], col[1], col[2]
	return u.Projection.Mul4x1(p.Vec4(1)), true
}

func standardFragment(in *raster.FragmentIn, _ *raster.Uniforms, out *raster.FragmentOut) {
	v := &in.Varyings
	out.Color[0] = mgl32.Vec4{v[varyR], v[varyG], v[varyB], 1}
}

func visibilityFragment(*raster.FragmentIn, *raster.Uniforms, *raster.FragmentOut) {}

// Accumulation attachments.
const (
	accColor = iota
	accCount
	accDepth
	accOutputs
)

// accumulateFragment adds the premultiplied colour and a unit weight and
// keeps the nearest window depth.
func accumulateFragment(in *raster.FragmentIn, _ *raster.Uniforms, out *raster.FragmentOut) {
	const weight = 1
	v := &in.Varyings
	out.Color[accColor] = mgl32.Vec4{v[varyR] * weight, v[varyG] * weight, v[varyB] * weight, weight}
	out.Color[accCount] = mgl32.Vec4{weight, 0, 0, 0}
	d := in.Depth
	out.Color[accDepth] = mgl32.Vec4{d, d, d, d}
}

// normalizeFragment resolves the accumulation textures bound to
// Textures[accColor..accDepth]. Uncovered pixels get the background and the
// far plane.
func normalizeFragment(in *raster.FragmentIn, u *raster.Uniforms, out *raster.FragmentOut) {
	count := u.Textures[accCount].Fetch(in.X, in.Y).X()
	out.WriteDepth = true
	if count <= 0 {
		out.Color[0] = u.Background
		out.Depth = 1
		return
	}
	sum := u.Textures[accColor].Fetch(in.X, in.Y)
	out.Color[0] = mgl32.Vec4{sum[0] / count, sum[1] / count, sum[2] / count, 1}

	d := float64(u.Textures[accDepth].Fetch(in.X, in.Y).X())
	near, far := float64(u.Near), float64(u.Far)
	z := mathutil.LinearizeDepth(d, near, far)
	out.Depth = float32(mathutil.WindowDepth(z, near, far))
}

func standardProgram() *raster.Program {
	return &raster.Program{
		Name:     "splat-standard",
		Vertex:   splatVertex,
		Fragment: standardFragment,
		Varyings: splatVaryings,
		Outputs:  1,
	}
}

func visibilityProgram() *raster.Program {
	return &raster.Program{
		Name:     "ewa-visibility",
		Vertex:   splatVertex,
		Fragment: visibilityFragment,
		Varyings: splatVaryings,
		Outputs:  1,
	}
}

func accumulateProgram() *raster.Program {
	return &raster.Program{
		Name:     "ewa-accumulate",
		Vertex:   splatVertex,
		Fragment: accumulateFragment,
		Varyings: splatVaryings,
		Outputs:  accOutputs,
	}
}

func normalizeProgram() *raster.Program {
	return &raster.Program{
		Name:     "ewa-normalize",
		Vertex:   raster.FullscreenVertex,
		Fragment: normalizeFragment,
		Varyings: 2,
		Outputs:  1,
	}
}

func linkAll(ctx *raster.Context, progs ...*raster.Program) error {
	for _, p := range progs {
		if err := ctx.Link(p); err != nil {
			return err
		}
	}
	return nil
}
