package raster

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// clipVertex is a vertex stage result.
type clipVertex struct {
	clip mgl32.Vec4
	vary Varyings
}

// windowVertex is a clipVertex after perspective divide and viewport.
type windowVertex struct {
	x, y, z float32
	invW    float32
	vary    Varyings
}

// drawCall is everything a triangle needs besides its vertices. It lives
// on the device goroutine only.
type drawCall struct {
	fb       Framebuffer
	prog     *Program
	state    State
	uniforms Uniforms
	width    int
	height   int

	// scratch, reused across fragments
	fin  FragmentIn
	fout FragmentOut
}

func (dc *drawCall) toWindow(v *clipVertex) (windowVertex, bool) {
	w := v.clip[3]
	if w <= 0 {
		return windowVertex{}, false
	}
	inv := 1 / w
	return windowVertex{
		x:    (v.clip[0]*inv + 1) * 0.5 * float32(dc.width),
		y:    (v.clip[1]*inv + 1) * 0.5 * float32(dc.height),
		z:    v.clip[2]*inv*0.5 + 0.5,
		invW: inv,
		vary: v.vary,
	}, true
}

// Window coordinates are snapped to a fixed-point grid so the edge
// functions are exact and a shared edge is owned by exactly one triangle.
const (
	subpixelBits = 8
	subpixel     = 1 << subpixelBits
	// guardBand bounds window coordinates, in pixels, so edge products fit
	// in int64.
	guardBand = 1 << 20
)

type fixedPoint struct{ x, y int64 }

func snap(v *windowVertex) (fixedPoint, bool) {
	if !(math.Abs(float64(v.x)) < guardBand && math.Abs(float64(v.y)) < guardBand) {
		return fixedPoint{}, false
	}
	return fixedPoint{
		x: int64(math.Round(float64(v.x) * subpixel)),
		y: int64(math.Round(float64(v.y) * subpixel)),
	}, true
}

func edge(a, b, p fixedPoint) int64 {
	return (b.x-a.x)*(p.y-a.y) - (b.y-a.y)*(p.x-a.x)
}

// topLeft reports whether the edge a→b of a counter-clockwise triangle
// (y up) owns the pixel centres lying exactly on it.
func topLeft(a, b fixedPoint) bool {
	dx, dy := b.x-a.x, b.y-a.y
	return (dy == 0 && dx < 0) || dy < 0
}

func inside(w int64, owns bool) bool {
	return w > 0 || (w == 0 && owns)
}

// rasterize scan-converts one triangle. Triangles with a vertex behind the
// eye or outside the guard band are dropped; fragments outside [0,1]
// window depth are clipped.
//
// This is the hot path: no allocation inside the pixel loop.
func (dc *drawCall) rasterize(c0, c1, c2 *clipVertex) {
	v0, ok0 := dc.toWindow(c0)
	v1, ok1 := dc.toWindow(c1)
	v2, ok2 := dc.toWindow(c2)
	if !ok0 || !ok1 || !ok2 {
		return
	}
	f0, ok0 := snap(&v0)
	f1, ok1 := snap(&v1)
	f2, ok2 := snap(&v2)
	if !ok0 || !ok1 || !ok2 {
		return
	}

	area := edge(f0, f1, f2)
	if area == 0 {
		return
	}
	// No face culling: flip clockwise triangles to counter-clockwise.
	if area < 0 {
		v1, v2 = v2, v1
		f1, f2 = f2, f1
		area = -area
	}
	invArea := 1 / float32(area)

	minX := int(min(f0.x, f1.x, f2.x) >> subpixelBits)
	maxX := int(max(f0.x, f1.x, f2.x) >> subpixelBits)
	minY := int(min(f0.y, f1.y, f2.y) >> subpixelBits)
	maxY := int(max(f0.y, f1.y, f2.y) >> subpixelBits)
	minX, minY = max(minX, 0), max(minY, 0)
	maxX, maxY = min(maxX, dc.width-1), min(maxY, dc.height-1)
	if minX > maxX || minY > maxY {
		return
	}

	own0 := topLeft(f1, f2)
	own1 := topLeft(f2, f0)
	own2 := topLeft(f0, f1)

	nv := dc.prog.Varyings
	for py := minY; py <= maxY; py++ {
		for px := minX; px <= maxX; px++ {
			p := fixedPoint{int64(px)<<subpixelBits + subpixel/2, int64(py)<<subpixelBits + subpixel/2}
			w0 := edge(f1, f2, p)
			w1 := edge(f2, f0, p)
			w2 := edge(f0, f1, p)
			if !inside(w0, own0) || !inside(w1, own1) || !inside(w2, own2) {
				continue
			}
			b0, b1, b2 := float32(w0)*invArea, float32(w1)*invArea, float32(w2)*invArea

			z := b0*v0.z + b1*v1.z + b2*v2.z
			if z < 0 || z > 1 {
				continue
			}

			// perspective-correct varyings
			p0, p1, p2 := b0*v0.invW, b1*v1.invW, b2*v2.invW
			inv := 1 / (p0 + p1 + p2)
			p0, p1, p2 = p0*inv, p1*inv, p2*inv
			for k := 0; k < nv; k++ {
				dc.fin.Varyings[k] = p0*v0.vary[k] + p1*v1.vary[k] + p2*v2.vary[k]
			}
			dc.fin.X, dc.fin.Y, dc.fin.Depth = px, py, z
			dc.shade(py*dc.width + px)
		}
	}
}

// shade runs the fragment stage and the per-fragment operations for pixel
// index i.
func (dc *drawCall) shade(i int) {
	dc.fout = FragmentOut{}
	dc.prog.Fragment(&dc.fin, &dc.uniforms, &dc.fout)
	if dc.fout.Discard {
		return
	}

	depth := dc.fin.Depth
	if dc.fout.WriteDepth {
		depth = dc.fout.Depth
	}

	st := &dc.state
	db := dc.fb.Depth
	if st.DepthTest && db != nil && !st.DepthFunc.pass(depth, db.Depth[i]) {
		return
	}
	if st.DepthWrite && db != nil {
		db.Depth[i] = depth
	}
	if !st.ColorWrite {
		return
	}

	n := min(len(dc.fb.Color), dc.prog.Outputs)
	for a := 0; a < n; a++ {
		tex := dc.fb.Color[a]
		if tex == nil {
			continue
		}
		src := dc.fout.Color[a]
		dst := tex.Pix[i*4 : i*4+4]
		switch st.Blend[a] {
		case BlendAdd:
			dst[0] += src[0]
			dst[1] += src[1]
			dst[2] += src[2]
			dst[3] += src[3]
		case BlendMin:
			dst[0] = min(dst[0], src[0])
			dst[1] = min(dst[1], src[1])
			dst[2] = min(dst[2], src[2])
			dst[3] = min(dst[3], src[3])
		default:
			dst[0], dst[1], dst[2], dst[3] = src[0], src[1], src[2], src[3]
		}
	}
}

// draw runs the vertex stage over every instance and rasterizes the
// assembled triangles.
func (dc *drawCall) draw(va *VertexArray) {
	verts := make([]clipVertex, len(va.Vertices))
	in := VertexIn{Array: va}

	for inst := 0; inst < va.Instances; inst++ {
		in.Instance = inst
		keep := true
		for j, local := range va.Vertices {
			in.Local = local
			var ok bool
			verts[j].clip, ok = dc.prog.Vertex(&in, &dc.uniforms, &verts[j].vary)
			if !ok {
				keep = false
				break
			}
		}
		if !keep {
			continue
		}

		switch va.Topology {
		case TriangleFan:
			for j := 1; j+1 < len(verts); j++ {
				dc.rasterize(&verts[0], &verts[j], &verts[j+1])
			}
		default:
			for j := 0; j+2 < len(verts); j += 3 {
				dc.rasterize(&verts[j], &verts[j+1], &verts[j+2])
			}
		}
	}
}
