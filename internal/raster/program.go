package raster

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"splat-renderer/internal/errs"
)

// MaxVaryings is the number of scalar values a vertex stage may pass to
// the fragment stage.
const MaxVaryings = 8

// Varyings are per-vertex outputs interpolated across a triangle.
type Varyings [MaxVaryings]float32

// Topology is the primitive assembly of a VertexArray.
type Topology int

const (
	// TriangleFan assembles (0, i, i+1).
	TriangleFan Topology = iota
	// Triangles assembles consecutive triples.
	Triangles
)

// Stream is one per-instance attribute stream.
type Stream struct {
	Components int
	Data       []float32 // len = Instances*Components
}

// MaxStreams is the number of per-instance attribute slots.
const MaxStreams = 6

// VertexArray is the static input of an instanced draw: one shared
// primitive and per-instance streams. It is read-only once handed to the
// device.
type VertexArray struct {
	Topology  Topology
	Vertices  []mgl32.Vec3
	Instances int
	Streams   [MaxStreams]Stream
}

// Attrib returns the components of stream slot for instance i.
func (va *VertexArray) Attrib(slot, i int) []float32 {
	s := &va.Streams[slot]
	return s.Data[i*s.Components : (i+1)*s.Components]
}

// Uniforms are the per-draw constants visible to both stages. A copy is
// taken when the draw is issued.
type Uniforms struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Near, Far  float32
	Epsilon    float32
	Background mgl32.Vec4
	BackCull   bool
	Textures   [MaxAttachments]*Texture
}

// VertexIn is the input of one vertex stage invocation.
type VertexIn struct {
	Local    mgl32.Vec3
	Instance int
	Array    *VertexArray
}

// VertexStage transforms one vertex into clip space and fills the
// varyings. Returning false culls the whole instance.
type VertexStage func(in *VertexIn, u *Uniforms, out *Varyings) (clip mgl32.Vec4, keep bool)

// FragmentIn is the input of one fragment stage invocation. X and Y are
// pixel coordinates with row 0 at the bottom.
type FragmentIn struct {
	X, Y     int
	Depth    float32
	Varyings Varyings
}

// FragmentOut is filled by the fragment stage. Depth is used instead of the
// interpolated depth when WriteDepth is set.
type FragmentOut struct {
	Color      [MaxAttachments]mgl32.Vec4
	Depth      float32
	WriteDepth bool
	Discard    bool
}

// FragmentStage shades one fragment.
type FragmentStage func(in *FragmentIn, u *Uniforms, out *FragmentOut)

// Program pairs a vertex and a fragment stage. It must be linked by a
// Context before it can be drawn with.
type Program struct {
	Name     string
	Vertex   VertexStage
	Fragment FragmentStage
	Varyings int // varyings written by Vertex and read by Fragment
	Outputs  int // colour attachments written by Fragment

	linked bool
}

// Linked reports whether the program passed Link.
func (p *Program) Linked() bool { return p.linked }

func link(p *Program) error {
	name := p.Name
	if name == "" {
		name = "<unnamed>"
	}
	switch {
	case p.Vertex == nil:
		return &errs.ShaderError{Program: name, Stage: "vertex", Reason: "no vertex stage"}
	case p.Fragment == nil:
		return &errs.ShaderError{Program: name, Stage: "fragment", Reason: "no fragment stage"}
	case p.Name == "":
		return &errs.ShaderError{Program: name, Stage: "link", Reason: "program has no name"}
	case p.Varyings < 0 || p.Varyings > MaxVaryings:
		return &errs.ShaderError{Program: name, Stage: "link", Reason: fmt.Sprintf("%d varyings, limit %d", p.Varyings, MaxVaryings)}
	case p.Outputs < 1 || p.Outputs > MaxAttachments:
		return &errs.ShaderError{Program: name, Stage: "link", Reason: fmt.Sprintf("%d outputs, want 1..%d", p.Outputs, MaxAttachments)}
	}
	p.linked = true
	return nil
}
