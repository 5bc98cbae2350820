package raster

import "fmt"

// DepthFunc is the comparison between an incoming fragment and the stored
// depth. The fragment passes when the comparison holds.
type DepthFunc int

const (
	DepthLess DepthFunc = iota
	DepthLessEqual
	DepthAlways
)

func (f DepthFunc) String() string {
	switch f {
	case DepthLess:
		return "Less"
	case DepthLessEqual:
		return "LessEqual"
	case DepthAlways:
		return "Always"
	default:
		return fmt.Sprintf("DepthFunc(%d)", int(f))
	}
}

func (f DepthFunc) pass(frag, stored float32) bool {
	switch f {
	case DepthLess:
		return frag < stored
	case DepthLessEqual:
		return frag <= stored
	default:
		return true
	}
}

// BlendOp combines a fragment output with the stored texel.
type BlendOp int

const (
	BlendReplace BlendOp = iota
	BlendAdd
	BlendMin
)

// MaxAttachments is the number of colour outputs a program may write.
const MaxAttachments = 4

// State is the fixed-function configuration of a draw.
type State struct {
	DepthTest  bool
	DepthFunc  DepthFunc
	DepthWrite bool
	ColorWrite bool
	Blend      [MaxAttachments]BlendOp
}

// DefaultState is the conventional opaque configuration: depth test Less
// with writes, colour writes, replace blending.
func DefaultState() State {
	return State{
		DepthTest:  true,
		DepthFunc:  DepthLess,
		DepthWrite: true,
		ColorWrite: true,
	}
}
