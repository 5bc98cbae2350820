package raster

import "github.com/go-gl/mathgl/mgl32"

// Texture is a float RGBA render target. Rows are stored bottom-up, the
// way the device addresses them.
type Texture struct {
	Width  int
	Height int
	Pix    []float32 // RGBA interleaved, len = W*H*4
}

// NewTexture allocates a zeroed texture.
func NewTexture(w, h int) *Texture {
	return &Texture{Width: w, Height: h, Pix: make([]float32, w*h*4)}
}

// Fetch returns texel (x, y) without filtering. Out-of-range reads return
// zero.
func (t *Texture) Fetch(x, y int) mgl32.Vec4 {
	if x < 0 || y < 0 || x >= t.Width || y >= t.Height {
		return mgl32.Vec4{}
	}
	i := (y*t.Width + x) * 4
	return mgl32.Vec4{t.Pix[i], t.Pix[i+1], t.Pix[i+2], t.Pix[i+3]}
}

// Clear fills every texel with v.
func (t *Texture) Clear(v mgl32.Vec4) {
	for i := 0; i < len(t.Pix); i += 4 {
		t.Pix[i], t.Pix[i+1], t.Pix[i+2], t.Pix[i+3] = v[0], v[1], v[2], v[3]
	}
}

// DepthBuffer holds one window-space depth value per pixel.
type DepthBuffer struct {
	Width  int
	Height int
	Depth  []float32
}

// NewDepthBuffer allocates a depth buffer cleared to the far plane.
func NewDepthBuffer(w, h int) *DepthBuffer {
	d := &DepthBuffer{Width: w, Height: h, Depth: make([]float32, w*h)}
	d.Clear(1)
	return d
}

// Clear fills the buffer with v.
func (d *DepthBuffer) Clear(v float32) {
	for i := range d.Depth {
		d.Depth[i] = v
	}
}

// Framebuffer groups the attachments a draw writes to. Depth may be nil
// when the pass neither tests nor writes depth.
type Framebuffer struct {
	Color []*Texture
	Depth *DepthBuffer
}

// Targets is the colour and depth pair a frame resolves to. It is what a
// transfer copies out of the device.
type Targets struct {
	Color *Texture
	Depth *DepthBuffer
}
