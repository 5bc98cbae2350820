// Package raster is a software rendering device. Commands are issued from
// one goroutine and executed in issue order by a device goroutine; results
// are read back asynchronously through TransferBuffers.
package raster

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"splat-renderer/internal/errs"
	"splat-renderer/internal/logging"
)

// ErrContextClosed is returned by every command issued after Close.
var ErrContextClosed = errors.New("raster: context is closed")

// queueDepth bounds the number of commands in flight. Issuing blocks once
// the device falls this far behind.
const queueDepth = 64

// Context owns the device goroutine and everything created on it.
type Context struct {
	width  int
	height int

	cmds chan func()
	done chan struct{}

	mu        sync.Mutex
	closed    bool
	transfers []*TransferBuffer
	closeOnce sync.Once
}

// NewContext starts a device for width x height render targets.
func NewContext(width, height int) (*Context, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("raster: invalid size %dx%d", width, height)
	}
	c := &Context{
		width:  width,
		height: height,
		cmds:   make(chan func(), queueDepth),
		done:   make(chan struct{}),
	}
	go c.run()
	logging.Logger().Debug("raster: context created", "width", width, "height", height)
	return c, nil
}

func (c *Context) run() {
	defer close(c.done)
	for fn := range c.cmds {
		fn()
	}
}

// Width returns the render target width.
func (c *Context) Width() int { return c.width }

// Height returns the render target height.
func (c *Context) Height() int { return c.height }

// NewTargets allocates a colour texture and depth buffer of the context
// size.
func (c *Context) NewTargets() Targets {
	return Targets{Color: NewTexture(c.width, c.height), Depth: NewDepthBuffer(c.width, c.height)}
}

func (c *Context) issue(fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContextClosed
	}
	c.cmds <- fn
	return nil
}

// Link validates p so it can be drawn with.
func (c *Context) Link(p *Program) error {
	if err := link(p); err != nil {
		return err
	}
	logging.Logger().Debug("raster: program linked", "program", p.Name)
	return nil
}

// ClearTexture queues filling t with v.
func (c *Context) ClearTexture(t *Texture, v mgl32.Vec4) error {
	return c.issue(func() { t.Clear(v) })
}

// ClearDepth queues filling d with v.
func (c *Context) ClearDepth(d *DepthBuffer, v float32) error {
	return c.issue(func() { d.Clear(v) })
}

func (c *Context) checkFramebuffer(fb Framebuffer) error {
	for i, t := range fb.Color {
		if t != nil && (t.Width != c.width || t.Height != c.height) {
			return fmt.Errorf("raster: colour attachment %d is %dx%d, context is %dx%d", i, t.Width, t.Height, c.width, c.height)
		}
	}
	if d := fb.Depth; d != nil && (d.Width != c.width || d.Height != c.height) {
		return fmt.Errorf("raster: depth attachment is %dx%d, context is %dx%d", d.Width, d.Height, c.width, c.height)
	}
	return nil
}

// Draw queues an instanced draw of va into fb. The state and uniforms are
// copied; va must not be modified until the draw has executed.
func (c *Context) Draw(fb Framebuffer, p *Program, st State, va *VertexArray, u Uniforms) error {
	if !p.Linked() {
		return &errs.ShaderError{Program: p.Name, Stage: "draw", Reason: "program is not linked"}
	}
	if err := c.checkFramebuffer(fb); err != nil {
		return err
	}
	for slot := range va.Streams {
		s := &va.Streams[slot]
		if s.Components > 0 && len(s.Data) < va.Instances*s.Components {
			return fmt.Errorf("raster: draw %s: stream %d holds %d values, want %d", p.Name, slot, len(s.Data), va.Instances*s.Components)
		}
	}
	fb.Color = append([]*Texture(nil), fb.Color...)
	return c.issue(func() {
		dc := &drawCall{fb: fb, prog: p, state: st, uniforms: u, width: c.width, height: c.height}
		dc.draw(va)
	})
}

var fullscreenQuad = &VertexArray{
	Topology: Triangles,
	Vertices: []mgl32.Vec3{
		{-1, -1, 0}, {1, -1, 0}, {1, 1, 0},
		{-1, -1, 0}, {1, 1, 0}, {-1, 1, 0},
	},
	Instances: 1,
}

// FullscreenVertex is the vertex stage of a fullscreen pass. It passes the
// quad corners through as clip positions at depth 0 and writes texture
// coordinates to varyings 0 and 1.
func FullscreenVertex(in *VertexIn, _ *Uniforms, out *Varyings) (mgl32.Vec4, bool) {
	out[0] = in.Local.X()*0.5 + 0.5
	out[1] = in.Local.Y()*0.5 + 0.5
	return mgl32.Vec4{in.Local.X(), in.Local.Y(), 0, 1}, true
}

// DrawFullscreen queues a quad covering every pixel exactly once.
func (c *Context) DrawFullscreen(fb Framebuffer, p *Program, st State, u Uniforms) error {
	return c.Draw(fb, p, st, fullscreenQuad, u)
}

// NewTransfer allocates a transfer buffer of the context size.
func (c *Context) NewTransfer() (*TransferBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrContextClosed
	}
	b := newTransferBuffer(len(c.transfers), c.width, c.height)
	c.transfers = append(c.transfers, b)
	return b, nil
}

// CopyToTransfer queues an asynchronous copy of src into dst, tagged with
// frame. dst must have been drained since its previous copy.
func (c *Context) CopyToTransfer(src Targets, dst *TransferBuffer, frame int) error {
	if _, err := dst.begin(frame); err != nil {
		return err
	}
	if err := c.issue(func() { dst.resolve(src) }); err != nil {
		dst.abort(err)
		return err
	}
	return nil
}

// Finish blocks until every command issued so far has executed.
func (c *Context) Finish() error {
	fence := make(chan struct{})
	if err := c.issue(func() { close(fence) }); err != nil {
		return err
	}
	<-fence
	return nil
}

// Close executes the commands still queued, stops the device and marks
// every transfer buffer lost. It is safe to call more than once.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.cmds)
		transfers := c.transfers
		c.transfers = nil
		c.mu.Unlock()

		<-c.done
		for _, b := range transfers {
			b.lose()
			b.Destroy()
		}
		logging.Logger().Debug("raster: context closed", "transfers", len(transfers))
	})
}
