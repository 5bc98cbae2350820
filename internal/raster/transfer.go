package raster

import (
	"errors"
	"fmt"
	"sync"
)

// Transfer errors.
var (
	// ErrTransferDestroyed is returned when operating on a destroyed buffer.
	ErrTransferDestroyed = errors.New("raster: transfer buffer has been destroyed")

	// ErrTransferBusy is returned when a copy is requested into a buffer
	// whose previous contents have not been drained.
	ErrTransferBusy = errors.New("raster: transfer buffer still holds an undrained copy")

	// ErrTransferNotPending is returned when mapping a buffer no copy was
	// requested into.
	ErrTransferNotPending = errors.New("raster: transfer buffer has no copy to map")

	// ErrTransferAlreadyMapped is returned when mapping a mapped buffer.
	ErrTransferAlreadyMapped = errors.New("raster: transfer buffer is already mapped")

	// ErrTransferNotMapped is returned when unmapping a buffer that is not
	// mapped.
	ErrTransferNotMapped = errors.New("raster: transfer buffer is not mapped")

	// ErrDeviceLost is returned when the context was closed before the
	// buffer could be mapped.
	ErrDeviceLost = errors.New("raster: device lost")
)

// MapState is the lifecycle state of a TransferBuffer.
type MapState int

const (
	// MapUnmapped means the buffer is free for a new copy.
	MapUnmapped MapState = iota
	// MapPending means a copy has been queued but may not have run.
	MapPending
	// MapReady means the copy has completed and the buffer may be mapped
	// without waiting.
	MapReady
	// MapMapped means the contents are visible to the host.
	MapMapped
	// MapLost means the owning context was closed.
	MapLost
)

func (s MapState) String() string {
	switch s {
	case MapUnmapped:
		return "Unmapped"
	case MapPending:
		return "Pending"
	case MapReady:
		return "Ready"
	case MapMapped:
		return "Mapped"
	case MapLost:
		return "Lost"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Readback is the host view of a mapped TransferBuffer. Color holds 8-bit
// RGB triples and Depth holds window depth, both row-major with row 0 at
// the bottom. The slices alias the buffer and are only valid until Unmap.
type Readback struct {
	Frame  int
	Width  int
	Height int
	Color  []byte
	Depth  []float32
}

// TransferBuffer is a host-visible pair of colour and depth buffers that
// the device copies render targets into asynchronously.
//
// Lifecycle:
//  1. Context.CopyToTransfer queues a copy (Unmapped -> Pending)
//  2. the device goroutine runs it (Pending -> Ready)
//  3. Map waits for the copy and exposes it (-> Mapped)
//  4. Unmap hands the buffer back (Mapped -> Unmapped)
//
// TransferBuffer is safe for concurrent use.
type TransferBuffer struct {
	mu sync.Mutex

	id     int
	width  int
	height int

	state     MapState
	fence     chan struct{}
	frame     int
	copyErr   error
	destroyed bool

	color []byte
	depth []float32
}

func newTransferBuffer(id, w, h int) *TransferBuffer {
	return &TransferBuffer{
		id:     id,
		width:  w,
		height: h,
		color:  make([]byte, w*h*3),
		depth:  make([]float32, w*h),
	}
}

// ID returns the buffer's index within its context.
func (b *TransferBuffer) ID() int { return b.id }

// State returns the current map state.
func (b *TransferBuffer) State() MapState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// begin moves the buffer to Pending for frame and returns the fence the
// device closes when the copy is done.
func (b *TransferBuffer) begin(frame int) (chan struct{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil, ErrTransferDestroyed
	}
	switch b.state {
	case MapUnmapped:
	case MapLost:
		return nil, ErrDeviceLost
	default:
		return nil, ErrTransferBusy
	}
	b.state = MapPending
	b.frame = frame
	b.copyErr = nil
	b.fence = make(chan struct{})
	return b.fence, nil
}

// abort undoes begin when the copy could not be queued.
func (b *TransferBuffer) abort(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == MapPending {
		b.state = MapLost
		b.copyErr = err
		close(b.fence)
	}
}

// resolve runs on the device goroutine: it copies src into the buffer and
// signals the fence.
func (b *TransferBuffer) resolve(src Targets) {
	err := b.copyFrom(src)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != MapPending {
		return
	}
	b.copyErr = err
	b.state = MapReady
	close(b.fence)
}

func (b *TransferBuffer) copyFrom(src Targets) error {
	if src.Color == nil || src.Depth == nil {
		return fmt.Errorf("raster: copy frame %d: missing target", b.frame)
	}
	if src.Color.Width != b.width || src.Color.Height != b.height ||
		src.Depth.Width != b.width || src.Depth.Height != b.height {
		return fmt.Errorf("raster: copy frame %d: target %dx%d does not match transfer %dx%d",
			b.frame, src.Color.Width, src.Color.Height, b.width, b.height)
	}
	n := b.width * b.height
	for i := 0; i < n; i++ {
		b.color[i*3+0] = unorm8(src.Color.Pix[i*4+0])
		b.color[i*3+1] = unorm8(src.Color.Pix[i*4+1])
		b.color[i*3+2] = unorm8(src.Color.Pix[i*4+2])
	}
	copy(b.depth, src.Depth.Depth)
	return nil
}

func unorm8(v float32) byte {
	switch {
	case v <= 0 || v != v:
		return 0
	case v >= 1:
		return 255
	}
	return byte(v*255 + 0.5)
}

// Map blocks until the pending copy has completed and returns its
// contents. A failed copy returns its error and frees the buffer for
// reuse.
func (b *TransferBuffer) Map() (Readback, error) {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return Readback{}, ErrTransferDestroyed
	}
	switch b.state {
	case MapUnmapped:
		b.mu.Unlock()
		return Readback{}, ErrTransferNotPending
	case MapMapped:
		b.mu.Unlock()
		return Readback{}, ErrTransferAlreadyMapped
	case MapLost:
		b.mu.Unlock()
		return Readback{}, ErrDeviceLost
	}
	fence := b.fence
	b.mu.Unlock()

	<-fence

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == MapLost {
		if b.copyErr != nil {
			return Readback{}, fmt.Errorf("%w: %v", ErrDeviceLost, b.copyErr)
		}
		return Readback{}, ErrDeviceLost
	}
	if b.copyErr != nil {
		err := b.copyErr
		b.copyErr = nil
		b.state = MapUnmapped
		return Readback{}, err
	}
	b.state = MapMapped
	return Readback{
		Frame:  b.frame,
		Width:  b.width,
		Height: b.height,
		Color:  b.color,
		Depth:  b.depth,
	}, nil
}

// Unmap releases a mapped buffer for the next copy.
func (b *TransferBuffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return ErrTransferDestroyed
	}
	if b.state != MapMapped {
		return ErrTransferNotMapped
	}
	b.state = MapUnmapped
	return nil
}

// Destroy releases the host memory. It is safe to call more than once.
func (b *TransferBuffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyed = true
	b.color = nil
	b.depth = nil
}

// lose marks the buffer as belonging to a closed context.
func (b *TransferBuffer) lose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == MapPending {
		close(b.fence)
	}
	b.state = MapLost
}
