// Package export drains rendered frames from the device through a ring of
// transfer buffers and encodes them to image files on a worker pool.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"

	"splat-renderer/internal/errs"
	"splat-renderer/internal/logging"
	"splat-renderer/internal/raster"
)

// DefaultSlots is the ring depth used when Options.Slots is unset.
const DefaultSlots = 3

// ErrPipelineClosed is returned by Submit after Close.
var ErrPipelineClosed = errors.New("export: pipeline is closed")

// Source is the part of the device the pipeline reads back through.
// *raster.Context implements it.
type Source interface {
	NewTransfer() (*raster.TransferBuffer, error)
	CopyToTransfer(src raster.Targets, dst *raster.TransferBuffer, frame int) error
}

// Options configure encoding.
type Options struct {
	Slots   int
	Workers int

	Near, Far  float32
	DepthScale float64

	PreviewSize int  // longer side of the WebP preview, 0 disables it
	RawDepth    bool // also write zstd-compressed float depth
}

// Stats counts frames through the ring.
type Stats struct {
	Submitted int64
	Drained   int64
	Skipped   int64
	Encoded   int64
}

// Pipeline is a K-slot readback ring feeding an encode pool.
//
// Submit, Drain and Flush must be called from the goroutine that issues
// render commands. A slot is only mapped once K newer copies have been
// requested or at Flush, so the render loop never waits on a copy it has
// just queued.
type Pipeline struct {
	src    Source
	layout Layout
	opts   Options

	slots  []*raster.TransferBuffer
	frames []int // frame index last copied into each slot
	head   int   // submissions
	tail   int   // drains, successful or not

	jobs chan *Frame
	wg   sync.WaitGroup
	zenc *zstd.Encoder

	submitted atomic.Int64
	drained   atomic.Int64
	skipped   atomic.Int64
	encoded   atomic.Int64

	closed bool

	mu         sync.Mutex
	records    []Record
	skips      []*errs.TransferError
	encodeErrs []error
}

// NewPipeline creates the output folders, allocates the transfer slots and
// starts the encode workers.
func NewPipeline(src Source, layout Layout, opts Options) (*Pipeline, error) {
	if opts.Slots <= 0 {
		opts.Slots = DefaultSlots
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.DepthScale <= 0 {
		return nil, fmt.Errorf("export: invalid depth scale %v", opts.DepthScale)
	}

	dirs := []string{layout.ColorDir, DepthDir}
	if opts.PreviewSize > 0 {
		dirs = append(dirs, PreviewDir)
	}
	if opts.RawDepth {
		dirs = append(dirs, RawDepthDir)
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(layout.Root, d), 0o755); err != nil {
			return nil, fmt.Errorf("export: create %s: %w", d, err)
		}
	}

	p := &Pipeline{
		src:    src,
		layout: layout,
		opts:   opts,
		slots:  make([]*raster.TransferBuffer, opts.Slots),
		frames: make([]int, opts.Slots),
		jobs:   make(chan *Frame, opts.Workers*2),
	}
	for i := range p.slots {
		b, err := src.NewTransfer()
		if err != nil {
			p.destroySlots()
			return nil, fmt.Errorf("export: allocate slot %d: %w", i, err)
		}
		p.slots[i] = b
	}
	if opts.RawDepth {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		if err != nil {
			p.destroySlots()
			return nil, fmt.Errorf("export: zstd: %w", err)
		}
		p.zenc = enc
	}

	for w := 0; w < opts.Workers; w++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for f := range p.jobs {
				p.finish(p.encode(f))
			}
		}()
	}
	return p, nil
}

func (p *Pipeline) destroySlots() {
	for _, b := range p.slots {
		if b != nil {
			b.Destroy()
		}
	}
}

func (p *Pipeline) finish(rec Record, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.encodeErrs = append(p.encodeErrs, fmt.Errorf("frame %d: %w", rec.Index, err))
		return
	}
	p.records = append(p.records, rec)
	p.encoded.Add(1)
}

// Slots returns the ring depth.
func (p *Pipeline) Slots() int { return len(p.slots) }

// Pending returns the number of submitted frames not yet drained.
func (p *Pipeline) Pending() int { return p.head - p.tail }

// Submit requests an asynchronous copy of targets, tagged with frame, into
// the next slot. When the slot still holds the frame submitted K calls ago
// that frame is drained first.
func (p *Pipeline) Submit(frame int, targets raster.Targets) error {
	if p.closed {
		return ErrPipelineClosed
	}
	if p.Pending() == len(p.slots) {
		p.Drain()
	}
	k := p.head % len(p.slots)
	if err := p.src.CopyToTransfer(targets, p.slots[k], frame); err != nil {
		return fmt.Errorf("export: submit frame %d: %w", frame, err)
	}
	p.frames[k] = frame
	p.head++
	p.submitted.Add(1)
	return nil
}

// Drain maps the oldest undrained slot and queues its frame for encoding.
// A slot that cannot be mapped is logged and its frame skipped. It reports
// whether there was anything to drain.
func (p *Pipeline) Drain() bool {
	if p.tail == p.head {
		return false
	}
	k := p.tail % len(p.slots)
	p.tail++
	slot := p.slots[k]

	rb, err := slot.Map()
	if err != nil {
		te := &errs.TransferError{Slot: slot.ID(), Frame: p.frames[k], Err: err}
		logging.Logger().Warn("export: frame skipped", "err", te)
		p.mu.Lock()
		p.skips = append(p.skips, te)
		p.mu.Unlock()
		p.skipped.Add(1)
		return true
	}
	f := &Frame{
		Index:  rb.Frame,
		Width:  rb.Width,
		Height: rb.Height,
		Color:  append([]byte(nil), rb.Color...),
		Depth:  append([]float32(nil), rb.Depth...),
	}
	if err := slot.Unmap(); err != nil {
		logging.Logger().Warn("export: unmap", "slot", slot.ID(), "err", err)
	}
	p.drained.Add(1)
	p.jobs <- f
	return true
}

// Flush drains every pending slot in submission order.
func (p *Pipeline) Flush() {
	for p.Drain() {
	}
}

// Close flushes the ring, waits for the encoders and releases the slots.
// It returns the encode failures joined. Later calls return nil.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.Flush()
	p.closed = true
	close(p.jobs)
	p.wg.Wait()
	p.destroySlots()
	if p.zenc != nil {
		p.zenc.Close()
	}

	s := p.Stats()
	logging.Logger().Debug("export: closed", "submitted", s.Submitted, "drained", s.Drained, "skipped", s.Skipped, "encoded", s.Encoded)

	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.encodeErrs...)
}

// Stats returns the current counters. It is safe to call from any
// goroutine.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Drained:   p.drained.Load(),
		Skipped:   p.skipped.Load(),
		Encoded:   p.encoded.Load(),
	}
}

// Records returns the files written so far, ordered by frame index.
func (p *Pipeline) Records() []Record {
	p.mu.Lock()
	out := append([]Record(nil), p.records...)
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Skips returns the transfer failures that caused frames to be skipped.
func (p *Pipeline) Skips() []*errs.TransferError {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*errs.TransferError(nil), p.skips...)
}
