package export

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/HugoSmits86/nativewebp"

	"splat-renderer/internal/postprocess"
)

// Frame is one drained transfer: 8-bit RGB colour and window depth, row 0
// at the bottom. It is owned by exactly one encode task.
type Frame struct {
	Index  int
	Width  int
	Height int
	Color  []byte
	Depth  []float32
}

// Record lists the files written for one frame, relative to the output
// root.
type Record struct {
	Index    int    `json:"index"`
	Color    string `json:"color"`
	Depth    string `json:"depth"`
	Preview  string `json:"preview,omitempty"`
	RawDepth string `json:"raw_depth,omitempty"`
}

// ColorImage converts the bottom-up RGB bytes into a top-down opaque image.
func (f *Frame) ColorImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		src := f.Color[(f.Height-1-y)*f.Width*3:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < f.Width; x++ {
			dst[x*4+0] = src[x*3+0]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}
	return img
}

// DepthImage quantizes the depth into a top-down 16-bit gray image.
func (f *Frame) DepthImage(near, far float32, scale float64) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		row := f.Depth[(f.Height-1-y)*f.Width:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < f.Width; x++ {
			// Gray16 is big-endian, as PNG stores it
			binary.BigEndian.PutUint16(dst[x*2:], QuantizeDepth(row[x], near, far, scale))
		}
	}
	return img
}

// RawDepth returns linear depth as top-down little-endian float32 bytes.
func (f *Frame) RawDepth(near, far float32) []byte {
	out := make([]byte, 0, len(f.Depth)*4)
	for _, d := range f.Depth {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(LinearDepth(d, near, far)))
	}
	postprocess.FlipRows(out, f.Width*4)
	return out
}

// encode writes every file of f and returns what it wrote.
func (p *Pipeline) encode(f *Frame) (Record, error) {
	l := p.layout
	o := &p.opts
	rec := Record{Index: f.Index}

	colorImg := f.ColorImage()
	path := l.ColorPath(f.Index)
	if err := writeFile(path, func(w io.Writer) error { return png.Encode(w, colorImg) }); err != nil {
		return rec, err
	}
	rec.Color = l.Rel(path)

	depthImg := f.DepthImage(o.Near, o.Far, o.DepthScale)
	path = l.DepthPath(f.Index)
	if err := writeFile(path, func(w io.Writer) error { return png.Encode(w, depthImg) }); err != nil {
		return rec, err
	}
	rec.Depth = l.Rel(path)

	if o.PreviewSize > 0 {
		preview := postprocess.Downsample(colorImg, o.PreviewSize)
		path = l.PreviewPath(f.Index)
		if err := writeFile(path, func(w io.Writer) error { return nativewebp.Encode(w, preview, nil) }); err != nil {
			return rec, err
		}
		rec.Preview = l.Rel(path)
	}

	if o.RawDepth {
		data := p.zenc.EncodeAll(f.RawDepth(o.Near, o.Far), nil)
		path = l.RawDepthPath(f.Index)
		if err := writeFile(path, func(w io.Writer) error { _, err := w.Write(data); return err }); err != nil {
			return rec, err
		}
		rec.RawDepth = l.Rel(path)
	}
	return rec, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := fn(bw); err != nil {
		f.Close()
		return fmt.Errorf("export: encode %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", path, err)
	}
	return nil
}
