// Package postprocess holds image operations applied to exported frames.
package postprocess

import (
	"image"

	"golang.org/x/image/draw"
)

// FitSize returns the size of a w x h image scaled so that its longer side
// is maxSide, keeping the aspect ratio. Images that already fit are
// returned unchanged.
func FitSize(w, h, maxSide int) (int, int) {
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return w, h
	}
	if w >= h {
		return maxSide, max(1, (h*maxSide+w/2)/w)
	}
	return max(1, (w*maxSide+h/2)/h), maxSide
}

// Downsample shrinks the opaque image img so its longer side is maxSide.
// Exported frames carry no alpha, so the image is filtered as is.
func Downsample(img *image.NRGBA, maxSide int) *image.NRGBA {
	b := img.Bounds()
	tw, th := FitSize(b.Dx(), b.Dy(), maxSide)
	if tw == b.Dx() && th == b.Dy() {
		return img
	}
	// CatmullRom approximates Lanczos
	dst := image.NewNRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// FlipRows converts between bottom-up and top-down row order in place.
func FlipRows(pix []byte, stride int) {
	rows := len(pix) / stride
	tmp := make([]byte, stride)
	for top, bot := 0, rows-1; top < bot; top, bot = top+1, bot-1 {
		a := pix[top*stride : (top+1)*stride]
		b := pix[bot*stride : (bot+1)*stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}
