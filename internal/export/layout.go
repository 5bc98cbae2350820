package export

import (
	"fmt"
	"path/filepath"
)

// Output folders below the root.
const (
	DepthDir    = "depth"
	PreviewDir  = "preview"
	RawDepthDir = "depth_raw"
)

// Layout maps frame indices to output paths.
type Layout struct {
	Root     string
	ColorDir string // "rgb" or "debug", chosen by the strategy
}

// FileStem is the zero-padded name shared by every file of a frame.
func FileStem(index int) string {
	return fmt.Sprintf("%05d", index)
}

// ColorPath returns the colour image path of frame index.
func (l Layout) ColorPath(index int) string {
	return filepath.Join(l.Root, l.ColorDir, FileStem(index)+".png")
}

// DepthPath returns the 16-bit depth image path of frame index.
func (l Layout) DepthPath(index int) string {
	return filepath.Join(l.Root, DepthDir, FileStem(index)+".png")
}

// PreviewPath returns the WebP preview path of frame index.
func (l Layout) PreviewPath(index int) string {
	return filepath.Join(l.Root, PreviewDir, FileStem(index)+".webp")
}

// RawDepthPath returns the compressed float depth path of frame index.
func (l Layout) RawDepthPath(index int) string {
	return filepath.Join(l.Root, RawDepthDir, FileStem(index)+".f32.zst")
}

// Rel returns path relative to the root, slash separated, for manifests.
func (l Layout) Rel(path string) string {
	rel, err := filepath.Rel(l.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
