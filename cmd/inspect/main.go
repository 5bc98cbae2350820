package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"splat-renderer/internal/batch"
	"splat-renderer/internal/pointcloud"
	"splat-renderer/internal/pointcloud/ply"
	"splat-renderer/internal/trajectory"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: inspect <cloud.ply | trajectory | output dir> ...")
		os.Exit(2)
	}
	failed := false
	for _, path := range os.Args[1:] {
		var err error
		if fi, statErr := os.Stat(path); statErr == nil && fi.IsDir() {
			err = inspectOutput(path)
		} else if strings.EqualFold(filepath.Ext(path), ".ply") {
			err = inspectCloud(path)
		} else {
			err = inspectTrajectory(path)
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func inspectCloud(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	file, err := ply.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Printf("%s: %s\n", path, file.Format)
	for _, c := range file.Comments {
		fmt.Printf("  comment %s\n", c)
	}
	for _, e := range file.Elements {
		fmt.Printf("  element %s: %d\n", e.Name, e.Count)
		for _, p := range e.Properties {
			if p.IsList {
				fmt.Printf("    list %s %s %s (dropped)\n", p.CountType, p.Type, p.Name)
				continue
			}
			fmt.Printf("    %s %s\n", p.Type, p.Name)
		}
	}

	cloud, err := pointcloud.FromPLY(context.Background(), file, 0, 1)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	lo, hi := cloud.Bounds()
	size := hi.Sub(lo)
	fmt.Printf("  BBox: X[%.3f, %.3f] Y[%.3f, %.3f] Z[%.3f, %.3f]\n", lo[0], hi[0], lo[1], hi[1], lo[2], hi[2])
	fmt.Printf("  Size: %.3f x %.3f x %.3f\n", size[0], size[1], size[2])

	if cloud.Len() == 0 {
		return nil
	}
	if file.Element("vertex").Has("radius") {
		minR, maxR, sumR := float32(math.Inf(1)), float32(math.Inf(-1)), 0.0
		for _, r := range cloud.Radii {
			minR = min(minR, r)
			maxR = max(maxR, r)
			sumR += float64(r)
		}
		fmt.Printf("  Radius: min=%.4f max=%.4f mean=%.4f\n", minR, maxR, sumR/float64(cloud.Len()))
	} else {
		fmt.Println("  Radius: absent (default)")
	}
	unnormal := 0
	for i := range cloud.Len() {
		if l := cloud.Point(i).Normal.Len(); l < 0.99 || l > 1.01 {
			unnormal++
		}
	}
	if unnormal > 0 {
		fmt.Printf("  Non-unit normals: %d\n", unnormal)
	}
	return nil
}

func inspectTrajectory(path string) error {
	traj, err := trajectory.Load(path, trajectory.FormatAuto)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d poses\n", path, len(traj))
	if len(traj) == 0 {
		return nil
	}

	var length float64
	prev := cameraCentre(traj[0].View)
	for _, p := range traj[1:] {
		c := cameraCentre(p.View)
		length += float64(c.Sub(prev).Len())
		prev = c
	}
	first, last := traj[0], traj[len(traj)-1]
	fc, lc := cameraCentre(first.View), cameraCentre(last.View)
	fmt.Printf("  Time: %.4f .. %.4f (%.2fs)\n", first.Timestamp, last.Timestamp, last.Timestamp-first.Timestamp)
	fmt.Printf("  First centre: (%.3f, %.3f, %.3f)\n", fc[0], fc[1], fc[2])
	fmt.Printf("  Last centre:  (%.3f, %.3f, %.3f)\n", lc[0], lc[1], lc[2])
	fmt.Printf("  Path length: %.3f\n", length)
	return nil
}

func inspectOutput(dir string) error {
	m, err := batch.ReadManifest(filepath.Join(dir, batch.ManifestFile))
	if err != nil {
		return err
	}
	c := m.Camera
	fmt.Printf("%s: run %s (%s), created %s\n", dir, m.RunID, m.Method, m.Created.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Input: %s (%d points), %s (stride %d)\n", m.PointCloud, m.Points, m.Trajectory, m.Stride)
	fmt.Printf("  Camera: %dx%d fx=%.1f fy=%.1f cx=%.1f cy=%.1f near=%g far=%g\n", c.Width, c.Height, c.Fx, c.Fy, c.Cx, c.Cy, c.Near, c.Far)
	fmt.Printf("  Frames: %d in %s/, depth scale %g\n", len(m.Frames), m.ColorDir, m.DepthScale)

	missing := 0
	for _, e := range m.Frames {
		for _, rel := range []string{e.Color, e.Depth, e.Preview, e.RawDepth} {
			if rel == "" {
				continue
			}
			if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel))); err != nil {
				missing++
			}
		}
	}
	if missing > 0 {
		fmt.Printf("  Missing files: %d\n", missing)
	}
	for _, s := range m.Skipped {
		fmt.Printf("  Skipped frame %d: %s\n", s.Index, s.Error)
	}
	return nil
}

// cameraCentre is the world position of a view matrix's eye.
func cameraCentre(view mgl32.Mat4) mgl32.Vec3 {
	return view.Inv().Col(3).Vec3()
}
