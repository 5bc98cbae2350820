package batch

import (
	"encoding/json"
	"os"
	"time"

	"splat-renderer/internal/config"
	"splat-renderer/internal/errs"
	"splat-renderer/internal/export"
	"splat-renderer/internal/trajectory"
)

// Files written next to the frame folders.
const (
	ManifestFile = "manifest.json"
	PosesFile    = "poses.txt"
)

// Manifest describes one run's output.
type Manifest struct {
	RunID      string          `json:"run_id"`
	Created    time.Time       `json:"created"`
	Method     string          `json:"method"`
	PointCloud string          `json:"point_cloud"`
	Points     int             `json:"points"`
	Trajectory string          `json:"trajectory"`
	Stride     int             `json:"stride"`
	Camera     Camera          `json:"camera"`
	DepthScale float64         `json:"depth_scale"`
	ColorDir   string          `json:"color_dir"`
	Frames     []ManifestEntry `json:"frames"`
	Skipped    []SkippedFrame  `json:"skipped,omitempty"`
}

// SkippedFrame is a frame whose read-back failed.
type SkippedFrame struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Camera is the pinhole model the frames were rendered with.
type Camera struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Fx     float32 `json:"fx"`
	Fy     float32 `json:"fy"`
	Cx     float32 `json:"cx"`
	Cy     float32 `json:"cy"`
	Near   float32 `json:"near"`
	Far    float32 `json:"far"`
}

// ManifestEntry represents one exported frame. Index is the pose index.
type ManifestEntry struct {
	export.Record
	Timestamp float64 `json:"timestamp"`
}

// NewManifest assembles the manifest of a finished run. records and skips
// index into traj.
func NewManifest(res Result, cfg config.Config, points int, layout export.Layout, records []export.Record, skips []*errs.TransferError, traj trajectory.Trajectory) Manifest {
	in := cfg.Intrinsics()
	m := Manifest{
		RunID:      res.RunID,
		Created:    time.Now().UTC(),
		Method:     res.Method,
		PointCloud: cfg.PointCloud,
		Points:     points,
		Trajectory: cfg.Trajectory,
		Stride:     cfg.Stride,
		Camera: Camera{
			Width: in.Width, Height: in.Height,
			Fx: in.Fx, Fy: in.Fy, Cx: in.Cx, Cy: in.Cy,
			Near: cfg.Near, Far: cfg.Far,
		},
		DepthScale: cfg.DepthScale,
		ColorDir:   layout.ColorDir,
		Frames:     make([]ManifestEntry, 0, len(records)),
	}
	for _, r := range records {
		e := ManifestEntry{Record: r}
		if r.Index >= 0 && r.Index < len(traj) {
			e.Timestamp = traj[r.Index].Timestamp
		}
		m.Frames = append(m.Frames, e)
	}
	for _, te := range skips {
		m.Skipped = append(m.Skipped, SkippedFrame{Index: te.Frame, Error: te.Err.Error()})
	}
	return m
}

// WriteManifest writes m as indented JSON.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(data, &m)
	return m, err
}
