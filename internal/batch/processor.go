// Package batch renders a trajectory frame by frame and exports the
// results.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"splat-renderer/internal/composite"
	"splat-renderer/internal/config"
	"splat-renderer/internal/export"
	"splat-renderer/internal/logging"
	"splat-renderer/internal/pointcloud"
	"splat-renderer/internal/raster"
	"splat-renderer/internal/splat"
	"splat-renderer/internal/trajectory"
)

// Result summarizes one run.
type Result struct {
	RunID    string
	Method   string
	Rendered int // frames submitted for export
	Drained  int
	Skipped  int
	Encoded  int
	Stopped  bool // the context ended the run early
	Elapsed  time.Duration
}

// ProgressInterval is how often Run logs its rate.
var ProgressInterval = 2 * time.Second

// Run renders every Stride-th pose of traj and exports it under
// cfg.OutputDir. Cancelling ctx stops the loop at the next frame boundary;
// frames already submitted are still written. cfg must be resolved.
func Run(ctx context.Context, cfg config.Config, cloud *pointcloud.Cloud, traj trajectory.Trajectory) (Result, error) {
	return run(ctx, cfg, cloud, traj, nil)
}

// run is Run with a callback invoked after each pose index is submitted.
func run(ctx context.Context, cfg config.Config, cloud *pointcloud.Cloud, traj trajectory.Trajectory, submitted func(idx int)) (Result, error) {
	log := logging.Logger()
	res := Result{RunID: uuid.NewString(), Method: cfg.Method}

	method, err := composite.ParseMethod(cfg.Method)
	if err != nil {
		return res, fmt.Errorf("batch: %w", err)
	}
	stride := max(cfg.Stride, 1)

	rc, err := raster.NewContext(cfg.Width, cfg.Height)
	if err != nil {
		return res, fmt.Errorf("batch: %w", err)
	}
	defer rc.Close()

	params := composite.Params{
		Intrinsics:       cfg.Intrinsics(),
		Near:             cfg.Near,
		Far:              cfg.Far,
		SurfaceThickness: cfg.SurfaceThickness,
		Background:       mgl32.Vec3(cfg.Background),
		BackfaceCull:     cfg.BackfaceCull,
	}
	strategy, err := composite.New(rc, method, params, cloud, splat.BuildFan(cfg.FanSegments, 1))
	if err != nil {
		return res, fmt.Errorf("batch: %w", err)
	}
	defer strategy.Close()

	layout := export.Layout{Root: cfg.OutputDir, ColorDir: strategy.OutputDir()}
	pipe, err := export.NewPipeline(rc, layout, export.Options{
		Slots:       cfg.TransferSlots,
		Workers:     cfg.Workers,
		Near:        cfg.Near,
		Far:         cfg.Far,
		DepthScale:  cfg.DepthScale,
		PreviewSize: cfg.PreviewSize,
		RawDepth:    cfg.RawDepth,
	})
	if err != nil {
		return res, fmt.Errorf("batch: %w", err)
	}
	defer pipe.Close()

	total := (len(traj) + stride - 1) / stride
	log.Info("render started",
		"run", res.RunID, "method", strategy.Name(), "points", cloud.Len(),
		"poses", len(traj), "frames", total, "stride", stride, "output", cfg.OutputDir)

	var rendered atomic.Int64
	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if n := rendered.Load(); n > 0 {
					rate := float64(n) / time.Since(start).Seconds()
					s := pipe.Stats()
					log.Info("progress", "frames", n, "total", total, "fps", fmt.Sprintf("%.1f", rate), "encoded", s.Encoded)
				}
			}
		}
	}()

	var poses trajectory.Trajectory
	var loopErr error
loop:
	for frame := 0; frame*stride < len(traj); frame++ {
		select {
		case <-ctx.Done():
			res.Stopped = true
			log.Warn("render stopped", "frame", frame, "err", ctx.Err())
			break loop
		default:
		}

		idx := frame * stride
		targets, err := strategy.RenderFrame(traj[idx].View)
		if err != nil {
			loopErr = fmt.Errorf("batch: render frame %d: %w", idx, err)
			break
		}
		if err := pipe.Submit(idx, targets); err != nil {
			loopErr = fmt.Errorf("batch: %w", err)
			break
		}
		poses = append(poses, traj[idx])
		rendered.Add(1)
		if submitted != nil {
			submitted(idx)
		}
	}

	encodeErr := pipe.Close()
	close(done)

	s := pipe.Stats()
	res.Rendered = int(rendered.Load())
	res.Drained = int(s.Drained)
	res.Skipped = int(s.Skipped)
	res.Encoded = int(s.Encoded)
	res.Elapsed = time.Since(start)

	if loopErr != nil {
		return res, loopErr
	}
	if encodeErr != nil {
		return res, fmt.Errorf("batch: encode: %w", encodeErr)
	}

	m := NewManifest(res, cfg, cloud.Len(), layout, pipe.Records(), pipe.Skips(), traj)
	if err := WriteManifest(filepath.Join(cfg.OutputDir, ManifestFile), m); err != nil {
		return res, fmt.Errorf("batch: manifest: %w", err)
	}
	if err := writePoses(filepath.Join(cfg.OutputDir, PosesFile), poses); err != nil {
		return res, fmt.Errorf("batch: poses: %w", err)
	}

	log.Info("render finished",
		"frames", res.Rendered, "encoded", res.Encoded, "skipped", res.Skipped,
		"elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}

func writePoses(path string, poses trajectory.Trajectory) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := trajectory.WriteQuaternions(f, poses); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
