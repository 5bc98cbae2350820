package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"splat-renderer/internal/batch"
	"splat-renderer/internal/config"
	"splat-renderer/internal/logging"
	"splat-renderer/internal/pointcloud"
	"splat-renderer/internal/trajectory"
)

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to a .json, .yaml or .toml config file")
	cloudPath := flag.String("cloud", "", "Point cloud PLY file")
	trajPath := flag.String("trajectory", "", "Camera trajectory file")
	format := flag.String("format", "", "Trajectory format: quaternion or matrix (default: by extension)")
	outputDir := flag.String("output", "", "Output directory (default: output)")
	method := flag.String("method", "", "Compositing method: standard or ewa (default: standard)")
	stride := flag.Int("stride", 0, "Render every Nth pose (default: 1)")
	pointSize := flag.Float64("point-size", 0, "Splat radius for points without one (default: 0.02)")
	workers := flag.Int("workers", 0, "Number of encoder goroutines (default: NumCPU)")
	preview := flag.Int("preview", 0, "Also write WebP previews with this longest side")
	rawDepth := flag.Bool("raw-depth", false, "Also write zstd-compressed float32 depth")
	backfaceCull := flag.Bool("backface-cull", false, "Skip splats facing away from the camera")
	verbose := flag.Bool("v", false, "Debug logging")

	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		PointCloud:       *cloudPath,
		Trajectory:       *trajPath,
		TrajectoryFormat: *format,
		OutputDir:        *outputDir,
		Method:           *method,
		Stride:           *stride,
		PointSize:        *pointSize,
		Workers:          *workers,
		PreviewSize:      *preview,
		BackfaceCull:     *backfaceCull,
		RawDepth:         *rawDepth,
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cloud, err := pointcloud.Load(ctx, cfg.PointCloud, cfg.PointSize, cfg.Workers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading point cloud: %v\n", err)
		os.Exit(1)
	}

	trajFormat, _ := trajectory.ParseFormat(cfg.TrajectoryFormat)
	traj, err := trajectory.Load(cfg.Trajectory, trajFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading trajectory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Point splat renderer (%s)\n", cfg.Method)
	fmt.Printf("Points: %d, Poses: %d, Stride: %d, Workers: %d\n", cloud.Len(), len(traj), cfg.Stride, cfg.Workers)
	fmt.Printf("Camera: %dx%d fx=%.1f fy=%.1f\n", cfg.Width, cfg.Height, cfg.Fx, cfg.Fy)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	fmt.Println("------------------------------------------------------------")

	res, err := batch.Run(ctx, cfg, cloud, traj)

	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", res.Elapsed.Seconds())
	fmt.Printf("Rendered: %d, Encoded: %d, Skipped: %d\n", res.Rendered, res.Encoded, res.Skipped)
	if res.Stopped {
		fmt.Println("Stopped early; manifest covers the frames written.")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if res.Skipped > 0 {
		os.Exit(1)
	}
}
