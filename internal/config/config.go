package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"splat-renderer/internal/composite"
	"splat-renderer/internal/mathutil"
	"splat-renderer/internal/trajectory"
)

// Config holds all input paths and render settings.
type Config struct {
	// Paths
	PointCloud       string `json:"point_cloud" yaml:"point_cloud" toml:"point_cloud"`
	Trajectory       string `json:"trajectory" yaml:"trajectory" toml:"trajectory"`
	TrajectoryFormat string `json:"trajectory_format" yaml:"trajectory_format" toml:"trajectory_format"`
	OutputDir        string `json:"output_dir" yaml:"output_dir" toml:"output_dir"`

	// Camera
	Width  int     `json:"width" yaml:"width" toml:"width"`
	Height int     `json:"height" yaml:"height" toml:"height"`
	Fx     float32 `json:"fx" yaml:"fx" toml:"fx"`
	Fy     float32 `json:"fy" yaml:"fy" toml:"fy"`
	// Cx and Cy are nil when unset; zero is a valid principal point.
	Cx *float32 `json:"cx,omitempty" yaml:"cx,omitempty" toml:"cx,omitempty"`
	Cy *float32 `json:"cy,omitempty" yaml:"cy,omitempty" toml:"cy,omitempty"`
	Near   float32 `json:"near" yaml:"near" toml:"near"`
	Far    float32 `json:"far" yaml:"far" toml:"far"`

	// Render settings
	PointSize        float32    `json:"point_size" yaml:"point_size" toml:"point_size"`
	Stride           int        `json:"stride" yaml:"stride" toml:"stride"`
	DepthScale       float64    `json:"depth_scale" yaml:"depth_scale" toml:"depth_scale"`
	Method           string     `json:"method" yaml:"method" toml:"method"`
	SurfaceThickness float32    `json:"surface_thickness" yaml:"surface_thickness" toml:"surface_thickness"`
	FanSegments      int        `json:"fan_segments" yaml:"fan_segments" toml:"fan_segments"`
	BackfaceCull     bool       `json:"backface_cull" yaml:"backface_cull" toml:"backface_cull"`
	Background       [3]float32 `json:"background" yaml:"background" toml:"background"`

	// Export settings
	TransferSlots int  `json:"transfer_slots" yaml:"transfer_slots" toml:"transfer_slots"`
	Workers       int  `json:"workers" yaml:"workers" toml:"workers"`
	PreviewSize   int  `json:"preview_size" yaml:"preview_size" toml:"preview_size"`
	RawDepth      bool `json:"raw_depth" yaml:"raw_depth" toml:"raw_depth"`

	// BaseDir is the directory of the loaded file; relative paths resolve
	// against it.
	BaseDir string `json:"-" yaml:"-" toml:"-"`
}

// Defaults, chosen for 640x480 RGB-D benchmark cameras. The principal
// point defaults to the image centre.
const (
	DefaultWidth            = 640
	DefaultHeight           = 480
	DefaultFx               = 481.2
	DefaultFy               = 480.0
	DefaultNear             = 0.1
	DefaultFar              = 100
	DefaultPointSize        = 0.02
	DefaultStride           = 1
	DefaultDepthScale       = 5000
	DefaultSurfaceThickness = 0.1
	DefaultFanSegments      = 16
	DefaultTransferSlots    = 3
	DefaultOutputDir        = "output"
)

// Load reads a JSON, YAML or TOML config file, chosen by extension.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	default:
		return Config{}, fmt.Errorf("config: %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		cfg.BaseDir = abs
	}
	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	PointCloud       string
	Trajectory       string
	TrajectoryFormat string
	OutputDir        string
	Method           string
	Stride           int
	PointSize        float64
	Workers          int
	PreviewSize      int
	BackfaceCull     bool
	RawDepth         bool
}

// Resolve applies flag overrides, resolves relative paths and fills in
// defaults. CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.PointCloud != "" {
		c.PointCloud = flags.PointCloud
	}
	if flags.Trajectory != "" {
		c.Trajectory = flags.Trajectory
	}
	if flags.TrajectoryFormat != "" {
		c.TrajectoryFormat = flags.TrajectoryFormat
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Method != "" {
		c.Method = flags.Method
	}
	if flags.Stride > 0 {
		c.Stride = flags.Stride
	}
	if flags.PointSize > 0 {
		c.PointSize = float32(flags.PointSize)
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.PreviewSize > 0 {
		c.PreviewSize = flags.PreviewSize
	}
	if flags.BackfaceCull {
		c.BackfaceCull = true
	}
	if flags.RawDepth {
		c.RawDepth = true
	}

	// Paths from the file are relative to the file
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.BaseDir != "" {
		for _, p := range []*string{&c.PointCloud, &c.Trajectory, &c.OutputDir} {
			if *p != "" && !filepath.IsAbs(*p) && !flagged(*p, flags) {
				*p = filepath.Join(c.BaseDir, *p)
			}
		}
	}

	// Defaults for render settings
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	if c.Fx <= 0 {
		c.Fx = DefaultFx
	}
	if c.Fy <= 0 {
		c.Fy = DefaultFy
	}
	if c.Cx == nil {
		c.Cx = ptrFloat32(float32(c.Width-1) / 2)
	}
	if c.Cy == nil {
		c.Cy = ptrFloat32(float32(c.Height-1) / 2)
	}
	if c.Near <= 0 {
		c.Near = DefaultNear
	}
	if c.Far <= 0 {
		c.Far = DefaultFar
	}
	if c.PointSize <= 0 {
		c.PointSize = DefaultPointSize
	}
	if c.Stride <= 0 {
		c.Stride = DefaultStride
	}
	if c.DepthScale <= 0 {
		c.DepthScale = DefaultDepthScale
	}
	if c.Method == "" {
		c.Method = string(composite.MethodStandard)
	}
	if c.SurfaceThickness <= 0 {
		c.SurfaceThickness = DefaultSurfaceThickness
	}
	if c.FanSegments <= 0 {
		c.FanSegments = DefaultFanSegments
	}
	if c.TransferSlots <= 0 {
		c.TransferSlots = DefaultTransferSlots
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

// flagged reports whether p came from a flag, which is relative to the
// working directory rather than the config file.
func flagged(p string, f Flags) bool {
	return p == f.PointCloud || p == f.Trajectory || p == f.OutputDir
}

// Validate reports every setting a render cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.PointCloud == "" {
		errs = append(errs, errors.New("point_cloud is required"))
	}
	if c.Trajectory == "" {
		errs = append(errs, errors.New("trajectory is required"))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("size %dx%d must be positive", c.Width, c.Height))
	}
	if c.Fx <= 0 || c.Fy <= 0 {
		errs = append(errs, fmt.Errorf("focal length %vx%v must be positive", c.Fx, c.Fy))
	}
	if c.Cx != nil && (*c.Cx < 0 || *c.Cx > float32(c.Width)) {
		errs = append(errs, fmt.Errorf("cx %v outside [0,%d]", *c.Cx, c.Width))
	}
	if c.Cy != nil && (*c.Cy < 0 || *c.Cy > float32(c.Height)) {
		errs = append(errs, fmt.Errorf("cy %v outside [0,%d]", *c.Cy, c.Height))
	}
	if c.Near <= 0 || c.Near >= c.Far {
		errs = append(errs, fmt.Errorf("near %v and far %v must satisfy 0 < near < far", c.Near, c.Far))
	}
	if c.PointSize <= 0 {
		errs = append(errs, fmt.Errorf("point_size %v must be positive", c.PointSize))
	}
	if c.Stride <= 0 {
		errs = append(errs, fmt.Errorf("stride %d must be positive", c.Stride))
	}
	if c.DepthScale <= 0 {
		errs = append(errs, fmt.Errorf("depth_scale %v must be positive", c.DepthScale))
	}
	if _, err := composite.ParseMethod(c.Method); err != nil {
		errs = append(errs, err)
	}
	if _, err := trajectory.ParseFormat(c.TrajectoryFormat); err != nil {
		errs = append(errs, err)
	}
	if c.TransferSlots <= 0 {
		errs = append(errs, fmt.Errorf("transfer_slots %d must be positive", c.TransferSlots))
	}
	if c.PreviewSize < 0 {
		errs = append(errs, fmt.Errorf("preview_size %d must not be negative", c.PreviewSize))
	}
	for i, v := range c.Background {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("background[%d] %v outside [0,1]", i, v))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Intrinsics returns the camera model. An unset principal point is the
// image centre.
func (c *Config) Intrinsics() mathutil.Intrinsics {
	in := mathutil.Intrinsics{
		Width:  c.Width,
		Height: c.Height,
		Fx:     c.Fx,
		Fy:     c.Fy,
		Cx:     float32(c.Width-1) / 2,
		Cy:     float32(c.Height-1) / 2,
	}
	if c.Cx != nil {
		in.Cx = *c.Cx
	}
	if c.Cy != nil {
		in.Cy = *c.Cy
	}
	return in
}

func ptrFloat32(v float32) *float32 { return &v }
