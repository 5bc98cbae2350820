package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const jsonConfig = `{
  "point_cloud": "scene.ply",
  "trajectory": "traj.txt",
  "width": 320,
  "height": 240,
  "fx": 240.6,
  "method": "ewa",
  "stride": 2,
  "background": [0.5, 0.5, 1]
}`

const yamlConfig = `point_cloud: scene.ply
trajectory: traj.txt
width: 320
height: 240
fx: 240.6
method: ewa
stride: 2
background: [0.5, 0.5, 1]
`

const tomlConfig = `point_cloud = "scene.ply"
trajectory = "traj.txt"
width = 320
height = 240
fx = 240.6
method = "ewa"
stride = 2
background = [0.5, 0.5, 1.0]
`

func TestLoadFormatsAgree(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want, err := Load(writeConfig(t, dir, "c.json", jsonConfig))
	require.NoError(t, err)
	assert.Equal(t, "scene.ply", want.PointCloud)
	assert.Equal(t, [3]float32{0.5, 0.5, 1}, want.Background)

	for name, content := range map[string]string{"c.yaml": yamlConfig, "c.yml": yamlConfig, "c.toml": tomlConfig} {
		got, err := Load(writeConfig(t, dir, name, content))
		require.NoError(t, err, name)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s differs from json (-want +got):\n%s", name, diff)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := map[string]string{
		"unknown.json": `{"point_size": 0.1, "splat_size": 2}`,
		"bad.json":     `{"width": "wide"}`,
		"unknown.yaml": "colour: red\n",
		"unknown.toml": "colour = \"red\"\n",
		"conf.ini":     "width=1\n",
	}
	for name, content := range tests {
		_, err := Load(writeConfig(t, dir, name, content))
		assert.Error(t, err, name)
	}

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolveDefaults(t *testing.T) {
	t.Parallel()

	var c Config
	c.Resolve(Flags{})

	assert.Equal(t, 640, c.Width)
	assert.Equal(t, 480, c.Height)
	assert.Equal(t, float32(481.2), c.Fx)
	assert.Equal(t, float32(480), c.Fy)
	assert.Equal(t, float32(319.5), *c.Cx)
	assert.Equal(t, float32(239.5), *c.Cy)
	assert.Equal(t, float32(0.1), c.Near)
	assert.Equal(t, float32(100), c.Far)
	assert.Equal(t, float32(0.02), c.PointSize)
	assert.Equal(t, 1, c.Stride)
	assert.Equal(t, float64(5000), c.DepthScale)
	assert.Equal(t, "standard", c.Method)
	assert.Equal(t, float32(0.1), c.SurfaceThickness)
	assert.Equal(t, 16, c.FanSegments)
	assert.Equal(t, 3, c.TransferSlots)
	assert.Equal(t, runtime.NumCPU(), c.Workers)
	assert.Equal(t, "output", c.OutputDir)
	assert.Zero(t, c.PreviewSize)
	assert.False(t, c.RawDepth)
}

func TestResolveFlagsOverrideFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := Load(writeConfig(t, dir, "c.json", jsonConfig))
	require.NoError(t, err)

	c.Resolve(Flags{
		Trajectory:  "other.txt",
		Method:      "standard",
		Stride:      5,
		PointSize:   0.05,
		Workers:     3,
		PreviewSize: 160,
		RawDepth:    true,
	})

	// file-relative paths resolve against the file, flags stay as given
	assert.Equal(t, filepath.Join(c.BaseDir, "scene.ply"), c.PointCloud)
	assert.Equal(t, "other.txt", c.Trajectory)
	assert.Equal(t, filepath.Join(c.BaseDir, "output"), c.OutputDir)

	assert.Equal(t, "standard", c.Method)
	assert.Equal(t, 5, c.Stride)
	assert.Equal(t, float32(0.05), c.PointSize)
	assert.Equal(t, 3, c.Workers)
	assert.Equal(t, 160, c.PreviewSize)
	assert.True(t, c.RawDepth)

	// file values without a flag survive
	assert.Equal(t, 320, c.Width)
	assert.Equal(t, float32(240.6), c.Fx)
	// unset in the file, defaulted
	assert.Equal(t, float32(480), c.Fy)
}

func TestResolvePrincipalPoint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := Load(writeConfig(t, dir, "c.yaml", "width: 320\nheight: 240\n"))
	require.NoError(t, err)
	c.Resolve(Flags{})
	assert.Equal(t, float32(159.5), *c.Cx)
	assert.Equal(t, float32(119.5), *c.Cy)

	c, err = Load(writeConfig(t, dir, "zero.json", `{"width": 320, "height": 240, "cx": 0, "cy": 10}`))
	require.NoError(t, err)
	c.Resolve(Flags{})
	assert.Equal(t, float32(0), *c.Cx)
	assert.Equal(t, float32(10), *c.Cy)
	in := c.Intrinsics()
	assert.Equal(t, float32(0), in.Cx)
	assert.Equal(t, float32(10), in.Cy)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		c := Config{PointCloud: "a.ply", Trajectory: "t.txt"}
		c.Resolve(Flags{})
		return c
	}

	ok := valid()
	require.NoError(t, ok.Validate())

	tests := map[string]func(*Config){
		"no point cloud":  func(c *Config) { c.PointCloud = "" },
		"no trajectory":   func(c *Config) { c.Trajectory = "" },
		"near beyond far": func(c *Config) { c.Near, c.Far = 10, 1 },
		"near equals far": func(c *Config) { c.Near, c.Far = 1, 1 },
		"zero width":      func(c *Config) { c.Width = 0 },
		"unknown method":  func(c *Config) { c.Method = "gaussian" },
		"unknown format":  func(c *Config) { c.TrajectoryFormat = "euler" },
		"bad background":  func(c *Config) { c.Background = [3]float32{0, 2, 0} },
		"negative stride": func(c *Config) { c.Stride = -1 },
		"no slots":        func(c *Config) { c.TransferSlots = 0 },
		"cx outside":      func(c *Config) { *c.Cx = -1 },
		"cy outside":      func(c *Config) { *c.Cy = 481 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestIntrinsics(t *testing.T) {
	t.Parallel()

	c := Config{}
	c.Resolve(Flags{})
	in := c.Intrinsics()
	assert.Equal(t, 640, in.Width)
	assert.Equal(t, float32(319.5), in.Cx)
}
