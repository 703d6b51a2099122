package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/user/mpki_plotter_go/internal/analysis"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	series := cfg.ResolveSeries()
	require.Len(t, series, 13)
	assert.Equal(t, "2.csv", series[0].Path)
	assert.Equal(t, "2048.csv", series[12].Path)
	assert.Empty(t, series[0].Label)

	assert.Len(t, cfg.Palette, 13)
	assert.Equal(t, "mpki_vs_matrix_tile.png", cfg.Output)

	opts := cfg.ChartOptions()
	assert.Equal(t, 16*vg.Inch, opts.Width)
	assert.Equal(t, 9*vg.Inch, opts.Height)
	assert.Equal(t, 300, opts.DPI)
	assert.True(t, opts.RotateTicks)
	assert.Equal(t, 2, opts.LegendColumns)
	assert.InDelta(t, 7.0, opts.LegendFontSize.Points(), 1e-9)
}

func TestDefaultAnalysisOptions(t *testing.T) {
	opts, err := Default().AnalysisOptions()
	require.NoError(t, err)
	assert.Equal(t, "MPKI", opts.Metric.Name)
	assert.Equal(t, analysis.ZeroLoadsSkip, opts.ZeroLoads)
	require.Len(t, opts.Palette, 13)
	assert.Equal(t, color.NRGBA{R: 0x73, G: 0x00, B: 0xFF, A: 0xAE}, opts.Palette[3])
}

func TestResolveSeriesJoinsDataDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "runs"
	cfg.Series = []SeriesSpec{{Label: "small", Path: "4.csv"}, {Path: "/abs/8.csv"}}

	series := cfg.ResolveSeries()
	assert.Equal(t, []SeriesSpec{
		{Label: "small", Path: filepath.Join("runs", "4.csv")},
		{Path: "/abs/8.csv"},
	}, series)
	assert.Equal(t, "4.csv", cfg.Series[0].Path, "config is not modified")
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("MPKI_DATA", "/data/mpki")
	dir := t.TempDir()
	path := writeFile(t, dir, "plot.yaml", `
data_dir: ${MPKI_DATA}
tiles: [4, 8]
palette: ["#112233"]
zero_loads: fail
chart:
  dpi: 100
  rotate_ticks: false
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/mpki", cfg.DataDir)
	assert.Equal(t, []int{4, 8}, cfg.Tiles)
	assert.Equal(t, []string{"#112233"}, cfg.Palette)
	assert.Equal(t, "fail", cfg.ZeroLoads)
	assert.Equal(t, 100, cfg.Chart.DPI)
	assert.False(t, cfg.Chart.RotateTicks)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, 2, cfg.Chart.LegendColumns)
	assert.Equal(t, "MPKI vs Matrix Size for Different Tile Sizes", cfg.Chart.Title)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeFile(t, t.TempDir(), "bad.yaml", "tiles: [4, \n")
	_, err = LoadConfig(path)
	assert.Error(t, err)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MPKI_OUT", "chart.png")
	assert.Equal(t, "output: chart.png", expandEnvVars("output: ${MPKI_OUT}"))
	assert.Equal(t, "output: ${MPKI_UNSET_VAR}", expandEnvVars("output: ${MPKI_UNSET_VAR}"))
}

func TestLoadEnvironment(t *testing.T) {
	path := writeFile(t, t.TempDir(), ".env", "MPKI_FROM_DOTENV=yes\n")
	t.Setenv("MPKI_FROM_DOTENV", "")
	os.Unsetenv("MPKI_FROM_DOTENV")

	LoadEnvironment(path)
	assert.Equal(t, "yes", os.Getenv("MPKI_FROM_DOTENV"))

	LoadEnvironment(filepath.Join(t.TempDir(), "absent.env"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"no series", func(c *Config) { c.Tiles = nil }, "at least one series"},
		{"empty palette", func(c *Config) { c.Palette = nil }, "palette is empty"},
		{"bad color", func(c *Config) { c.Palette = []string{"red"} }, "invalid color"},
		{"empty output", func(c *Config) { c.Output = " " }, "output path"},
		{"zero dpi", func(c *Config) { c.Chart.DPI = 0 }, "dpi"},
		{"legend columns", func(c *Config) { c.Chart.LegendColumns = 0 }, "legend_columns"},
		{"policy", func(c *Config) { c.ZeroLoads = "ignore" }, "zero-loads policy"},
		{"duplicate tiles", func(c *Config) { c.Tiles = []int{4, 4} }, "more than once"},
		{"duplicate series", func(c *Config) {
			c.Series = []SeriesSpec{{Path: "a/4.csv"}, {Path: "a/./4.csv"}}
		}, "more than once"},
		{"negative tile", func(c *Config) { c.Tiles = []int{-4} }, "greater than 0"},
		{"bad metric", func(c *Config) { c.Metric.Expression = "[cycles] / 2" }, "unknown column"},
		{"chart size", func(c *Config) { c.Chart.WidthIn = 0 }, "chart size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#04726FFF")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0x04, G: 0x72, B: 0x6F, A: 0xFF}, c)

	c, err = ParseHexColor("#ffe927")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xFF, G: 0xE9, B: 0x27, A: 0xFF}, c)

	for _, bad := range []string{"", "FFE927", "#FFF", "#GGGGGG", "#FFE92"} {
		_, err := ParseHexColor(bad)
		assert.Error(t, err, bad)
	}
}
