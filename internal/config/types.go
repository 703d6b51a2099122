package config

import (
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot/vg"

	"github.com/user/mpki_plotter_go/internal/analysis"
	"github.com/user/mpki_plotter_go/internal/report"
)

// DefaultTiles are the tile sizes of the standard benchmark sweep.
var DefaultTiles = []int{2, 4, 8, 16, 20, 24, 32, 64, 128, 256, 512, 1024, 2048}

// DefaultPalette assigns one color per default tile, in order.
var DefaultPalette = []string{
	"#FFE927", "#FD0101", "#00FF26", "#7300FFAE", "#FF53F1", "#000000", "#A9A9A9",
	"#04726FFF", "#0004FFFF", "#068100", "#5FFFDF", "#66693B", "#FF8400FF",
}

const DefaultOutput = "mpki_vs_matrix_tile.png"

type Config struct {
	DataDir     string       `yaml:"data_dir"`
	Series      []SeriesSpec `yaml:"series"`
	Tiles       []int        `yaml:"tiles"`
	Palette     []string     `yaml:"palette"`
	Output      string       `yaml:"output"`
	PDF         string       `yaml:"pdf"`
	Xlsx        string       `yaml:"xlsx"`
	MetricsFile string       `yaml:"metrics_file"`
	ZeroLoads   string       `yaml:"zero_loads"`
	Metric      MetricConfig `yaml:"metric"`
	Chart       ChartConfig  `yaml:"chart"`
}

// SeriesSpec names one measurement file and, optionally, its legend label.
type SeriesSpec struct {
	Label string `yaml:"label,omitempty"`
	Path  string `yaml:"path"`
}

type MetricConfig struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
}

type ChartConfig struct {
	Title          string  `yaml:"title"`
	XLabel         string  `yaml:"x_label"`
	YLabel         string  `yaml:"y_label"`
	LegendTitle    string  `yaml:"legend_title"`
	WidthIn        float64 `yaml:"width_in"`
	HeightIn       float64 `yaml:"height_in"`
	DPI            int     `yaml:"dpi"`
	RotateTicks    bool    `yaml:"rotate_ticks"`
	LineWidth      float64 `yaml:"line_width"`  // points
	MarkerSize     float64 `yaml:"marker_size"` // points, diameter
	LegendColumns  int     `yaml:"legend_columns"`
	LegendFontSize float64 `yaml:"legend_font_size"` // points
}

// Default returns the configuration for the standard tile sweep, read from
// 2.csv ... 2048.csv in the working directory.
func Default() *Config {
	chart := report.DefaultChartOptions()
	return &Config{
		DataDir:   ".",
		Tiles:     append([]int(nil), DefaultTiles...),
		Palette:   append([]string(nil), DefaultPalette...),
		Output:    DefaultOutput,
		ZeroLoads: string(analysis.ZeroLoadsSkip),
		Metric: MetricConfig{
			Name:       analysis.DefaultMetricName,
			Expression: analysis.DefaultMetricExpression,
		},
		Chart: ChartConfig{
			Title:          chart.Title,
			XLabel:         chart.XLabel,
			YLabel:         chart.YLabel,
			LegendTitle:    chart.LegendTitle,
			WidthIn:        float64(chart.Width / vg.Inch),
			HeightIn:       float64(chart.Height / vg.Inch),
			DPI:            chart.DPI,
			RotateTicks:    chart.RotateTicks,
			LineWidth:      chart.LineWidth.Points(),
			MarkerSize:     chart.MarkerSize.Points(),
			LegendColumns:  chart.LegendColumns,
			LegendFontSize: chart.LegendFontSize.Points(),
		},
	}
}

// ResolveSeries returns the series to load, in legend order. Explicit series
// take precedence over the tile list. Relative paths are joined to DataDir.
func (c *Config) ResolveSeries() []SeriesSpec {
	var specs []SeriesSpec
	if len(c.Series) > 0 {
		specs = append(specs, c.Series...)
	} else {
		for _, tile := range c.Tiles {
			specs = append(specs, SeriesSpec{Path: strconv.Itoa(tile) + ".csv"})
		}
	}
	for i := range specs {
		if !filepath.IsAbs(specs[i].Path) && c.DataDir != "" {
			specs[i].Path = filepath.Join(c.DataDir, specs[i].Path)
		}
	}
	return specs
}

// ChartOptions converts the chart section into renderer options.
func (c *Config) ChartOptions() report.ChartOptions {
	opts := report.DefaultChartOptions()
	opts.Title = c.Chart.Title
	opts.XLabel = c.Chart.XLabel
	opts.YLabel = c.Chart.YLabel
	opts.LegendTitle = c.Chart.LegendTitle
	opts.Width = vg.Length(c.Chart.WidthIn) * vg.Inch
	opts.Height = vg.Length(c.Chart.HeightIn) * vg.Inch
	opts.DPI = c.Chart.DPI
	opts.RotateTicks = c.Chart.RotateTicks
	opts.LineWidth = vg.Points(c.Chart.LineWidth)
	opts.MarkerSize = vg.Points(c.Chart.MarkerSize)
	opts.LegendColumns = c.Chart.LegendColumns
	opts.LegendFontSize = vg.Points(c.Chart.LegendFontSize)
	return opts
}

// AnalysisOptions compiles the metric and palette for the analysis stage.
func (c *Config) AnalysisOptions() (analysis.Options, error) {
	metric, err := analysis.NewMetric(c.Metric.Name, c.Metric.Expression)
	if err != nil {
		return analysis.Options{}, err
	}
	palette, err := ParsePalette(c.Palette)
	if err != nil {
		return analysis.Options{}, err
	}
	policy, err := analysis.ParseZeroLoadsPolicy(c.ZeroLoads)
	if err != nil {
		return analysis.Options{}, err
	}
	return analysis.Options{Metric: metric, Palette: palette, ZeroLoads: policy}, nil
}
