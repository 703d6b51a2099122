package report

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"strconv"

	"github.com/user/mpki_plotter_go/internal/analysis"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
)

// metricGrid is a series x matrix-size grid of metric values. Columns follow
// the sorted matrix sizes, rows follow series order.
type metricGrid struct {
	values [][]float64 // [series][tick]
	cols   int
}

func (g metricGrid) Dims() (c, r int)   { return g.cols, len(g.values) }
func (g metricGrid) Z(c, r int) float64 { return g.values[r][c] }
func (g metricGrid) X(c int) float64    { return float64(c) }
func (g metricGrid) Y(r int) float64    { return float64(r) }

// newMetricGrid averages repeated runs of the same matrix size. Cells with no
// valid run are NaN.
func newMetricGrid(results *analysis.AnalysisResults) metricGrid {
	column := make(map[int]int, len(results.Ticks))
	for i, size := range results.Ticks {
		column[size] = i
	}
	grid := metricGrid{values: make([][]float64, len(results.Series)), cols: len(results.Ticks)}
	for r, s := range results.Series {
		sums := make([]float64, grid.cols)
		counts := make([]int, grid.cols)
		for _, p := range s.ValidPoints() {
			c := column[p.MatrixSize]
			sums[c] += p.Value
			counts[c]++
		}
		row := make([]float64, grid.cols)
		for c := range row {
			row[c] = math.NaN()
			if counts[c] > 0 {
				row[c] = sums[c] / float64(counts[c])
			}
		}
		grid.values[r] = row
	}
	return grid
}

// CreateMetricHeatmap renders the metric for every (series, matrix size)
// pair as a heat map: one row per series, one column per matrix size.
func CreateMetricHeatmap(results *analysis.AnalysisResults, plotTitle string) ([]byte, error) {
	if results == nil || len(results.Series) == 0 || len(results.Ticks) == 0 {
		return nil, fmt.Errorf("no analysis results to plot heatmap")
	}

	grid := newMetricGrid(results)
	min, max := math.Inf(1), math.Inf(-1)
	for _, row := range grid.values {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			min = math.Min(min, v)
			max = math.Max(max, v)
		}
	}
	if math.IsInf(min, 0) {
		return nil, fmt.Errorf("no valid %s values for heatmap", results.MetricName)
	}
	if min == max {
		max = min + 1
	}

	p := plot.New()
	p.Title.Text = plotTitle
	p.X.Label.Text = "Matrix Size"
	p.Y.Label.Text = "Tile Size"

	xTicks := make([]plot.Tick, len(results.Ticks))
	for i, size := range results.Ticks {
		xTicks[i] = plot.Tick{Value: float64(i), Label: strconv.Itoa(size)}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xTicks)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter
	p.X.Min = -0.5
	p.X.Max = float64(len(results.Ticks)) - 0.5

	yTicks := make([]plot.Tick, len(results.Series))
	for i, s := range results.Series {
		yTicks[i] = plot.Tick{Value: float64(i), Label: s.Label}
	}
	p.Y.Tick.Marker = plot.ConstantTicks(yTicks)
	p.Y.Min = -0.5
	p.Y.Max = float64(len(results.Series)) - 0.5

	hm := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	hm.Min = min
	hm.Max = max
	hm.NaN = color.Gray{Y: 200} // light gray for missing cells
	p.Add(hm)

	writer, err := p.WriterTo(vg.Points(1000), vg.Points(500), "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create heatmap writer: %v", err)
	}
	buf := new(bytes.Buffer)
	if _, err := writer.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to write heatmap to buffer: %v", err)
	}
	return buf.Bytes(), nil
}
