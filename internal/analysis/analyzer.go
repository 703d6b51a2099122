package analysis

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/user/mpki_plotter_go/internal/parser"
)

// ZeroLoadsPolicy decides what happens to a row whose loads count is zero,
// where misses / loads has no defined value.
type ZeroLoadsPolicy string

const (
	// ZeroLoadsSkip keeps the row (and its matrix size tick) but leaves it off the curve, with a warning.
	ZeroLoadsSkip ZeroLoadsPolicy = "skip"
	// ZeroLoadsFail aborts the run with parser.ErrDivideByZero.
	ZeroLoadsFail ZeroLoadsPolicy = "fail"
	// ZeroLoadsKeep keeps the NaN value silently; it still cannot be drawn.
	ZeroLoadsKeep ZeroLoadsPolicy = "keep"
)

// ParseZeroLoadsPolicy validates a policy name.
func ParseZeroLoadsPolicy(s string) (ZeroLoadsPolicy, error) {
	switch p := ZeroLoadsPolicy(s); p {
	case ZeroLoadsSkip, ZeroLoadsFail, ZeroLoadsKeep:
		return p, nil
	case "":
		return ZeroLoadsSkip, nil
	default:
		return "", fmt.Errorf("unknown zero-loads policy %q (want skip, fail or keep)", s)
	}
}

// SeriesInput pairs a loaded table with its optional legend label.
type SeriesInput struct {
	Table *parser.MeasurementTable
	Label string // empty means DefaultLabel(table.TileSize)
}

// Options controls how measurement tables are turned into series.
type Options struct {
	Metric    *Metric
	Palette   []color.Color
	ZeroLoads ZeroLoadsPolicy
}

// PaletteColor picks the color for the series at position idx. The palette
// wraps around, so any number of series can be drawn.
func PaletteColor(palette []color.Color, idx int) color.Color {
	if len(palette) == 0 {
		return color.Black
	}
	return palette[idx%len(palette)]
}

// AnalyzeTables derives the metric for every table, in order, and collects
// the matrix size ticks. It fails on the first error without returning
// partial results.
func AnalyzeTables(inputs []SeriesInput, opts Options) (*AnalysisResults, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no measurement tables to analyze")
	}
	if opts.Metric == nil {
		opts.Metric = DefaultMetric()
	}
	if opts.ZeroLoads == "" {
		opts.ZeroLoads = ZeroLoadsSkip
	}

	results := NewAnalysisResults(opts.Metric.Name)
	ticks := NewTickSet()

	for idx, in := range inputs {
		if in.Table == nil {
			return nil, fmt.Errorf("series %d has no measurement table", idx)
		}
		series, err := BuildSeries(idx, in.Table, in.Label, opts)
		if err != nil {
			return nil, err
		}
		ticks.Add(in.Table.MatrixSizes()...)
		for _, w := range series.Warnings {
			results.AnalysisErrors = append(results.AnalysisErrors, fmt.Sprintf("%s: %s", series.Label, w))
		}
		results.Series = append(results.Series, series)
	}

	results.Ticks = ticks.Sorted()
	if len(results.Ticks) == 0 {
		results.AnalysisErrors = append(results.AnalysisErrors, "Warning: no matrix sizes found in any measurement table.")
	}
	return results, nil
}

// BuildSeries computes the metric for each row of table and assigns the
// series its label and palette color.
func BuildSeries(idx int, table *parser.MeasurementTable, label string, opts Options) (TileSeries, error) {
	metric := opts.Metric
	if metric == nil {
		metric = DefaultMetric()
	}
	if label == "" {
		label = DefaultLabel(table.TileSize)
	}

	series := TileSeries{
		TileSize: table.TileSize,
		Label:    label,
		Path:     table.Path,
		Color:    PaletteColor(opts.Palette, idx),
		Points:   make([]Point, 0, len(table.Rows)),
		Warnings: append([]string(nil), table.ParseErrors...),
	}

	for _, row := range table.Rows {
		pt := Point{MatrixSize: row.MatrixSize, Loads: row.Loads, LoadMisses: row.LoadMisses, Value: math.NaN()}

		if row.Loads == 0 && metric.DependsOnLoads() {
			switch opts.ZeroLoads {
			case ZeroLoadsFail:
				return TileSeries{}, &parser.LoadError{
					Path: table.Path,
					Line: row.Line,
					Kind: parser.ErrDivideByZero,
					Err:  fmt.Errorf("%s is 0 for matrix size %d", parser.ColLoads, row.MatrixSize),
				}
			case ZeroLoadsSkip:
				series.Warnings = append(series.Warnings, fmt.Sprintf("Warning: line %d: %s is 0 for matrix size %d, point skipped.", row.Line, parser.ColLoads, row.MatrixSize))
			}
			series.Points = append(series.Points, pt)
			continue
		}

		value, err := metric.Evaluate(row)
		if err != nil {
			return TileSeries{}, &parser.LoadError{Path: table.Path, Line: row.Line, Kind: parser.ErrParse, Err: err}
		}
		pt.Value = value
		pt.Valid = !math.IsNaN(value) && !math.IsInf(value, 0)
		if !pt.Valid && opts.ZeroLoads != ZeroLoadsKeep {
			series.Warnings = append(series.Warnings, fmt.Sprintf("Warning: line %d: %s is not finite (%v), point skipped.", row.Line, metric.Name, value))
		}
		series.Points = append(series.Points, pt)
	}

	series.Summary = summarize(series.Points)
	return series, nil
}

func summarize(points []Point) SeriesSummary {
	summary := emptySummary(len(points))
	values := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Valid {
			values = append(values, p.Value)
		}
	}
	summary.Plotted = len(values)
	summary.Skipped = len(points) - len(values)
	if len(values) == 0 {
		return summary
	}
	summary.Min = floats.Min(values)
	summary.Max = floats.Max(values)
	summary.Mean = stat.Mean(values, nil)
	return summary
}
