package analysis

import (
	"fmt"
	"image/color"
	"math"
)

// Point is one analysed row: a matrix size and its derived metric value.
// Valid is false when the metric could not be computed (zero loads, or a
// non-finite result) and the point must not be drawn.
type Point struct {
	MatrixSize int
	Loads      uint64
	LoadMisses uint64
	Value      float64
	Valid      bool
}

// SeriesSummary holds descriptive statistics over the valid points of a series.
type SeriesSummary struct {
	Rows    int
	Plotted int
	Skipped int
	Min     float64
	Max     float64
	Mean    float64
}

// TileSeries is one tile size's curve: its data, label and display color.
type TileSeries struct {
	TileSize int
	Label    string
	Path     string
	Color    color.Color
	Points   []Point
	Summary  SeriesSummary
	Warnings []string
}

// ValidPoints returns only the points that carry a finite metric value.
func (s *TileSeries) ValidPoints() []Point {
	valid := make([]Point, 0, len(s.Points))
	for _, p := range s.Points {
		if p.Valid {
			valid = append(valid, p)
		}
	}
	return valid
}

// AnalysisResults holds everything derived from the loaded measurement tables.
type AnalysisResults struct {
	MetricName     string
	Series         []TileSeries
	Ticks          []int // sorted, deduplicated matrix sizes across all series
	AnalysisErrors []string
}

func NewAnalysisResults(metricName string) *AnalysisResults {
	return &AnalysisResults{
		MetricName:     metricName,
		Series:         make([]TileSeries, 0),
		Ticks:          make([]int, 0),
		AnalysisErrors: make([]string, 0),
	}
}

// TotalRows is the number of rows across all series.
func (r *AnalysisResults) TotalRows() int {
	n := 0
	for _, s := range r.Series {
		n += s.Summary.Rows
	}
	return n
}

// TotalSkipped is the number of rows excluded from the chart across all series.
func (r *AnalysisResults) TotalSkipped() int {
	n := 0
	for _, s := range r.Series {
		n += s.Summary.Skipped
	}
	return n
}

// DefaultLabel is the legend label used for a tile size when none is configured.
func DefaultLabel(tileSize int) string {
	return fmt.Sprintf("Tile %d", tileSize)
}

func emptySummary(rows int) SeriesSummary {
	return SeriesSummary{Rows: rows, Min: math.NaN(), Max: math.NaN(), Mean: math.NaN()}
}
