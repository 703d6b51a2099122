package parser

// Column names the upstream perf-stat profiling run writes into every
// measurement file. These form the schema contract for ParseMeasurementFile.
const (
	ColMatrixSize = "Matrix size"
	ColLoads      = "L1-dcache-loads"
	ColLoadMisses = "L1-dcache-load-misses"
)

// RequiredColumns lists the schema columns in the order they are reported
// when missing.
var RequiredColumns = []string{ColMatrixSize, ColLoads, ColLoadMisses}

// MeasurementRow is one experiment run from a measurement file.
type MeasurementRow struct {
	MatrixSize int
	Loads      uint64
	LoadMisses uint64
	Line       int // 1-based line in the source file
}

// MeasurementTable holds every run recorded for a single tile size.
// It is read-only once ParseMeasurementFile returns.
type MeasurementTable struct {
	Path         string
	TileSize     int
	Rows         []MeasurementRow
	ExtraColumns []string // header cells outside the schema, kept for reporting only
	ParseErrors  []string // non-fatal findings collected while reading
}

// NewMeasurementTable returns an empty table for the given file.
func NewMeasurementTable(path string, tileSize int) *MeasurementTable {
	return &MeasurementTable{
		Path:         path,
		TileSize:     tileSize,
		Rows:         make([]MeasurementRow, 0),
		ExtraColumns: make([]string, 0),
		ParseErrors:  make([]string, 0),
	}
}

// MatrixSizes returns the matrix size of every row, in file order.
func (t *MeasurementTable) MatrixSizes() []int {
	sizes := make([]int, len(t.Rows))
	for i, row := range t.Rows {
		sizes[i] = row.MatrixSize
	}
	return sizes
}
