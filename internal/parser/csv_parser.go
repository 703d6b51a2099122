package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const utf8BOM = "\ufeff"

// ParseTileSize extracts the tile size from a measurement file name, e.g.
// "data/128.csv" -> 128. The stem must be a plain integer.
func ParseTileSize(path string) (int, error) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	size, err := strconv.Atoi(stem)
	if err != nil {
		return 0, &LoadError{Path: path, Kind: ErrParse, Err: fmt.Errorf("tile size %q is not an integer", stem)}
	}
	if size <= 0 {
		return 0, &LoadError{Path: path, Kind: ErrParse, Err: fmt.Errorf("tile size %d must be positive", size)}
	}
	return size, nil
}

// ParseMeasurementFile reads one per-tile-size CSV file. The tile size is
// taken from the file name before the file is opened, so a bad name fails
// without touching the file system.
func ParseMeasurementFile(path string) (*MeasurementTable, error) {
	tileSize, err := ParseTileSize(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Path: path, Kind: ErrFileNotFound, Err: err}
		}
		return nil, errors.Wrapf(err, "failed to open measurement file %s", path)
	}
	defer file.Close()

	return ParseMeasurements(file, path, tileSize)
}

// ParseMeasurements reads measurement rows from r. path is only used for
// error messages.
func ParseMeasurements(r io.Reader, path string, tileSize int) (*MeasurementTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &LoadError{Path: path, Line: 1, Kind: ErrParse, Err: errors.New("file is empty, header row required")}
	}
	if err != nil {
		return nil, csvError(path, err)
	}

	table := NewMeasurementTable(path, tileSize)
	columns, err := indexColumns(header, table)
	if err != nil {
		return nil, &LoadError{Path: path, Line: 1, Kind: ErrSchema, Err: err}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(path, err)
		}
		line, _ := reader.FieldPos(0)

		if isBlankRecord(record) {
			continue
		}

		row, err := parseRow(record, columns, line)
		if err != nil {
			return nil, &LoadError{Path: path, Line: line, Kind: ErrParse, Err: err}
		}
		if row.LoadMisses > row.Loads {
			table.ParseErrors = append(table.ParseErrors, fmt.Sprintf("Warning: line %d: %s (%d) exceeds %s (%d).", line, ColLoadMisses, row.LoadMisses, ColLoads, row.Loads))
		}
		table.Rows = append(table.Rows, row)
	}

	if len(table.Rows) == 0 {
		table.ParseErrors = append(table.ParseErrors, "Warning: no measurement rows found after the header.")
	}
	return table, nil
}

type columnIndex struct {
	matrixSize int
	loads      int
	loadMisses int
}

// indexColumns locates the schema columns in the header row and records any
// other columns on the table.
func indexColumns(header []string, table *MeasurementTable) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, cell := range header {
		name := strings.TrimSpace(cell)
		if i == 0 {
			name = strings.TrimSpace(strings.TrimPrefix(name, utf8BOM))
		}
		if _, dup := positions[name]; dup {
			table.ParseErrors = append(table.ParseErrors, fmt.Sprintf("Warning: duplicate column %q, using the first occurrence.", name))
			continue
		}
		positions[name] = i
	}

	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := positions[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return columnIndex{}, fmt.Errorf("missing required column(s): %s", strings.Join(missing, ", "))
	}

	required := map[string]bool{ColMatrixSize: true, ColLoads: true, ColLoadMisses: true}
	for i, cell := range header {
		name := strings.TrimSpace(cell)
		if i == 0 {
			name = strings.TrimSpace(strings.TrimPrefix(name, utf8BOM))
		}
		if !required[name] && name != "" {
			table.ExtraColumns = append(table.ExtraColumns, name)
		}
	}

	return columnIndex{
		matrixSize: positions[ColMatrixSize],
		loads:      positions[ColLoads],
		loadMisses: positions[ColLoadMisses],
	}, nil
}

func parseRow(record []string, columns columnIndex, line int) (MeasurementRow, error) {
	matrixSize, err := parseCount(record[columns.matrixSize])
	if err != nil {
		return MeasurementRow{}, fmt.Errorf("column %q: %w", ColMatrixSize, err)
	}
	// matrix sizes land on a log axis
	if matrixSize == 0 || matrixSize > math.MaxInt32 {
		return MeasurementRow{}, fmt.Errorf("column %q: matrix size %d out of range", ColMatrixSize, matrixSize)
	}
	loads, err := parseCount(record[columns.loads])
	if err != nil {
		return MeasurementRow{}, fmt.Errorf("column %q: %w", ColLoads, err)
	}
	misses, err := parseCount(record[columns.loadMisses])
	if err != nil {
		return MeasurementRow{}, fmt.Errorf("column %q: %w", ColLoadMisses, err)
	}
	return MeasurementRow{
		MatrixSize: int(matrixSize),
		Loads:      loads,
		LoadMisses: misses,
		Line:       line,
	}, nil
}

// parseCount accepts plain non-negative integers and integral floats such as
// "1024.0", which spreadsheet round trips tend to produce.
func parseCount(cell string) (uint64, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, errors.New("empty value")
	}
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("%q is negative", s)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || f > math.MaxUint64 {
		return 0, fmt.Errorf("%q is not a whole count", s)
	}
	return uint64(f), nil
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func csvError(path string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &LoadError{Path: path, Line: pe.Line, Kind: ErrParse, Err: pe.Err}
	}
	return &LoadError{Path: path, Kind: ErrParse, Err: err}
}
