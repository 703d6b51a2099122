package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/user/mpki_plotter_go/internal/analysis"
	"github.com/user/mpki_plotter_go/internal/parser"
)

const XlsxSummarySheetName = "Summary"

func cellName(col int, row int) (name string) {
	columnName, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return
	}
	name, err = excelize.JoinCellName(columnName, row)
	if err != nil {
		return
	}
	return
}

// sheetName turns a series label into a valid, unique worksheet name.
func sheetName(label string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, label)
	name = strings.Trim(name, "'")
	if name == "" {
		name = "Series"
	}
	if len([]rune(name)) > excelize.MaxSheetNameLength {
		name = string([]rune(name)[:excelize.MaxSheetNameLength])
	}
	base := name
	for i := 2; used[strings.ToLower(name)] || strings.EqualFold(name, XlsxSummarySheetName); i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		r := []rune(base)
		if len(r)+len(suffix) > excelize.MaxSheetNameLength {
			r = r[:excelize.MaxSheetNameLength-len(suffix)]
		}
		name = string(r) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

// metricCell leaves non-finite values empty; excelize cannot store them.
func metricCell(v float64, valid bool) any {
	if !valid || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// CreateXlsxWorkbook exports every series to its own sheet (one row per
// measurement, with the derived metric) and a summary sheet up front.
func CreateXlsxWorkbook(results *analysis.AnalysisResults) (out []byte, err error) {
	if results == nil {
		return nil, fmt.Errorf("no analysis results for workbook")
	}
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close workbook: %v", cerr)
		}
	}()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
	})

	_ = f.SetSheetName("Sheet1", XlsxSummarySheetName)
	_ = f.SetColWidth(XlsxSummarySheetName, "A", "A", 25)
	_ = f.SetColWidth(XlsxSummarySheetName, "B", "H", 15)
	summaryHeader := []any{"Series", "Tile size", "Rows", "Plotted", "Skipped",
		"Min " + results.MetricName, "Mean " + results.MetricName, "Max " + results.MetricName}
	if err = f.SetSheetRow(XlsxSummarySheetName, cellName(1, 1), &summaryHeader); err != nil {
		return nil, fmt.Errorf("failed to write summary header: %v", err)
	}
	_ = f.SetCellStyle(XlsxSummarySheetName, cellName(1, 1), cellName(len(summaryHeader), 1), headerStyle)

	used := map[string]bool{}
	for i, s := range results.Series {
		sum := s.Summary
		summaryRow := []any{s.Label, s.TileSize, sum.Rows, sum.Plotted, sum.Skipped,
			metricCell(sum.Min, sum.Plotted > 0), metricCell(sum.Mean, sum.Plotted > 0), metricCell(sum.Max, sum.Plotted > 0)}
		if err = f.SetSheetRow(XlsxSummarySheetName, cellName(1, i+2), &summaryRow); err != nil {
			return nil, fmt.Errorf("failed to write summary for %s: %v", s.Label, err)
		}

		name := sheetName(s.Label, used)
		if _, err = f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %q: %v", name, err)
		}
		_ = f.SetColWidth(name, "A", "D", 22)
		header := []any{parser.ColMatrixSize, parser.ColLoads, parser.ColLoadMisses, results.MetricName}
		if err = f.SetSheetRow(name, cellName(1, 1), &header); err != nil {
			return nil, fmt.Errorf("failed to write header for %s: %v", s.Label, err)
		}
		_ = f.SetCellStyle(name, cellName(1, 1), cellName(len(header), 1), headerStyle)
		for r, p := range s.Points {
			row := []any{p.MatrixSize, p.Loads, p.LoadMisses, metricCell(p.Value, p.Valid)}
			if err = f.SetSheetRow(name, cellName(1, r+2), &row); err != nil {
				return nil, fmt.Errorf("failed to write row %d for %s: %v", r+1, s.Label, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write xlsx workbook to buffer: %v", err)
	}
	return buf.Bytes(), nil
}
