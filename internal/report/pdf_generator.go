package report

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/user/mpki_plotter_go/internal/analysis"
	"github.com/user/mpki_plotter_go/internal/logging"
)

const (
	inchToMm               = 25.4
	pdfPageWidthLandscape  = 11 * inchToMm // Letter landscape
	pdfPageHeightLandscape = 8.5 * inchToMm
	pdfMargin              = 0.5 * inchToMm
	pdfContentWidth        = pdfPageWidthLandscape - (2 * pdfMargin)
)

// Keys of the images BuildPDFReport embeds.
const (
	ImageChart   = "chart"
	ImageHeatmap = "heatmap"
)

// pdfStyler holds reusable styling and state for PDF generation
type pdfStyler struct {
	pdf         *gofpdf.Fpdf
	styles      map[string]func()
	lineHeight  float64
	currentY    float64 // manual Y tracking for flowing content
	pageBottom  float64
	contentTopY float64
}

func newPDFStyler(pdf *gofpdf.Fpdf) *pdfStyler {
	s := &pdfStyler{
		pdf:         pdf,
		styles:      make(map[string]func()),
		lineHeight:  6, // mm
		pageBottom:  pdfPageHeightLandscape - pdfMargin,
		contentTopY: pdfMargin,
	}
	s.currentY = s.contentTopY
	s.defineStyles()
	return s
}

func (s *pdfStyler) defineStyles() {
	s.styles["h1"] = func() {
		s.pdf.SetFont("Arial", "B", 16)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["h2"] = func() {
		s.pdf.SetFont("Arial", "B", 14)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["normal"] = func() {
		s.pdf.SetFont("Arial", "", 10)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["warning"] = func() {
		s.pdf.SetFont("Arial", "", 9)
		s.pdf.SetTextColor(160, 80, 0)
	}
	s.styles["tableHeader"] = func() {
		s.pdf.SetFont("Arial", "B", 9)
		s.pdf.SetFillColor(200, 200, 200)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["tableCell"] = func() {
		s.pdf.SetFont("Arial", "", 9)
		s.pdf.SetTextColor(50, 50, 50)
	}
	s.styles["tableCellRed"] = func() { // series with skipped rows
		s.pdf.SetFont("Arial", "B", 9)
		s.pdf.SetTextColor(200, 0, 0)
	}
}

func (s *pdfStyler) applyStyle(styleName string) {
	if fn, ok := s.styles[styleName]; ok {
		fn()
	} else {
		s.styles["normal"]()
	}
}

func (s *pdfStyler) newPage() {
	s.pdf.AddPage()
	s.currentY = s.contentTopY
}

func (s *pdfStyler) checkAddPage(neededHeight float64) {
	if s.currentY+neededHeight > s.pageBottom {
		s.newPage()
	}
}

func (s *pdfStyler) writeParagraph(text string, styleName string, align string) {
	s.applyStyle(styleName)
	lines := s.pdf.SplitLines([]byte(text), pdfContentWidth)
	s.checkAddPage(float64(max(len(lines), 1)) * s.lineHeight)

	s.pdf.SetXY(pdfMargin, s.currentY)
	s.pdf.MultiCell(pdfContentWidth, s.lineHeight, text, "", align, false)
	s.currentY = s.pdf.GetY() + 1
}

func (s *pdfStyler) addSpacer(height float64) {
	s.currentY += height
	if s.currentY > s.pageBottom {
		s.newPage()
	}
}

// addImage embeds a PNG at the given width, keeping its aspect ratio.
func (s *pdfStyler) addImage(imageBytes []byte, imageName string, width float64, caption string) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageBytes))
	if err != nil {
		return fmt.Errorf("failed to read image %s: %v", imageName, err)
	}
	width = math.Min(width, pdfContentWidth)
	height := width * float64(cfg.Height) / float64(cfg.Width)
	if maxHeight := s.pageBottom - s.contentTopY - 2*s.lineHeight; height > maxHeight {
		width *= maxHeight / height
		height = maxHeight
	}

	s.pdf.RegisterImageReader(imageName, "PNG", bytes.NewReader(imageBytes))
	if err := s.pdf.Error(); err != nil {
		return fmt.Errorf("failed to register image %s: %v", imageName, err)
	}

	captionHeight := 0.0
	if caption != "" {
		captionHeight = s.lineHeight + 1
	}
	s.checkAddPage(height + captionHeight)

	x := pdfMargin + (pdfContentWidth-width)/2
	s.pdf.Image(imageName, x, s.currentY, width, height, false, "PNG", 0, "")
	s.currentY += height

	if caption != "" {
		s.addSpacer(1)
		s.writeParagraph(caption, "normal", "C")
	}
	s.addSpacer(2)
	return nil
}

func (s *pdfStyler) writeTable(headers []string, colWidthsRel []float64, rows [][]string, highlight func(row int) bool) {
	colWidthsAbs := make([]float64, len(colWidthsRel))
	for i, rel := range colWidthsRel {
		colWidthsAbs[i] = rel * pdfContentWidth
	}

	writeHeader := func() {
		sX := pdfMargin
		s.applyStyle("tableHeader")
		for i, header := range headers {
			s.pdf.SetXY(sX, s.currentY)
			s.pdf.CellFormat(colWidthsAbs[i], s.lineHeight, header, "1", 0, "C", true, 0, "")
			sX += colWidthsAbs[i]
		}
		s.currentY += s.lineHeight
	}

	s.checkAddPage(2 * s.lineHeight)
	writeHeader()
	for r, row := range rows {
		if s.currentY+s.lineHeight > s.pageBottom {
			s.newPage()
			writeHeader()
		}
		if highlight != nil && highlight(r) {
			s.applyStyle("tableCellRed")
		} else {
			s.applyStyle("tableCell")
		}
		sX := pdfMargin
		for i, cell := range row {
			s.pdf.SetXY(sX, s.currentY)
			s.pdf.CellFormat(colWidthsAbs[i], s.lineHeight, cell, "1", 0, "C", false, 0, "")
			sX += colWidthsAbs[i]
		}
		s.currentY += s.lineHeight
	}
}

func formatMetric(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.3f", v)
}

// BuildPDFReport lays out the chart, a per-series summary table, the
// collected warnings and the heat map, and returns the PDF bytes. Missing
// images are noted in the document rather than failing the report.
func BuildPDFReport(results *analysis.AnalysisResults, plotImages map[string][]byte, title string) ([]byte, error) {
	if results == nil {
		return nil, fmt.Errorf("no analysis results for PDF report")
	}
	log := logging.GetLogger()
	printer := message.NewPrinter(language.English)

	pdf := gofpdf.New("L", "mm", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.SetCreationDate(time.Unix(0, 0).UTC())
	pdf.SetTitle(title, false)
	pdf.AddPage()

	styler := newPDFStyler(pdf)
	styler.writeParagraph(title, "h1", "C")
	styler.addSpacer(3)
	styler.writeParagraph(printer.Sprintf("%d series, %d rows, %d rows not plotted",
		len(results.Series), results.TotalRows(), results.TotalSkipped()), "normal", "C")
	styler.addSpacer(3)

	if imgBytes, ok := plotImages[ImageChart]; ok && len(imgBytes) > 0 {
		if err := styler.addImage(imgBytes, ImageChart, pdfContentWidth, ""); err != nil {
			return nil, err
		}
	} else {
		styler.writeParagraph("Chart not available.", "normal", "L")
	}

	styler.newPage()
	styler.writeParagraph(fmt.Sprintf("%s Summary by Tile Size", results.MetricName), "h2", "L")
	headers := []string{"Tile", "Rows", "Plotted", "Skipped",
		"Min " + results.MetricName, "Mean " + results.MetricName, "Max " + results.MetricName}
	rows := make([][]string, 0, len(results.Series))
	for _, s := range results.Series {
		rows = append(rows, []string{
			s.Label,
			printer.Sprintf("%d", s.Summary.Rows),
			printer.Sprintf("%d", s.Summary.Plotted),
			printer.Sprintf("%d", s.Summary.Skipped),
			formatMetric(s.Summary.Min),
			formatMetric(s.Summary.Mean),
			formatMetric(s.Summary.Max),
		})
	}
	styler.writeTable(headers, []float64{0.22, 0.13, 0.13, 0.13, 0.13, 0.13, 0.13}, rows, func(r int) bool {
		return results.Series[r].Summary.Skipped > 0
	})
	styler.addSpacer(5)

	var warnings []string
	for _, s := range results.Series {
		warnings = append(warnings, s.Warnings...)
	}
	warnings = append(warnings, results.AnalysisErrors...)
	styler.writeParagraph("Warnings", "h2", "L")
	if len(warnings) == 0 {
		styler.writeParagraph("No warnings.", "normal", "L")
	}
	for _, w := range warnings {
		styler.writeParagraph("- "+w, "warning", "L")
	}

	styler.newPage()
	styler.writeParagraph(fmt.Sprintf("%s Heat Map", results.MetricName), "h2", "L")
	if imgBytes, ok := plotImages[ImageHeatmap]; ok && len(imgBytes) > 0 {
		caption := fmt.Sprintf("Mean %s per tile size and matrix size; gray cells have no valid measurement", results.MetricName)
		if err := styler.addImage(imgBytes, ImageHeatmap, pdfContentWidth*0.9, caption); err != nil {
			return nil, err
		}
	} else {
		log.Warn("heat map image missing from PDF report")
		styler.writeParagraph("Heat map not available.", "normal", "L")
	}

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %v", err)
	}
	return buf.Bytes(), nil
}
