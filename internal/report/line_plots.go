package report

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"math"
	"strconv"

	"github.com/user/mpki_plotter_go/internal/analysis"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// ChartOptions controls the look of the MPKI chart. The zero value is not
// useful; start from DefaultChartOptions.
type ChartOptions struct {
	Title          string
	XLabel         string
	YLabel         string
	LegendTitle    string
	Width          vg.Length
	Height         vg.Length
	DPI            int
	RotateTicks    bool
	LineWidth      vg.Length
	MarkerSize     vg.Length // glyph diameter
	LegendColumns  int
	LegendFontSize vg.Length
	TightPad       vg.Length // whitespace kept around the content after trimming
}

// DefaultChartOptions is the standard chart: 16x9 in at 300 DPI,
// 2pt lines, 5pt circle markers, rotated tick labels and a two-column legend.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{
		Title:          "MPKI vs Matrix Size for Different Tile Sizes",
		XLabel:         "Matrix Size",
		YLabel:         "MPKI",
		LegendTitle:    "Tile Size",
		Width:          16 * vg.Inch,
		Height:         9 * vg.Inch,
		DPI:            300,
		RotateTicks:    true,
		LineWidth:      vg.Points(2),
		MarkerSize:     vg.Points(5),
		LegendColumns:  2,
		LegendFontSize: vg.Points(7),
		TightPad:       vg.Inch / 10,
	}
}

// ChartCurve is the geometry of one series: what gets drawn, not how.
type ChartCurve struct {
	Label  string
	Color  color.Color
	Points plotter.XYs
}

// ChartModel is the data-to-geometry mapping of the chart. Two runs over the
// same inputs produce equal models.
type ChartModel struct {
	Title       string
	XLabel      string
	YLabel      string
	LegendTitle string
	Curves      []ChartCurve
	XTicks      []plot.Tick
	XMin, XMax  float64
}

// BuildChartModel maps analysed series onto chart geometry: one curve per
// series in order, and one labelled x tick per distinct matrix size.
func BuildChartModel(results *analysis.AnalysisResults, opts ChartOptions) (*ChartModel, error) {
	if results == nil || len(results.Series) == 0 {
		return nil, fmt.Errorf("no series to plot")
	}
	if len(results.Ticks) == 0 {
		return nil, fmt.Errorf("no matrix sizes to plot")
	}

	model := &ChartModel{
		Title:       opts.Title,
		XLabel:      opts.XLabel,
		YLabel:      opts.YLabel,
		LegendTitle: opts.LegendTitle,
		Curves:      make([]ChartCurve, 0, len(results.Series)),
		XTicks:      make([]plot.Tick, len(results.Ticks)),
	}

	for i, size := range results.Ticks {
		model.XTicks[i] = plot.Tick{Value: float64(size), Label: strconv.Itoa(size)}
	}
	model.XMin, model.XMax = logPaddedRange(float64(results.Ticks[0]), float64(results.Ticks[len(results.Ticks)-1]))

	for _, s := range results.Series {
		valid := s.ValidPoints()
		pts := make(plotter.XYs, len(valid))
		for i, p := range valid {
			pts[i] = plotter.XY{X: float64(p.MatrixSize), Y: p.Value}
		}
		model.Curves = append(model.Curves, ChartCurve{Label: s.Label, Color: s.Color, Points: pts})
	}
	return model, nil
}

// logPaddedRange widens [min, max] by 5% of the span in log space so the
// outermost markers are not cut by the axes.
func logPaddedRange(min, max float64) (float64, float64) {
	lo, hi := math.Log10(min), math.Log10(max)
	span := hi - lo
	if span == 0 {
		span = math.Log10(2)
	}
	return math.Pow(10, lo-0.05*span), math.Pow(10, hi+0.05*span)
}

// RenderMPKIChart builds the chart model for results and renders it to PNG bytes.
func RenderMPKIChart(results *analysis.AnalysisResults, opts ChartOptions) ([]byte, error) {
	model, err := BuildChartModel(results, opts)
	if err != nil {
		return nil, err
	}
	return RenderChart(model, opts)
}

// RenderChart draws model as a PNG. The legend sits in its own column to the
// right of the plot area, and the image is trimmed to its content.
func RenderChart(model *ChartModel, opts ChartOptions) ([]byte, error) {
	if opts.DPI <= 0 {
		return nil, fmt.Errorf("invalid DPI %d", opts.DPI)
	}
	if opts.LegendColumns < 1 {
		opts.LegendColumns = 1
	}

	p := plot.New()
	p.Title.Text = model.Title
	p.X.Label.Text = model.XLabel
	p.Y.Label.Text = model.YLabel

	// horizontal grid lines only
	grid := plotter.NewGrid()
	grid.Vertical.Color = nil
	p.Add(grid)

	entries := make([]legendEntry, 0, len(model.Curves))
	for _, curve := range model.Curves {
		line, points, err := plotter.NewLinePoints(curve.Points)
		if err != nil {
			return nil, fmt.Errorf("failed to create line for %s: %v", curve.Label, err)
		}
		line.Color = curve.Color
		line.Width = opts.LineWidth
		points.Color = curve.Color
		points.Shape = draw.CircleGlyph{}
		points.Radius = opts.MarkerSize / 2

		if len(curve.Points) > 0 {
			p.Add(line, points)
		}
		entries = append(entries, legendEntry{label: curve.Label, thumbs: []plot.Thumbnailer{line, points}})
	}

	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.ConstantTicks(model.XTicks)
	p.X.Min = model.XMin
	p.X.Max = model.XMax
	if opts.RotateTicks {
		p.X.Tick.Label.Rotation = math.Pi / 4
		p.X.Tick.Label.XAlign = text.XRight
		p.X.Tick.Label.YAlign = text.YCenter
	}
	padYRange(p)

	img := vgimg.NewWith(vgimg.UseWH(opts.Width, opts.Height), vgimg.UseDPI(opts.DPI))
	// inset by the trim pad so every edge keeps the same margin after trimming
	dc := draw.Crop(draw.New(img), opts.TightPad, -opts.TightPad, opts.TightPad, -opts.TightPad)

	legend := newColumnLegend(entries, model.LegendTitle, opts)
	legendWidth := legend.width(dc)
	plotWidth := dc.Max.X - dc.Min.X - legendWidth

	p.Draw(draw.Crop(dc, 0, -legendWidth, 0, 0))

	// align the legend top with the top of the axes, below the title
	titleOffset := vg.Length(0)
	if p.Title.Text != "" {
		titleOffset = p.Title.TextStyle.Rectangle(p.Title.Text).Size().Y + p.Title.Padding
	}
	legend.draw(draw.Crop(dc, plotWidth, 0, 0, -titleOffset))

	trimmed := trimToContent(img.Image(), color.White, int(math.Round(opts.TightPad.Dots(float64(opts.DPI)))))
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, trimmed); err != nil {
		return nil, fmt.Errorf("failed to write plot to buffer: %v", err)
	}
	return withPHYs(buf.Bytes(), opts.DPI), nil
}

// padYRange adds a 5% margin above and below the data.
func padYRange(p *plot.Plot) {
	if math.IsInf(p.Y.Min, 0) || math.IsInf(p.Y.Max, 0) || p.Y.Min > p.Y.Max {
		p.Y.Min, p.Y.Max = 0, 1
		return
	}
	span := p.Y.Max - p.Y.Min
	if span == 0 {
		span = math.Max(math.Abs(p.Y.Max), 1)
	}
	p.Y.Min -= 0.05 * span
	p.Y.Max += 0.05 * span
}

type legendEntry struct {
	label  string
	thumbs []plot.Thumbnailer
}

// columnLegend lays legend entries out column by column under a title.
// plot.Legend only stacks entries vertically, so each column is its own
// plot.Legend drawn side by side.
type columnLegend struct {
	title      string
	titleStyle text.Style
	columns    []plot.Legend
	labels     [][]string
	gap        vg.Length
	padding    vg.Length
}

func newColumnLegend(entries []legendEntry, title string, opts ChartOptions) *columnLegend {
	nCols := opts.LegendColumns
	if nCols > len(entries) && len(entries) > 0 {
		nCols = len(entries)
	}
	perCol := int(math.Ceil(float64(len(entries)) / float64(nCols)))

	cl := &columnLegend{
		title:   title,
		gap:     opts.Width / 100,
		padding: vg.Points(4),
	}
	for c := 0; c < nCols; c++ {
		leg := plot.NewLegend()
		leg.Top = true
		leg.Left = true
		leg.TextStyle.Font.Size = opts.LegendFontSize
		leg.ThumbnailWidth = vg.Points(18)

		var labels []string
		for i := c * perCol; i < (c+1)*perCol && i < len(entries); i++ {
			leg.Add(entries[i].label, entries[i].thumbs...)
			labels = append(labels, entries[i].label)
		}
		cl.columns = append(cl.columns, leg)
		cl.labels = append(cl.labels, labels)
	}

	if len(cl.columns) > 0 {
		cl.titleStyle = cl.columns[0].TextStyle
	} else {
		cl.titleStyle = plot.NewLegend().TextStyle
	}
	cl.titleStyle.Font.Size = opts.LegendFontSize + vg.Points(1)
	cl.titleStyle.XAlign = text.XLeft
	cl.titleStyle.YAlign = text.YTop
	return cl
}

func (cl *columnLegend) columnWidth(i int) vg.Length {
	leg := cl.columns[i]
	em := leg.TextStyle.Width(" ")
	var widest vg.Length
	for _, label := range cl.labels[i] {
		if w := leg.TextStyle.Width(label); w > widest {
			widest = w
		}
	}
	return leg.ThumbnailWidth + em + widest
}

// width is the horizontal space the legend needs, including the gap that
// separates it from the plot.
func (cl *columnLegend) width(c draw.Canvas) vg.Length {
	total := cl.gap * 2
	for i := range cl.columns {
		if i > 0 {
			total += cl.gap
		}
		total += cl.columnWidth(i)
	}
	if cl.title != "" {
		if tw := cl.titleStyle.Width(cl.title) + cl.gap*2; tw > total {
			total = tw
		}
	}
	if limit := (c.Max.X - c.Min.X) / 2; total > limit {
		total = limit
	}
	return total
}

func (cl *columnLegend) draw(c draw.Canvas) {
	c = draw.Crop(c, cl.gap, 0, 0, 0)
	if cl.title != "" {
		c.FillText(cl.titleStyle, vg.Point{X: c.Min.X, Y: c.Max.Y}, cl.title)
		c = draw.Crop(c, 0, 0, 0, -(cl.titleStyle.Height(cl.title) + cl.padding))
	}
	offset := vg.Length(0)
	for i := range cl.columns {
		cl.columns[i].Draw(draw.Crop(c, offset, 0, 0, 0))
		offset += cl.columnWidth(i) + cl.gap
	}
}
