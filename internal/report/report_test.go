package report

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/plot/vg"

	"github.com/user/mpki_plotter_go/internal/analysis"
	"github.com/user/mpki_plotter_go/internal/parser"
)

var testPalette = []color.Color{
	color.NRGBA{R: 0xFF, G: 0xE9, B: 0x27, A: 0xFF},
	color.NRGBA{R: 0xFD, G: 0x01, B: 0x01, A: 0xFF},
}

func analyzed(t *testing.T, files map[int]string, order ...int) *analysis.AnalysisResults {
	t.Helper()
	inputs := make([]analysis.SeriesInput, 0, len(order))
	for _, tile := range order {
		table, err := parser.ParseMeasurements(strings.NewReader(files[tile]), "", tile)
		require.NoError(t, err)
		inputs = append(inputs, analysis.SeriesInput{Table: table})
	}
	results, err := analysis.AnalyzeTables(inputs, analysis.Options{Palette: testPalette})
	require.NoError(t, err)
	return results
}

func sampleResults(t *testing.T) *analysis.AnalysisResults {
	return analyzed(t, map[int]string{
		4: "Matrix size,L1-dcache-loads,L1-dcache-load-misses\n" +
			"64,1000,50\n128,2000,0\n256,4000,400\n",
		8: "Matrix size,L1-dcache-loads,L1-dcache-load-misses\n" +
			"128,1024,64\n512,0,5\n1024,8192,512\n",
	}, 4, 8)
}

// smallOptions keeps rendering fast in tests.
func smallOptions() ChartOptions {
	opts := DefaultChartOptions()
	opts.Width = 8 * vg.Inch
	opts.Height = 4.5 * vg.Inch
	opts.DPI = 40
	return opts
}

func TestBuildChartModel(t *testing.T) {
	results := sampleResults(t)
	model, err := BuildChartModel(results, DefaultChartOptions())
	require.NoError(t, err)

	assert.Equal(t, "MPKI vs Matrix Size for Different Tile Sizes", model.Title)
	assert.Equal(t, "Matrix Size", model.XLabel)
	assert.Equal(t, "MPKI", model.YLabel)
	assert.Equal(t, "Tile Size", model.LegendTitle)

	labels := make([]string, len(model.XTicks))
	for i, tick := range model.XTicks {
		labels[i] = tick.Label
	}
	assert.Equal(t, []string{"64", "128", "256", "512", "1024"}, labels, "zero-load row keeps its tick")
	assert.Less(t, model.XMin, 64.0)
	assert.Greater(t, model.XMax, 1024.0)

	require.Len(t, model.Curves, 2)
	assert.Equal(t, "Tile 4", model.Curves[0].Label)
	assert.Equal(t, testPalette[0], model.Curves[0].Color)
	assert.Len(t, model.Curves[0].Points, 3)
	assert.InDelta(t, 50.0, model.Curves[0].Points[0].Y, 1e-9)
	assert.InDelta(t, 0.0, model.Curves[0].Points[1].Y, 1e-9)

	assert.Equal(t, "Tile 8", model.Curves[1].Label)
	assert.Equal(t, testPalette[1], model.Curves[1].Color)
	require.Len(t, model.Curves[1].Points, 2, "zero-load row is not drawn")
	assert.Equal(t, 1024.0, model.Curves[1].Points[1].X)
}

func TestBuildChartModelIsDeterministic(t *testing.T) {
	first, err := BuildChartModel(sampleResults(t), DefaultChartOptions())
	require.NoError(t, err)
	second, err := BuildChartModel(sampleResults(t), DefaultChartOptions())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildChartModelErrors(t *testing.T) {
	_, err := BuildChartModel(nil, DefaultChartOptions())
	assert.Error(t, err)

	_, err = BuildChartModel(analysis.NewAnalysisResults("MPKI"), DefaultChartOptions())
	assert.Error(t, err)
}

func TestLogPaddedRange(t *testing.T) {
	lo, hi := logPaddedRange(10, 1000)
	assert.InDelta(t, math.Pow(10, 0.9), lo, 1e-9)
	assert.InDelta(t, math.Pow(10, 3.1), hi, 1e-9)

	lo, hi = logPaddedRange(64, 64)
	assert.Less(t, lo, 64.0)
	assert.Greater(t, hi, 64.0)
}

func TestRenderMPKIChart(t *testing.T) {
	opts := smallOptions()
	out, err := RenderMPKIChart(sampleResults(t), opts)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	b := img.Bounds()
	assert.Greater(t, b.Dx(), 0)
	assert.LessOrEqual(t, b.Dx(), int(opts.Width.Dots(float64(opts.DPI)))+1)
	assert.LessOrEqual(t, b.Dy(), int(opts.Height.Dots(float64(opts.DPI)))+1)

	again, err := RenderMPKIChart(sampleResults(t), opts)
	require.NoError(t, err)
	assert.Equal(t, out, again, "identical inputs render identical bytes")
}

func TestRenderMPKIChartKeepsMarginOnEveryEdge(t *testing.T) {
	opts := smallOptions()
	opts.DPI = 100
	out, err := RenderMPKIChart(sampleResults(t), opts)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	// one pixel of slack for anti-aliased glyph edges
	margin := int(math.Round(opts.TightPad.Dots(float64(opts.DPI)))) - 1
	require.Greater(t, margin, 0)
	b := img.Bounds()
	isWhite := func(x, y int) bool {
		r, g, bl, a := img.At(x, y).RGBA()
		return r == 0xFFFF && g == 0xFFFF && bl == 0xFFFF && a == 0xFFFF
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			edge := y < b.Min.Y+margin || y >= b.Max.Y-margin || x < b.Min.X+margin || x >= b.Max.X-margin
			if edge && !isWhite(x, y) {
				t.Fatalf("pixel (%d, %d) inside the %dpx margin is not background", x, y, margin)
			}
		}
	}
}

func pngChunkTypes(t *testing.T, data []byte) ([]string, map[string][]byte) {
	t.Helper()
	require.True(t, bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")))
	var types []string
	chunks := map[string][]byte{}
	for i := 8; i+8 <= len(data); {
		n := int(binary.BigEndian.Uint32(data[i : i+4]))
		typ := string(data[i+4 : i+8])
		require.LessOrEqual(t, i+12+n, len(data))
		types = append(types, typ)
		chunks[typ] = data[i+8 : i+8+n]
		i += 12 + n
	}
	return types, chunks
}

func TestRenderMPKIChartRecordsDPI(t *testing.T) {
	out, err := RenderMPKIChart(sampleResults(t), smallOptions())
	require.NoError(t, err)

	types, chunks := pngChunkTypes(t, out)
	require.GreaterOrEqual(t, len(types), 2)
	assert.Equal(t, []string{"IHDR", "pHYs"}, types[:2])
	phys := chunks["pHYs"]
	require.Len(t, phys, 9)
	assert.Equal(t, uint32(1575), binary.BigEndian.Uint32(phys[0:4]), "40 dpi in pixels per meter")
	assert.Equal(t, uint32(1575), binary.BigEndian.Uint32(phys[4:8]))
	assert.Equal(t, byte(1), phys[8])
}

func TestWithPHYs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 2))))

	out := withPHYs(buf.Bytes(), 300)
	_, chunks := pngChunkTypes(t, out)
	assert.Equal(t, uint32(11811), binary.BigEndian.Uint32(chunks["pHYs"][0:4]))

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err, "chunk checksum is valid")
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())

	assert.Equal(t, []byte("not a png"), withPHYs([]byte("not a png"), 300))
}

func TestRenderChartSeriesWithoutPoints(t *testing.T) {
	results := analyzed(t, map[int]string{
		2: "Matrix size,L1-dcache-loads,L1-dcache-load-misses\n32,0,1\n",
		4: "Matrix size,L1-dcache-loads,L1-dcache-load-misses\n64,1000,50\n",
	}, 2, 4)
	out, err := RenderMPKIChart(results, smallOptions())
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(out))
	assert.NoError(t, err)
}

func TestRenderChartRejectsBadDPI(t *testing.T) {
	model, err := BuildChartModel(sampleResults(t), DefaultChartOptions())
	require.NoError(t, err)
	opts := smallOptions()
	opts.DPI = 0
	_, err = RenderChart(model, opts)
	assert.Error(t, err)
}

func TestTrimToContent(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	img.Set(5, 6, color.Black)
	img.Set(9, 8, color.Black)

	trimmed := trimToContent(img, color.White, 2)
	assert.Equal(t, image.Rect(3, 4, 12, 11), trimmed.Bounds())

	edge := trimToContent(img, color.White, 15)
	assert.Equal(t, img.Bounds(), edge.Bounds(), "padding is clamped to the image")

	blank := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range blank.Pix {
		blank.Pix[i] = 0xFF
	}
	assert.Equal(t, blank.Bounds(), trimToContent(blank, color.White, 1).Bounds())
}

func TestNewMetricGrid(t *testing.T) {
	results := analyzed(t, map[int]string{
		4: "Matrix size,L1-dcache-loads,L1-dcache-load-misses\n64,1000,50\n64,1000,30\n",
		8: "Matrix size,L1-dcache-loads,L1-dcache-load-misses\n128,1000,10\n",
	}, 4, 8)
	grid := newMetricGrid(results)

	c, r := grid.Dims()
	assert.Equal(t, 2, c)
	assert.Equal(t, 2, r)
	assert.InDelta(t, 40.0, grid.Z(0, 0), 1e-9, "repeated runs are averaged")
	assert.True(t, math.IsNaN(grid.Z(1, 0)))
	assert.True(t, math.IsNaN(grid.Z(0, 1)))
	assert.InDelta(t, 10.0, grid.Z(1, 1), 1e-9)
}

func TestCreateMetricHeatmap(t *testing.T) {
	out, err := CreateMetricHeatmap(sampleResults(t), "MPKI Heat Map")
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(out))
	assert.NoError(t, err)

	_, err = CreateMetricHeatmap(analysis.NewAnalysisResults("MPKI"), "empty")
	assert.Error(t, err)
}

func TestBuildPDFReport(t *testing.T) {
	results := sampleResults(t)
	chart, err := RenderMPKIChart(results, smallOptions())
	require.NoError(t, err)
	heatmap, err := CreateMetricHeatmap(results, "heat")
	require.NoError(t, err)

	out, err := BuildPDFReport(results, map[string][]byte{ImageChart: chart, ImageHeatmap: heatmap}, "MPKI Report")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	noImages, err := BuildPDFReport(results, nil, "MPKI Report")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(noImages, []byte("%PDF-")))

	_, err = BuildPDFReport(results, map[string][]byte{ImageChart: []byte("not a png")}, "bad")
	assert.Error(t, err)
}

func TestCreateXlsxWorkbook(t *testing.T) {
	out, err := CreateXlsxWorkbook(sampleResults(t))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Tile 4", "Tile 8"}, f.GetSheetList())

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, "Series", summary[0][0])
	assert.Equal(t, []string{"Tile 8", "8", "3", "2", "1"}, summary[2][:5])

	rows, err := f.GetRows("Tile 8")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Matrix size", "L1-dcache-loads", "L1-dcache-load-misses", "MPKI"}, rows[0])
	assert.Equal(t, []string{"128", "1024", "64", "62.5"}, rows[1])
	assert.Equal(t, []string{"512", "0", "5"}, rows[2], "undefined MPKI cell is empty")
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "Tile 4", sheetName("Tile 4", used))
	assert.Equal(t, "Tile 4 (2)", sheetName("Tile 4", used))
	assert.Equal(t, "a_b_c", sheetName("a/b:c", used))
	assert.Equal(t, "Summary (2)", sheetName("Summary", used))
	assert.Len(t, []rune(sheetName(strings.Repeat("x", 40), used)), excelize.MaxSheetNameLength)
}
