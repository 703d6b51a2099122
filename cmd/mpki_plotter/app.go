package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/user/mpki_plotter_go/internal/analysis"
	"github.com/user/mpki_plotter_go/internal/config"
	"github.com/user/mpki_plotter_go/internal/logging"
	"github.com/user/mpki_plotter_go/internal/metrics"
	"github.com/user/mpki_plotter_go/internal/parser"
	"github.com/user/mpki_plotter_go/internal/report"
)

// App runs one plotting job for a validated configuration.
type App struct {
	cfg      *config.Config
	out      io.Writer // completion messages and subcommand listings
	recorder *metrics.Recorder
}

func NewApp(cfg *config.Config, out io.Writer) *App {
	return &App{cfg: cfg, out: out, recorder: metrics.NewRecorder()}
}

func (a *App) sendStatus(message string) {
	logging.GetLogger().Info(message)
}

// analyze loads every configured series and derives the metric. The first
// load error aborts the run.
func (a *App) analyze() (*analysis.AnalysisResults, error) {
	logger := logging.GetLogger()
	if err := a.cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	opts, err := a.cfg.AnalysisOptions()
	if err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	specs := a.cfg.ResolveSeries()
	inputs := make([]analysis.SeriesInput, 0, len(specs))
	for _, spec := range specs {
		logger.WithField("path", spec.Path).Debug("Parsing measurement file")
		table, err := parser.ParseMeasurementFile(spec.Path)
		if err != nil {
			return nil, err
		}
		logger.WithFields(logrus.Fields{
			"path": spec.Path,
			"tile": table.TileSize,
			"rows": len(table.Rows),
		}).Debug("Parsed measurement file")
		inputs = append(inputs, analysis.SeriesInput{Table: table, Label: spec.Label})
	}

	results, err := analysis.AnalyzeTables(inputs, opts)
	if err != nil {
		return nil, err
	}
	for _, s := range results.Series {
		fields := logrus.Fields{"path": s.Path, "tile": s.TileSize, "rows": s.Summary.Rows, "skipped": s.Summary.Skipped}
		for _, w := range s.Warnings {
			logger.WithFields(fields).Warn(w)
		}
	}
	if len(results.Ticks) == 0 {
		logger.Warn("No matrix sizes found in any measurement file")
	}
	a.sendStatus(fmt.Sprintf("Analysis complete. %d series, %d rows, %d not plotted.",
		len(results.Series), results.TotalRows(), results.TotalSkipped()))
	return results, nil
}

type output struct {
	path string
	data []byte
}

// render produces every requested output in memory, chart first.
func (a *App) render(results *analysis.AnalysisResults) ([]output, error) {
	start := time.Now()
	chartOpts := a.cfg.ChartOptions()

	chart, err := report.RenderMPKIChart(results, chartOpts)
	if err != nil {
		return nil, errors.Wrap(err, "render chart")
	}
	outputs := []output{{path: a.cfg.Output, data: chart}}

	if a.cfg.PDF != "" {
		images := map[string][]byte{report.ImageChart: chart}
		heatmap, err := report.CreateMetricHeatmap(results, fmt.Sprintf("%s by Tile Size and Matrix Size", results.MetricName))
		if err != nil {
			logging.GetLogger().WithError(err).Warn("Heat map not generated")
		} else {
			images[report.ImageHeatmap] = heatmap
		}
		pdf, err := report.BuildPDFReport(results, images, chartOpts.Title)
		if err != nil {
			return nil, errors.Wrap(err, "build PDF report")
		}
		outputs = append(outputs, output{path: a.cfg.PDF, data: pdf})
	}
	if a.cfg.Xlsx != "" {
		xlsx, err := report.CreateXlsxWorkbook(results)
		if err != nil {
			return nil, errors.Wrap(err, "build workbook")
		}
		outputs = append(outputs, output{path: a.cfg.Xlsx, data: xlsx})
	}

	a.recorder.ObserveRender(time.Since(start))
	return outputs, nil
}

// Run renders every output in memory before touching the disk. If any
// output cannot be written, none of them is left in place.
func (a *App) Run() error {
	results, err := a.analyze()
	if err != nil {
		return err
	}
	a.recorder.ObserveAnalysis(results)

	a.sendStatus("Generating outputs...")
	outputs, err := a.render(results)
	if err != nil {
		return err
	}
	if a.cfg.MetricsFile != "" {
		textfile, err := a.recorder.Textfile()
		if err != nil {
			return err
		}
		outputs = append(outputs, output{path: a.cfg.MetricsFile, data: textfile})
	}

	if err := writeFilesAtomic(outputs); err != nil {
		return err
	}
	for _, o := range outputs {
		logging.GetLogger().WithField("output", o.path).Debug("Wrote output")
	}
	fmt.Fprintf(a.out, "Graph saved as %s\n", a.cfg.Output)
	return nil
}

// Validate loads and analyses every series and prints a summary per series
// without writing any file.
func (a *App) Validate() error {
	results, err := a.analyze()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SERIES\tPATH\tROWS\tPLOTTED\tSKIPPED\tMEAN %s\n", results.MetricName)
	for _, s := range results.Series {
		mean := "-"
		if s.Summary.Plotted > 0 {
			mean = fmt.Sprintf("%.3f", s.Summary.Mean)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", s.Label, s.Path, s.Summary.Rows, s.Summary.Plotted, s.Summary.Skipped, mean)
	}
	return w.Flush()
}

// Ticks prints the matrix sizes that label the x axis, one per line.
func (a *App) Ticks() error {
	results, err := a.analyze()
	if err != nil {
		return err
	}
	for _, tick := range results.Ticks {
		fmt.Fprintln(a.out, tick)
	}
	return nil
}

// writeFilesAtomic stages every output in a temporary file next to its
// destination and renames them into place only once all are staged. If a
// rename fails, outputs already renamed are removed again.
func writeFilesAtomic(outputs []output) (err error) {
	staged := make([]string, 0, len(outputs))
	renamed := make([]string, 0, len(outputs))
	defer func() {
		if err == nil {
			return
		}
		for _, tmp := range staged {
			os.Remove(tmp)
		}
		for _, path := range renamed {
			os.Remove(path)
		}
	}()

	for _, o := range outputs {
		tmp, err := stageFile(o.path, o.data)
		if err != nil {
			return err
		}
		staged = append(staged, tmp)
	}
	for i, o := range outputs {
		if err := os.Rename(staged[i], o.path); err != nil {
			staged = staged[i:]
			return errors.Wrapf(err, "write %s", o.path)
		}
		renamed = append(renamed, o.path)
	}
	staged = nil
	return nil
}

// stageFile writes data to a new temporary file in the directory of path
// and returns its name.
func stageFile(path string, data []byte) (name string, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return "", errors.Wrapf(err, "write %s", path)
	}
	if err = tmp.Close(); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return tmp.Name(), nil
}
