package metrics

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/user/mpki_plotter_go/internal/analysis"
)

const promMetricPrefix = "mpki_plotter_"

// Recorder collects statistics about one plotting run on its own registry,
// so runs in the same process never share state.
type Recorder struct {
	registry      *prometheus.Registry
	series        prometheus.Gauge
	rows          prometheus.Gauge
	rowsSkipped   prometheus.Gauge
	renderSeconds prometheus.Gauge
	seriesMean    *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		series: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: promMetricPrefix + "series",
			Help: "Number of series drawn on the chart",
		}),
		rows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: promMetricPrefix + "rows",
			Help: "Measurement rows loaded across all series",
		}),
		rowsSkipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: promMetricPrefix + "rows_skipped",
			Help: "Rows left off the chart because their metric is undefined",
		}),
		renderSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: promMetricPrefix + "render_seconds",
			Help: "Wall time spent rendering outputs",
		}),
		seriesMean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: promMetricPrefix + "series_mean_mpki",
			Help: "Mean of the plotted metric per tile size",
		}, []string{"tile", "label"}),
	}
	r.registry.MustRegister(r.series, r.rows, r.rowsSkipped, r.renderSeconds, r.seriesMean)
	return r
}

// ObserveAnalysis records series and row counts and the per-series mean.
// Series without a single plotted point have no mean and are left out.
func (r *Recorder) ObserveAnalysis(results *analysis.AnalysisResults) {
	r.series.Set(float64(len(results.Series)))
	r.rows.Set(float64(results.TotalRows()))
	r.rowsSkipped.Set(float64(results.TotalSkipped()))
	for _, s := range results.Series {
		if math.IsNaN(s.Summary.Mean) {
			continue
		}
		r.seriesMean.WithLabelValues(strconv.Itoa(s.TileSize), s.Label).Set(s.Summary.Mean)
	}
}

func (r *Recorder) ObserveRender(d time.Duration) {
	r.renderSeconds.Set(d.Seconds())
}

// Textfile renders every metric in the Prometheus text format, for the
// node_exporter textfile collector.
func (r *Recorder) Textfile() ([]byte, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}
