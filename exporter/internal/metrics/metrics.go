package metrics

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/dirsize/dirsize-exporter/pkg/types"
)

const namespace = "dirsize"

// Error kinds used as the "kind" label of dirsize_scrape_errors_total.
const (
	KindEntry  = "entry"  // file or subdirectory skipped inside a walk
	KindTarget = "target" // target or unit that could not be listed
	KindConfig = "config" // unsupported scrape mode
)

// scrapeBuckets spans sub-second walks of small trees up to ten minute walks
// of large network mounts.
var scrapeBuckets = []float64{0.1, 1, 5, 10, 30, 60, 120, 300, 600}

var labelNames = []string{"path", "base_dir", "name"}

// Metrics is the set of collectors the scraper writes to.
type Metrics struct {
	reg *prometheus.Registry

	PathBytes      *prometheus.GaugeVec
	PathFiles      *prometheus.GaugeVec
	ScrapeDuration prometheus.Histogram
	ScrapeErrors   *prometheus.CounterVec
	ScrapeSkipped  prometheus.Counter
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors, matching what the default registry exposes.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New creates the exporter collectors and registers them on reg.
// It panics if any of them is already registered.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		PathBytes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "path_bytes",
			Help:      "Number of bytes of all regular files below the directory.",
		}, labelNames),
		PathFiles: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "path_files",
			Help:      "Number of regular files below the directory.",
		}, labelNames),
		ScrapeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scrape_duration_seconds",
			Help:      "Duration of a full scrape cycle over all configured directories.",
			Buckets:   scrapeBuckets,
		}),
		ScrapeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_errors_total",
			Help:      "Entries, targets and configurations that could not be scraped.",
		}, []string{"kind"}),
		ScrapeSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_skipped_total",
			Help:      "Scrape ticks skipped because the previous cycle was still running.",
		}),
	}
}

// Publish sets the size and file-count gauges of one measured unit.
func (m *Metrics) Publish(l types.Labels, u types.Usage) {
	values := l.Values()
	m.PathBytes.WithLabelValues(values...).Set(float64(u.Bytes))
	m.PathFiles.WithLabelValues(values...).Set(float64(u.Files))
	if u.Errors > 0 {
		m.ScrapeErrors.WithLabelValues(KindEntry).Add(float64(u.Errors))
	}
}

// CycleTimer starts a timer that records into ScrapeDuration when its
// ObserveDuration method is called.
func (m *Metrics) CycleTimer() *prometheus.Timer {
	return prometheus.NewTimer(m.ScrapeDuration)
}

// Registry returns the registry the collectors were registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler(logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(logger.Handler(), slog.LevelError),
		ErrorHandling: promhttp.ContinueOnError,
		Registry:      m.reg,
	})
}

// WriteText gathers g and writes every family to w in the text exposition
// format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
