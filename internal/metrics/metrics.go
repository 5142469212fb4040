// Package metrics provides Prometheus collectors for the scanner pipeline.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"BookmarkScanner/internal/domain"
	"BookmarkScanner/internal/ports"
)

const namespace = "bookmarkscanner"

// Collector owns the pipeline metrics registered on one registry.
type Collector struct {
	registry *prometheus.Registry

	// ItemsTotal counts analysed items by record kind.
	ItemsTotal *prometheus.CounterVec
	// ItemDuration measures per-item analysis time, throttling and retries included.
	ItemDuration prometheus.Histogram
	// BatchSize observes how many identifiers each batch processed.
	BatchSize prometheus.Histogram
	// BatchDuration measures whole-batch time.
	BatchDuration prometheus.Histogram
	// ScansTotal counts scans by outcome.
	ScansTotal *prometheus.CounterVec
	// ScanIdentifiers observes identifiers returned per successful scan.
	ScanIdentifiers prometheus.Histogram
}

var _ ports.Metrics = (*Collector)(nil)

// New registers the collectors on a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		ItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_total",
				Help:      "Total number of analysed items by record kind",
			},
			[]string{"kind"},
		),
		ItemDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Duration of single item analysis in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 40},
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Distribution of batch sizes",
			Buckets:   []float64{1, 5, 10, 25, 50},
		}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of batches in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_total",
				Help:      "Total number of bookmark scans by outcome",
			},
			[]string{"status"},
		),
		ScanIdentifiers: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_identifiers",
			Help:      "Identifiers found per successful scan",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
	}
}

// ObserveItem records one finished item.
func (c *Collector) ObserveItem(kind domain.RecordKind, elapsed time.Duration) {
	c.ItemsTotal.WithLabelValues(string(kind)).Inc()
	c.ItemDuration.Observe(elapsed.Seconds())
}

// ObserveBatch records one finished batch.
func (c *Collector) ObserveBatch(size int, elapsed time.Duration) {
	c.BatchSize.Observe(float64(size))
	c.BatchDuration.Observe(elapsed.Seconds())
}

// ObserveScan records a scan outcome.
func (c *Collector) ObserveScan(found int, err error) {
	switch {
	case err == nil:
		c.ScansTotal.WithLabelValues("ok").Inc()
		c.ScanIdentifiers.Observe(float64(found))
	case errors.Is(err, domain.ErrScanInProgress):
		c.ScansTotal.WithLabelValues("busy").Inc()
	case errors.Is(err, domain.ErrNotFound):
		c.ScansTotal.WithLabelValues("no_surface").Inc()
	default:
		c.ScansTotal.WithLabelValues("error").Inc()
	}
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
