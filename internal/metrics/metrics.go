package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lordseriouspig/nova-shell/internal/domain/event"
)

const namespace = "nova"

// Metrics holds all Prometheus metrics on a private registry
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Resolver metrics
	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration prometheus.Histogram

	// Download metrics
	DownloadsActive   prometheus.Gauge
	DownloadsStarted  prometheus.Counter
	DownloadsFinished *prometheus.CounterVec
	BytesReceived     prometheus.Counter
}

// Ensure Metrics can be driven by domain events
var _ event.MetricsRecorder = (*Metrics)(nil)

// New creates a new metrics collector with Go and process collectors registered
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),

		ResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resource_resolutions_total",
				Help:      "Virtual resource resolutions by outcome",
			},
			[]string{"outcome"},
		),
		ResolutionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resource_resolution_duration_seconds",
				Help:      "Virtual resource resolution duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
		),

		DownloadsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "downloads_active",
				Help:      "Number of live transfers",
			},
		),
		DownloadsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "downloads_started_total",
				Help:      "Total number of transfers registered",
			},
		),
		DownloadsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "downloads_finished_total",
				Help:      "Total number of transfers finished by final state",
			},
			[]string{"state"},
		),
		BytesReceived: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "download_bytes_total",
				Help:      "Total bytes received by transfers",
			},
		),
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records an HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// DownloadStarted records a registered transfer
func (m *Metrics) DownloadStarted() {
	m.DownloadsStarted.Inc()
	m.DownloadsActive.Inc()
}

// DownloadBytes records received bytes
func (m *Metrics) DownloadBytes(n int64) {
	m.BytesReceived.Add(float64(n))
}

// DownloadFinished records a transfer reaching a terminal state
func (m *Metrics) DownloadFinished(state string) {
	m.DownloadsFinished.WithLabelValues(state).Inc()
	m.DownloadsActive.Dec()
}

// ResourceResolved records one resolver request
func (m *Metrics) ResourceResolved(outcome string, duration time.Duration) {
	m.ResolutionsTotal.WithLabelValues(outcome).Inc()
	m.ResolutionDuration.Observe(duration.Seconds())
}
