package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	PagesFetched       *prometheus.CounterVec
	PagesAnalyzed      prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
	FetchDuration      prometheus.Histogram
	FetchesInFlight    prometheus.Gauge
	PageRankIterations prometheus.Gauge
	CheckpointsTotal   *prometheus.CounterVec

	JobsInQueue   prometheus.Gauge
	CrawlsTotal   *prometheus.CounterVec // status: success, failure, cancelled
	CrawlDuration *prometheus.HistogramVec
}

// New registers the metrics on reg. Pass prometheus.DefaultRegisterer for
// the process-wide /metrics endpoint or a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		PagesFetched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_pages_fetched_total",
			Help: "Fetched pages by HTTP status code.",
		}, []string{"status"}),
		PagesAnalyzed: f.NewCounter(prometheus.CounterOpts{
			Name: "crawler_pages_analyzed_total",
			Help: "Pages committed to the crawl result.",
		}),
		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"kind"}),
		FetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawler_fetch_duration_seconds",
			Help:    "Latency of page fetches.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		FetchesInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_fetches_in_flight",
			Help: "Fetches currently holding a connection slot.",
		}),
		PageRankIterations: f.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_pagerank_iterations",
			Help: "Iterations used by the last PageRank computation.",
		}),
		CheckpointsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_checkpoints_total",
			Help: "Snapshot writes by result.",
		}, []string{"result"}),

		JobsInQueue: f.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_jobs_in_queue",
			Help: "Current number of crawl jobs waiting in the queue.",
		}),
		CrawlsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawls_total",
			Help: "Total number of crawl jobs run.",
		}, []string{"status", "error_type"}),
		CrawlDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawl_duration_seconds",
			Help:    "Duration of whole-site crawls.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"domain"}),
	}
}

func (m *Metrics) IncPagesFetched(status int) {
	m.PagesFetched.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (m *Metrics) IncErrorsTotal(kind string) {
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}
