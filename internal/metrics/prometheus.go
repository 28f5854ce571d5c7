package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bookmarks"

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	bookmarksCreated prometheus.Counter
	cacheRequests    *prometheus.CounterVec
	authAttempts     *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	eventsPublished  *prometheus.CounterVec
	eventsProcessed  *prometheus.CounterVec
}

// NewPrometheus creates a recorder backed by its own registry, which also
// carries the Go runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	p := &PrometheusRecorder{
		registry: reg,
		bookmarksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "created_total",
			Help:      "Bookmarks created.",
		}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Bookmark cache lookups by result.",
		}, []string{"result"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Authentication attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Bookmark events appended to the stream.",
		}, []string{"status"}),
		eventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Bookmark events consumed from the stream.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.bookmarksCreated,
		p.cacheRequests,
		p.authAttempts,
		p.requestDuration,
		p.eventsPublished,
		p.eventsProcessed,
	)
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Gatherer exposes the registry, mainly for tests.
func (p *PrometheusRecorder) Gatherer() prometheus.Gatherer {
	return p.registry
}

func (p *PrometheusRecorder) IncBookmarkCreated() { p.bookmarksCreated.Inc() }

func (p *PrometheusRecorder) IncBookmarkCacheHit() { p.cacheRequests.WithLabelValues("hit").Inc() }

func (p *PrometheusRecorder) IncBookmarkCacheMiss() { p.cacheRequests.WithLabelValues("miss").Inc() }

func (p *PrometheusRecorder) IncAuthAttempt(method, outcome string) {
	p.authAttempts.WithLabelValues(method, outcome).Inc()
}

func (p *PrometheusRecorder) ObserveRequest(method, route string, status int, duration time.Duration) {
	p.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncEventPublished(status string) {
	p.eventsPublished.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncEventProcessed(status string) {
	p.eventsProcessed.WithLabelValues(status).Inc()
}
