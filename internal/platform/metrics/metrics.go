package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "perfreview"

// Review submission sources.
const (
	SourceHTTP  = "http"
	SourceQueue = "queue"
)

// Queue lifecycle events.
const (
	QueuePublished    = "published"
	QueueAcked        = "acked"
	QueueRedelivered  = "redelivered"
	QueueDeadLettered = "dead_lettered"
	QueueDuplicate    = "duplicate"
)

// Collector owns a private registry so tests and multiple servers in one process
// never collide. A nil *Collector records nothing.
type Collector struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	reviewsSubmitted *prometheus.CounterVec
	queueMessages    *prometheus.CounterVec
	queueDepth       prometheus.Gauge
}

func New() *Collector {
	registry := prometheus.NewRegistry()
	auto := promauto.With(registry)

	return &Collector{
		registry: registry,
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		reviewsSubmitted: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_submitted_total",
			Help:      "Reviews persisted, by intake source.",
		}, []string{"source"}),
		queueMessages: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_messages_total",
			Help:      "Review message lifecycle events.",
		}, []string{"event"}),
		queueDepth: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Review messages waiting for a worker.",
		}),
	}
}

func (c *Collector) Record(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) ReviewSubmitted(source string) {
	if c == nil {
		return
	}
	c.reviewsSubmitted.WithLabelValues(source).Inc()
}

func (c *Collector) QueueEvent(event string) {
	if c == nil {
		return
	}
	c.queueMessages.WithLabelValues(event).Inc()
}

func (c *Collector) SetQueueDepth(depth int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(depth))
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
