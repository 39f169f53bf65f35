// Package metrics holds the Prometheus collectors for the HTTP surface and
// the donation lifecycle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "food_share"

type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight     prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	postsCreated     *prometheus.CounterVec
	requestsCreated  *prometheus.CounterVec
	requestsResolved *prometheus.CounterVec
	outboxDelivered  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),
		postsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "posts_created_total",
			Help:      "Posts created, by kind.",
		}, []string{"kind"}),
		requestsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "requests_created_total",
			Help:      "Requests created, by target kind.",
		}, []string{"kind"}),
		requestsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "requests_resolved_total",
			Help:      "Requests resolved, by decision.",
		}, []string{"decision"}),
		outboxDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "deliveries_total",
			Help:      "Outbox delivery attempts, by result.",
		}, []string{"result"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.postsCreated,
		m.requestsCreated,
		m.requestsResolved,
		m.outboxDelivered,
	)
	return m
}

// Middleware records per-route request metrics. Unmatched routes are
// folded into one label value to keep cardinality bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// The recorders below tolerate a nil receiver so services can run without
// metrics in tests.

func (m *Metrics) PostCreated(kind string) {
	if m != nil {
		m.postsCreated.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) RequestCreated(kind string) {
	if m != nil {
		m.requestsCreated.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) RequestResolved(decision string) {
	if m != nil {
		m.requestsResolved.WithLabelValues(decision).Inc()
	}
}

func (m *Metrics) OutboxDelivered(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.outboxDelivered.WithLabelValues("sent").Inc()
	} else {
		m.outboxDelivered.WithLabelValues("failed").Inc()
	}
}
