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

// Registry collects auth event counters and HTTP request metrics.
//
// Metrics:
//   - <ns>_auth_events_total{event} counter
//   - <ns>_http_request_duration_seconds{method,path,status} histogram
//   - <ns>_http_requests_inflight gauge
//   - <ns>_http_request_errors_total{method,path,status} counter (4xx/5xx)
//   - <ns>_audit_dropped_total and <ns>_audit_critical_dropped_total
//     counters, once WatchAuditDrops is called
type Registry struct {
	namespace string
	registry  *prometheus.Registry

	events      *prometheus.CounterVec
	reqDuration *prometheus.HistogramVec
	reqInflight prometheus.Gauge
	reqErrors   *prometheus.CounterVec
}

// NewRegistry creates the collectors under namespace, along with the Go
// runtime and process collectors.
func NewRegistry(namespace string) *Registry {
	r := &Registry{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Authentication events by type.",
		}, []string{"event"}),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "path", "status"}),
		reqInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_inflight",
			Help:      "HTTP requests currently being served.",
		}),
		reqErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_request_errors_total",
			Help:      "HTTP requests that finished with a 4xx or 5xx status.",
		}, []string{"method", "path", "status"}),
	}

	r.registry.MustRegister(
		r.events, r.reqDuration, r.reqInflight, r.reqErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Inc counts one auth event. It satisfies feedbackAuth.MetricsSink.
func (r *Registry) Inc(event string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(event).Inc()
}

// WatchAuditDrops exposes the engine's dropped audit event counts.
func (r *Registry) WatchAuditDrops(dropped, critical func() uint64) {
	r.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "audit_dropped_total",
		Help:      "Audit events dropped on a full buffer or an expired shutdown drain.",
	}, func() float64 {
		return float64(dropped())
	}))
	r.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "audit_critical_dropped_total",
		Help:      "Security-relevant audit events dropped after waiting for buffer room.",
	}, func() float64 {
		return float64(critical())
	}))
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) GinHandler() gin.HandlerFunc {
	return gin.WrapH(r.Handler())
}

// HTTPMiddleware records latency, in-flight and error metrics per route.
func (r *Registry) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		r.reqInflight.Inc()
		defer r.reqInflight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		r.reqDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		if c.Writer.Status() >= 400 {
			r.reqErrors.WithLabelValues(method, path, status).Inc()
		}
	}
}
