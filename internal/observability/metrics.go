package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and delivery flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDuration       *prometheus.HistogramVec
	deliveriesDispatchedTotal *prometheus.CounterVec
	deliveriesDeliveredTotal  *prometheus.CounterVec
	deliveriesFailedTotal     *prometheus.CounterVec
	deliveryAttemptDuration   *prometheus.HistogramVec
	retryScheduledTotal       *prometheus.CounterVec
	workerInflight            prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webhook_relay",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "webhook_relay",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		deliveriesDispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webhook_relay",
				Name:      "deliveries_dispatched_total",
				Help:      "Total number of delivery records created by event type.",
			},
			[]string{"event"},
		),
		deliveriesDeliveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webhook_relay",
				Name:      "deliveries_delivered_total",
				Help:      "Total number of deliveries acknowledged with a 2xx.",
			},
			[]string{"event"},
		),
		deliveriesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webhook_relay",
				Name:      "deliveries_failed_total",
				Help:      "Total number of deliveries that ended in failed state.",
			},
			[]string{"event", "reason"},
		),
		deliveryAttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "webhook_relay",
				Name:      "delivery_attempt_duration_seconds",
				Help:      "Outbound HTTP attempt duration in seconds by event type.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"event"},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webhook_relay",
				Name:      "retry_scheduled_total",
				Help:      "Total number of deliveries scheduled for retry.",
			},
			[]string{"event"},
		),
		workerInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "webhook_relay",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight delivery attempts.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.deliveriesDispatchedTotal,
		m.deliveriesDeliveredTotal,
		m.deliveriesFailedTotal,
		m.deliveryAttemptDuration,
		m.retryScheduledTotal,
		m.workerInflight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDispatched(event string) {
	if m == nil {
		return
	}
	m.deliveriesDispatchedTotal.WithLabelValues(normalizeEvent(event)).Inc()
}

func (m *Metrics) IncDelivered(event string) {
	if m == nil {
		return
	}
	m.deliveriesDeliveredTotal.WithLabelValues(normalizeEvent(event)).Inc()
}

func (m *Metrics) IncFailed(event string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.deliveriesFailedTotal.WithLabelValues(normalizeEvent(event), reasonLabel).Inc()
}

func (m *Metrics) ObserveAttemptDuration(event string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.deliveryAttemptDuration.WithLabelValues(normalizeEvent(event)).Observe(seconds)
}

func (m *Metrics) IncRetryScheduled(event string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeEvent(event)).Inc()
}

func (m *Metrics) IncWorkerInFlight() {
	if m == nil {
		return
	}
	m.workerInflight.Inc()
}

func (m *Metrics) DecWorkerInFlight() {
	if m == nil {
		return
	}
	m.workerInflight.Dec()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeEvent(event string) string {
	normalized := strings.ToLower(strings.TrimSpace(event))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
