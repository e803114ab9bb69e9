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

// Metrics stores Prometheus collectors for the API and the outbound SMS path.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	smsSentTotal         prometheus.Counter
	smsBlockedTotal      *prometheus.CounterVec
	smsFailedTotal       *prometheus.CounterVec
	providerCallDuration prometheus.Histogram
	txRetriesTotal       prometheus.Counter
	remindersSentTotal   prometheus.Counter
	auditPrunedTotal     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "walkweek",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "walkweek",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		smsSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "walkweek",
				Name:      "sms_sent_total",
				Help:      "Total number of outbound SMS accepted by the provider.",
			},
		),
		smsBlockedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "walkweek",
				Name:      "sms_blocked_total",
				Help:      "Total number of outbound SMS blocked before the provider call.",
			},
			[]string{"reason"},
		),
		smsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "walkweek",
				Name:      "sms_failed_total",
				Help:      "Total number of outbound SMS that the provider did not accept.",
			},
			[]string{"reason"},
		),
		providerCallDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "walkweek",
				Name:      "provider_call_duration_seconds",
				Help:      "Duration of Twilio message-creation calls in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		txRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "walkweek",
				Name:      "tx_retries_total",
				Help:      "Total number of write-transaction retries caused by storage contention.",
			},
		),
		remindersSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "walkweek",
				Name:      "reminders_sent_total",
				Help:      "Total number of step reminders sent.",
			},
		),
		auditPrunedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "walkweek",
				Name:      "audit_pruned_rows_total",
				Help:      "Total number of rows pruned by the retention job, by table.",
			},
			[]string{"table"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.smsSentTotal,
		m.smsBlockedTotal,
		m.smsFailedTotal,
		m.providerCallDuration,
		m.txRetriesTotal,
		m.remindersSentTotal,
		m.auditPrunedTotal,
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

func (m *Metrics) IncSMSSent() {
	if m == nil {
		return
	}
	m.smsSentTotal.Inc()
}

func (m *Metrics) IncSMSBlocked(reason string) {
	if m == nil {
		return
	}
	m.smsBlockedTotal.WithLabelValues(normalizeReason(reason)).Inc()
}

func (m *Metrics) IncSMSFailed(reason string) {
	if m == nil {
		return
	}
	m.smsFailedTotal.WithLabelValues(normalizeReason(reason)).Inc()
}

func (m *Metrics) ObserveProviderCallDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.providerCallDuration.Observe(seconds)
}

func (m *Metrics) IncTxRetry() {
	if m == nil {
		return
	}
	m.txRetriesTotal.Inc()
}

func (m *Metrics) IncReminderSent() {
	if m == nil {
		return
	}
	m.remindersSentTotal.Inc()
}

func (m *Metrics) AddAuditPruned(table string, rows int64) {
	if m == nil || rows <= 0 {
		return
	}
	m.auditPrunedTotal.WithLabelValues(table).Add(float64(rows))
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

func normalizeReason(reason string) string {
	normalized := strings.TrimSpace(strings.ToLower(reason))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
