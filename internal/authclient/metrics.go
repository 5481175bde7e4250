package authclient

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — метрики клиента.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	refreshes     *prometheus.CounterVec
	queued        prometheus.Counter
	notifications *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg. reg == nil — метрики создаются,
// но не регистрируются (удобно в тестах).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kiosk_admin",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Outgoing upstream requests by method and status.",
		}, []string{"method", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kiosk_admin",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Upstream request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kiosk_admin",
			Subsystem: "session",
			Name:      "refreshes_total",
			Help:      "Token refresh waves by outcome.",
		}, []string{"outcome"}),
		queued: f.NewCounter(prometheus.CounterOpts{
			Namespace: "kiosk_admin",
			Subsystem: "session",
			Name:      "queued_requests_total",
			Help:      "Requests that waited for an in-flight refresh.",
		}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kiosk_admin",
			Subsystem: "session",
			Name:      "notifications_total",
			Help:      "Notifications emitted by the client by kind.",
		}, []string{"kind"}),
	}
}

// WithMetrics считает запросы и задержку. Сетевые ошибки идут со status="error".
func WithMetrics(m *Metrics) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if m == nil {
			return next
		}

		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)
			m.duration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

			status := "error"
			if err == nil {
				status = strconv.Itoa(resp.StatusCode)
			}
			m.requests.WithLabelValues(req.Method, status).Inc()

			return resp, err
		})
	}
}

func (m *Metrics) refresh(outcome string) {
	if m != nil {
		m.refreshes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) queuedInc() {
	if m != nil {
		m.queued.Inc()
	}
}

func (m *Metrics) notified(kind string) {
	if m != nil {
		m.notifications.WithLabelValues(kind).Inc()
	}
}
