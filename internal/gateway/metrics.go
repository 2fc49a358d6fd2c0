package gateway

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/agentchat/internal/session"
	"github.com/flemzord/agentchat/internal/stream"
)

const metricsNamespace = "agentchat"

// Metrics exports session, turn and request counters to Prometheus and
// keeps atomic totals for the /status snapshot. It observes both the
// session store and the streaming bridge.
type Metrics struct {
	registry *prometheus.Registry

	sessionsActive  prometheus.Gauge
	sessionsCreated prometheus.Counter
	sessionsRemoved *prometheus.CounterVec
	turns           *prometheus.CounterVec
	turnDuration    prometheus.Histogram
	requests        *prometheus.CounterVec

	created      atomic.Int64
	removed      atomic.Int64
	turnsDone    atomic.Int64
	turnsFailed  atomic.Int64
	turnsAborted atomic.Int64
	totalLatency atomic.Int64 // nanoseconds, finished turns only
}

var (
	_ session.Observer = (*Metrics)(nil)
	_ stream.Observer  = (*Metrics)(nil)
)

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		sessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_active",
			Help:      "Number of live chat sessions.",
		}),
		sessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created since start.",
		}),
		sessionsRemoved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_removed_total",
			Help:      "Sessions removed since start, by reason.",
		}, []string{"reason"}),
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "chat_turns_total",
			Help:      "Chat turns finished, by outcome.",
		}, []string{"outcome"}),
		turnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "chat_turn_duration_seconds",
			Help:      "Wall time of a chat turn from request to terminal event.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"method", "route", "code"}),
	}
}

// SessionCreated implements session.Observer.
func (m *Metrics) SessionCreated(string) {
	m.created.Add(1)
	m.sessionsCreated.Inc()
	m.sessionsActive.Inc()
}

// SessionRemoved implements session.Observer.
func (m *Metrics) SessionRemoved(_ string, reason session.RemovalReason) {
	m.removed.Add(1)
	m.sessionsRemoved.WithLabelValues(string(reason)).Inc()
	m.sessionsActive.Dec()
}

// TurnCompleted implements stream.Observer.
func (m *Metrics) TurnCompleted(outcome stream.Outcome, elapsed time.Duration) {
	switch outcome {
	case stream.OutcomeDone:
		m.turnsDone.Add(1)
	case stream.OutcomeError:
		m.turnsFailed.Add(1)
	default:
		m.turnsAborted.Add(1)
	}
	m.totalLatency.Add(int64(elapsed))
	m.turns.WithLabelValues(string(outcome)).Inc()
	m.turnDuration.Observe(elapsed.Seconds())
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the private registry, for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// instrument counts requests by route pattern.
func (m *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

// Snapshot returns a point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	done, failed, aborted := m.turnsDone.Load(), m.turnsFailed.Load(), m.turnsAborted.Load()
	snap := MetricsSnapshot{
		SessionsCreated: m.created.Load(),
		SessionsRemoved: m.removed.Load(),
		TurnsDone:       done,
		TurnsFailed:     failed,
		TurnsCanceled:   aborted,
	}
	if total := done + failed + aborted; total > 0 {
		snap.AvgTurnLatency = time.Duration(m.totalLatency.Load() / total)
	}
	return snap
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	SessionsCreated int64         `json:"sessions_created"`
	SessionsRemoved int64         `json:"sessions_removed"`
	TurnsDone       int64         `json:"turns_done"`
	TurnsFailed     int64         `json:"turns_failed"`
	TurnsCanceled   int64         `json:"turns_canceled"`
	AvgTurnLatency  time.Duration `json:"avg_turn_latency_ns"`
}
