// Package metrics exposes Prometheus instruments for the chat pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "naina"

// Recorder holds the pipeline metrics on a private registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	Verdicts           *prometheus.CounterVec
	Escalations        *prometheus.CounterVec
	SessionStoreErrors *prometheus.CounterVec
	LLMFallbacks       *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	ClassifyDuration   prometheus.Histogram
	ActiveSessions     prometheus.Gauge
}

// New creates a Recorder with its own registry. Go runtime and process
// collectors are included when withRuntime is set.
func New(withRuntime bool) *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "verdicts_total",
			Help:      "Classified messages by severity and crisis flag.",
		}, []string{"severity", "is_crisis"}),
		Escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "escalations_total",
			Help:      "Escalation decisions by response kind.",
		}, []string{"kind"}),
		SessionStoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "session_store_errors_total",
			Help:      "Session counter store failures by operation.",
		}, []string{"op"}),
		LLMFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "llm_fallbacks_total",
			Help:      "Canned replies used in place of the generator, by reason.",
		}, []string{"reason"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		ClassifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "classify_duration_seconds",
			Help:      "Time spent classifying one message.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_sessions",
			Help:      "Users with live session counters.",
		}),
	}

	reg.MustRegister(
		r.Verdicts,
		r.Escalations,
		r.SessionStoreErrors,
		r.LLMFallbacks,
		r.HTTPRequests,
		r.ClassifyDuration,
		r.ActiveSessions,
	)
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordVerdict counts one classification and its latency.
func (r *Recorder) RecordVerdict(severity string, isCrisis bool, took time.Duration) {
	if r == nil {
		return
	}
	r.Verdicts.WithLabelValues(severity, strconv.FormatBool(isCrisis)).Inc()
	r.ClassifyDuration.Observe(took.Seconds())
}

// RecordEscalation counts one escalation decision.
func (r *Recorder) RecordEscalation(kind string) {
	if r == nil {
		return
	}
	r.Escalations.WithLabelValues(kind).Inc()
}

// RecordStoreError counts one session store failure.
func (r *Recorder) RecordStoreError(op string) {
	if r == nil {
		return
	}
	r.SessionStoreErrors.WithLabelValues(op).Inc()
}

// RecordFallback counts one generator fallback.
func (r *Recorder) RecordFallback(reason string) {
	if r == nil {
		return
	}
	r.LLMFallbacks.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest counts one served request.
func (r *Recorder) RecordHTTPRequest(method, route string, status int) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// SetActiveSessions sets the live session gauge.
func (r *Recorder) SetActiveSessions(n int) {
	if r == nil {
		return
	}
	r.ActiveSessions.Set(float64(n))
}
