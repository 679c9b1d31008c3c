package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. One instance is
// created at startup and shared across handlers and services.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec

	ClaimsCreated    prometheus.Counter
	ClaimsAutoDenied prometheus.Counter
	Transitions      *prometheus.CounterVec
	ConflictRetries  prometheus.Counter

	Assessments    *prometheus.CounterVec
	HeuristicFired *prometheus.CounterVec

	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	CacheBypasses prometheus.Counter

	AuditDropped prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clearclaim_http_request_duration_seconds",
			Help:    "HTTP request latency by method, path, and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		ClaimsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clearclaim_claims_created_total",
			Help: "Total number of claims created.",
		}),
		ClaimsAutoDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clearclaim_claims_auto_denied_total",
			Help: "Claims denied at creation time by the risk engine.",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clearclaim_claim_transitions_total",
			Help: "Successful status transitions by target status.",
		}, []string{"target"}),
		ConflictRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clearclaim_conflict_retries_total",
			Help: "Optimistic-concurrency retries performed by the lifecycle service.",
		}),
		Assessments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clearclaim_fraud_assessments_total",
			Help: "Fraud assessments by outcome.",
		}, []string{"outcome"}),
		HeuristicFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clearclaim_fraud_heuristic_fired_total",
			Help: "Individual fraud heuristic firings.",
		}, []string{"heuristic"}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clearclaim_list_cache_hits_total",
			Help: "List cache hits.",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clearclaim_list_cache_misses_total",
			Help: "List cache misses.",
		}),
		CacheBypasses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clearclaim_list_cache_bypasses_total",
			Help: "List reads served directly because the cache backend failed.",
		}),
		AuditDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clearclaim_audit_events_dropped_total",
			Help: "Audit events dropped because the recorder inbox was full.",
		}),
	}
}

// ObserveRequest records one HTTP request observation.
func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	m.RequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
