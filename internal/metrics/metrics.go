package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution sources used as the "source" label
const (
	SourceCache = "cache"
	SourceScope = "scope"
	SourceEnv   = "env"
	SourceNone  = "none"
)

// Recorder records resolver metrics. A nil *Recorder is valid and records nothing,
// so components can be built without a registry.
type Recorder struct {
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	resolutionsTotal   *prometheus.CounterVec
	providerFetchTotal *prometheus.CounterVec
	providerDuration   *prometheus.HistogramVec
	retryAttemptsTotal *prometheus.CounterVec
	initTotal          *prometheus.CounterVec
	mutationsTotal     *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer to
// expose them globally or a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "secretchain_cache_hits_total",
			Help: "Total number of secret lookups served from the cache",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "secretchain_cache_misses_total",
			Help: "Total number of secret lookups that missed the cache",
		}),
		resolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretchain_resolutions_total",
				Help: "Total number of secret resolutions by the source that produced the value",
			},
			[]string{"source"},
		),
		providerFetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretchain_provider_fetch_total",
				Help: "Total number of per-scope provider lookups by outcome",
			},
			[]string{"scope", "outcome"},
		),
		providerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secretchain_provider_fetch_duration_seconds",
				Help:    "Duration of per-scope provider lookups including retries",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15},
			},
			[]string{"scope"},
		),
		retryAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretchain_provider_failed_attempts_total",
				Help: "Total number of failed provider attempts by operation",
			},
			[]string{"operation"},
		),
		initTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretchain_initializations_total",
				Help: "Provider initializations by outcome (ready, disabled, failed)",
			},
			[]string{"outcome"},
		),
		mutationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretchain_mutations_total",
				Help: "Secret create/update/delete/list calls by operation and status",
			},
			[]string{"operation", "status"},
		),
	}
}

// CacheHit records a lookup served from the cache
func (r *Recorder) CacheHit() {
	if r == nil {
		return
	}
	r.cacheHits.Inc()
}

// CacheMiss records a lookup that went past the cache
func (r *Recorder) CacheMiss() {
	if r == nil {
		return
	}
	r.cacheMisses.Inc()
}

// Resolution records which source finally answered a lookup
func (r *Recorder) Resolution(source string) {
	if r == nil {
		return
	}
	r.resolutionsTotal.WithLabelValues(source).Inc()
}

// ProviderFetch records one per-scope lookup
func (r *Recorder) ProviderFetch(scope, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.providerFetchTotal.WithLabelValues(scope, outcome).Inc()
	r.providerDuration.WithLabelValues(scope).Observe(d.Seconds())
}

// FailedAttempt records a failed provider attempt, retried or not
func (r *Recorder) FailedAttempt(operation string) {
	if r == nil {
		return
	}
	r.retryAttemptsTotal.WithLabelValues(operation).Inc()
}

// Initialization records the initializer outcome
func (r *Recorder) Initialization(outcome string) {
	if r == nil {
		return
	}
	r.initTotal.WithLabelValues(outcome).Inc()
}

// Mutation records a CRUD passthrough call
func (r *Recorder) Mutation(operation string, err error) {
	if r == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	r.mutationsTotal.WithLabelValues(operation, status).Inc()
}
