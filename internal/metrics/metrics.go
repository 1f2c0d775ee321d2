// Package metrics exposes the inspection run's Prometheus instrumentation:
// how many entities were processed, changed, or locked, and how resolver
// calls by scheme performed, so an operator can see drift volume and
// resolver health across runs without grepping logs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder exposes the counters and histograms a run publishes. A real
// Recorder registers against a prometheus.Registry; tests can substitute a
// no-op implementation.
type Recorder interface {
	EntityProcessed(changed bool)
	EntityLocked()
	ResolverError(scheme string)
	ObserveResolveDuration(scheme string, d time.Duration)
	ObserveDiffDuration(scheme string, d time.Duration)
}

// PromRecorder is the default Recorder, backed by client_golang collectors
// registered on construction.
type PromRecorder struct {
	entitiesProcessed *prometheus.CounterVec
	entitiesLocked    prometheus.Counter
	resolverErrors    *prometheus.CounterVec
	resolveDuration   *prometheus.HistogramVec
	diffDuration      *prometheus.HistogramVec
}

// NewPromRecorder builds a PromRecorder and registers its collectors on reg.
func NewPromRecorder(reg prometheus.Registerer) *PromRecorder {
	r := &PromRecorder{
		entitiesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inspector",
			Name:      "entities_processed_total",
			Help:      "Entities visited by the inspection engine, labeled by whether the entity changed.",
		}, []string{"changed"}),
		entitiesLocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inspector",
			Name:      "entities_locked_total",
			Help:      "Entities skipped because they carry a pwrt:inspector:value-requires-reviewing property.",
		}),
		resolverErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inspector",
			Name:      "resolver_errors_total",
			Help:      "Resolver failures, labeled by URL scheme.",
		}, []string{"scheme"}),
		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "inspector",
			Name:      "resolve_duration_seconds",
			Help:      "Time spent in Resolver.Resolve, labeled by URL scheme.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scheme"}),
		diffDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "inspector",
			Name:      "diff_duration_seconds",
			Help:      "Time spent in VersioningResolver.Diff, labeled by URL scheme.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scheme"}),
	}
	reg.MustRegister(r.entitiesProcessed, r.entitiesLocked, r.resolverErrors, r.resolveDuration, r.diffDuration)
	return r
}

func (r *PromRecorder) EntityProcessed(changed bool) {
	label := "false"
	if changed {
		label = "true"
	}
	r.entitiesProcessed.WithLabelValues(label).Inc()
}

func (r *PromRecorder) EntityLocked() {
	r.entitiesLocked.Inc()
}

func (r *PromRecorder) ResolverError(scheme string) {
	r.resolverErrors.WithLabelValues(scheme).Inc()
}

func (r *PromRecorder) ObserveResolveDuration(scheme string, d time.Duration) {
	r.resolveDuration.WithLabelValues(scheme).Observe(d.Seconds())
}

func (r *PromRecorder) ObserveDiffDuration(scheme string, d time.Duration) {
	r.diffDuration.WithLabelValues(scheme).Observe(d.Seconds())
}

// NoopRecorder discards everything; used where a Recorder is required but no
// metrics server is running (e.g. the orchestrate tests).
type NoopRecorder struct{}

func (NoopRecorder) EntityProcessed(bool)                             {}
func (NoopRecorder) EntityLocked()                                    {}
func (NoopRecorder) ResolverError(string)                             {}
func (NoopRecorder) ObserveResolveDuration(string, time.Duration)      {}
func (NoopRecorder) ObserveDiffDuration(string, time.Duration)         {}
