// Package prometheus records retrieval telemetry as Prometheus metrics.
package prometheus

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.MetricsRecorder = (*Recorder)(nil)

const namespace = "lorekeeper"

// Recorder implements driven.MetricsRecorder on a private registry.
type Recorder struct {
	registry *prom.Registry

	retrievalLatency *prom.HistogramVec
	retrievalHits    *prom.HistogramVec
	emptyResults     *prom.CounterVec
	routingDecisions *prom.CounterVec
	routingFallbacks prom.Counter
	routingDegraded  prom.Counter
	embeddingErrors  *prom.CounterVec
	corpusSections   prom.Gauge
}

// New creates a recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prom.NewRegistry(),
		retrievalLatency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Wall-clock retrieval latency by strategy.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"strategy"}),
		retrievalHits: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_hits",
			Help:      "Number of hits returned per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		}, []string{"strategy"}),
		emptyResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_empty_total",
			Help:      "Retrievals that found nothing relevant.",
		}, []string{"strategy"}),
		routingDecisions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "routing_scope_total",
			Help:      "Scopes selected by the router.",
		}, []string{"scope"}),
		routingFallbacks: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "routing_full_corpus_total",
			Help:      "Decisions that included the full corpus.",
		}),
		routingDegraded: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "routing_degraded_total",
			Help:      "Decisions made after a classifier failure.",
		}),
		embeddingErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_errors_total",
			Help:      "Failed embedding calls by model.",
		}, []string{"model"}),
		corpusSections: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "corpus_sections",
			Help:      "Sections in the live corpus snapshot.",
		}),
	}

	r.registry.MustRegister(
		r.retrievalLatency,
		r.retrievalHits,
		r.emptyResults,
		r.routingDecisions,
		r.routingFallbacks,
		r.routingDegraded,
		r.embeddingErrors,
		r.corpusSections,
	)
	return r
}

// Registry exposes the registry for tests and custom exporters.
func (r *Recorder) Registry() *prom.Registry {
	return r.registry
}

// Handler serves the metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveRetrieval records one completed retrieval.
func (r *Recorder) ObserveRetrieval(strategy domain.Strategy, elapsed time.Duration, hits int) {
	s := strategy.String()
	r.retrievalLatency.WithLabelValues(s).Observe(elapsed.Seconds())
	r.retrievalHits.WithLabelValues(s).Observe(float64(hits))
	if hits == 0 {
		r.emptyResults.WithLabelValues(s).Inc()
	}
}

// ObserveRouting records one routing decision.
func (r *Recorder) ObserveRouting(decision *domain.RoutingDecision) {
	if decision == nil {
		return
	}
	for _, c := range decision.Scopes {
		r.routingDecisions.WithLabelValues(c.String()).Inc()
	}
	if decision.IncludesFullCorpus {
		r.routingFallbacks.Inc()
	}
	if decision.Degraded {
		r.routingDegraded.Inc()
	}
}

// IncEmbeddingError counts a failed embedding call.
func (r *Recorder) IncEmbeddingError(model string) {
	r.embeddingErrors.WithLabelValues(model).Inc()
}

// SetCorpusSize records the number of sections in the live snapshot.
func (r *Recorder) SetCorpusSize(sections int) {
	r.corpusSections.Set(float64(sections))
}
