// Package metrics exposes Prometheus counters and histograms for provider
// calls, covenant lifecycle transitions, and orchestration fan-out, served
// on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codeready-toolchain/covenant/pkg/provider"
)

// Registry wraps the Prometheus collectors this service exposes. Satisfies
// provider.MetricsSink so a *Registry can be passed directly to
// provider.WithMetricsSink.
type Registry struct {
	providerCallsTotal    *prometheus.CounterVec
	providerCallLatencyMS *prometheus.HistogramVec
	providerCallCostUSD   *prometheus.CounterVec

	covenantTransitionsTotal *prometheus.CounterVec
	covenantsDelegatedTotal  prometheus.Counter
	covenantsRejectedTotal   prometheus.Counter

	subAgentsSpawnedTotal *prometheus.CounterVec
	allProvidersFailed    prometheus.Counter
}

// NewRegistry builds and registers every collector against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		providerCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_provider_calls_total",
			Help: "Total number of Provider Client calls, partitioned by model and outcome.",
		}, []string{"model_id", "success"}),
		providerCallLatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "covenant_provider_call_latency_milliseconds",
			Help:    "Provider Client call latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"model_id"}),
		providerCallCostUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_provider_call_cost_usd_total",
			Help: "Cumulative estimated cost in USD of Provider Client calls.",
		}, []string{"model_id"}),
		covenantTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_state_transitions_total",
			Help: "Total number of covenant lifecycle transitions, by resulting state.",
		}, []string{"state"}),
		covenantsDelegatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "covenant_delegated_total",
			Help: "Total number of covenants delegated to an Orchestrator actor.",
		}),
		covenantsRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "covenant_rejected_total",
			Help: "Total number of covenants rejected by the Mediator's quality gate.",
		}),
		subAgentsSpawnedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_subagents_spawned_total",
			Help: "Total number of sub-agent tasks spawned, by role.",
		}, []string{"role"}),
		allProvidersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "covenant_all_providers_failed_total",
			Help: "Total number of Smart Router executions that exhausted every candidate model.",
		}),
	}

	reg.MustRegister(
		r.providerCallsTotal,
		r.providerCallLatencyMS,
		r.providerCallCostUSD,
		r.covenantTransitionsTotal,
		r.covenantsDelegatedTotal,
		r.covenantsRejectedTotal,
		r.subAgentsSpawnedTotal,
		r.allProvidersFailed,
	)
	return r
}

// ObserveProviderCall implements provider.MetricsSink.
func (r *Registry) ObserveProviderCall(event provider.MetricEvent) {
	success := "true"
	if !event.Success {
		success = "false"
	}
	r.providerCallsTotal.WithLabelValues(event.ModelID, success).Inc()
	r.providerCallLatencyMS.WithLabelValues(event.ModelID).Observe(float64(event.LatencyMS))
	if event.Success {
		r.providerCallCostUSD.WithLabelValues(event.ModelID).Add(event.CostUSD)
	}
}

// ObserveCovenantTransition records a covenant reaching a new lifecycle state.
func (r *Registry) ObserveCovenantTransition(state string) {
	r.covenantTransitionsTotal.WithLabelValues(state).Inc()
	switch state {
	case "delegated":
		r.covenantsDelegatedTotal.Inc()
	case "rejected":
		r.covenantsRejectedTotal.Inc()
	}
}

// ObserveSubAgentSpawned records a sub-agent task being handed to the executor.
func (r *Registry) ObserveSubAgentSpawned(role string) {
	r.subAgentsSpawnedTotal.WithLabelValues(role).Inc()
}

// ObserveAllProvidersFailed records the Smart Router exhausting every candidate.
func (r *Registry) ObserveAllProvidersFailed() {
	r.allProvidersFailed.Inc()
}
