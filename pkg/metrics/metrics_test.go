package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/covenant/pkg/provider"
)

func TestObserveProviderCall_IncrementsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.ObserveProviderCall(provider.MetricEvent{ModelID: "primary/fast", LatencyMS: 120, CostUSD: 0.01, Success: true})

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "covenant_provider_calls_total" {
			found = true
			require.Equal(t, float64(1), *mf.Metric[0].Counter.Value)
		}
	}
	require.True(t, found)
}

func TestObserveCovenantTransition_TracksDelegatedAndRejected(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.ObserveCovenantTransition("delegated")
	r.ObserveCovenantTransition("rejected")

	require.Equal(t, float64(1), counterValue(t, r.covenantsDelegatedTotal))
	require.Equal(t, float64(1), counterValue(t, r.covenantsRejectedTotal))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
