package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CountersRegisterAndIncrement(t *testing.T) {
	m := New()

	m.SamplerTicks.Inc()
	m.ClientsEvicted.Add(3)
	m.ResolverCacheHit.WithLabelValues("host", "hit").Inc()
	m.FanOutExecFail.Inc()

	families, err := m.Registry.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "lltop_clients_evicted_total" {
			found = true
			require.Len(t, f.GetMetric(), 1)
			assert.Equal(t, float64(3), f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found, "expected lltop_clients_evicted_total to be registered")
}
