package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "authgw")

	m.RequestsTotal.WithLabelValues("/ingest", "200").Inc()
	m.RejectionsTotal.WithLabelValues("bad_signature", "emitter-a", "scenario-1").Inc()
	m.RateLimitRemain.WithLabelValues("emitter-a").Set(42)
	m.BreakerState.WithLabelValues("http://normalizer").Set(BreakerStateValue("open"))
	m.RecordsAccepted.Add(3)
	m.DownstreamRetries.WithLabelValues("http://normalizer").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/ingest", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RejectionsTotal.WithLabelValues("bad_signature", "emitter-a", "scenario-1")))
	assert.Equal(t, float64(42), testutil.ToFloat64(m.RateLimitRemain.WithLabelValues("emitter-a")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.BreakerState.WithLabelValues("http://normalizer")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.RecordsAccepted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DownstreamRetries.WithLabelValues("http://normalizer")))

	gathered, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, gathered)
}

func TestBreakerStateValue(t *testing.T) {
	assert.Equal(t, float64(0), BreakerStateValue("closed"))
	assert.Equal(t, float64(1), BreakerStateValue("half_open"))
	assert.Equal(t, float64(2), BreakerStateValue("open"))
	assert.Equal(t, float64(0), BreakerStateValue("unknown-state"))
}
