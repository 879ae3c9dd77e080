package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(Redirects.WithLabelValues("found"))
	Redirects.WithLabelValues("found").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Redirects.WithLabelValues("found")))

	CircuitBreakerState.WithLabelValues("test").Set(2)
	assert.Equal(t, float64(2), testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test")))
}
