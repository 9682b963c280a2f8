package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveExtraction(OutcomeOK, 0.9, []string{"date", "amount"})
	m.ObserveExtraction(OutcomeReview, 0.3, []string{"amount"})
	m.ObserveOCR(1500 * time.Millisecond)
	m.SetQueueDepth(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractions.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractions.WithLabelValues(OutcomeReview)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.fieldsResolved.WithLabelValues("amount")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fieldsResolved.WithLabelValues("date")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 2, testutil.CollectAndCount(m.fieldsResolved))
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveExtraction(OutcomeFailed, 0, nil)
		m.ObserveOCR(time.Second)
		m.SetQueueDepth(1)
	})
}
