package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveBackend(BackendEmbedding, 0.1, nil)
	m.ObserveBackend(BackendEmbedding, 0.2, errors.New("timeout"))
	m.ObserveBackend(BackendGeneration, 1.5, nil)
	m.MessageProcessed("vi")
	m.MessageProcessed("vi")
	m.ObserveRetrieval(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendRequests.WithLabelValues(BackendEmbedding, OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendRequests.WithLabelValues(BackendEmbedding, OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendRequests.WithLabelValues(BackendGeneration, OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesProcessed.WithLabelValues("vi")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.retrievalResults))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBackend(BackendTranslation, 0, nil)
		m.ObserveRetrieval(0)
		m.MessageProcessed("en")
	})
}
