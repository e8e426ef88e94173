package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	BackendEmbedding   = "embedding"
	BackendGeneration  = "generation"
	BackendTranslation = "translation"

	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	backendRequests   *prometheus.CounterVec
	backendDuration   *prometheus.HistogramVec
	retrievalResults  prometheus.Histogram
	messagesProcessed *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		backendRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medcure_backend_requests_total",
				Help: "Total number of calls to external backends",
			},
			[]string{"backend", "outcome"},
		),
		backendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "medcure_backend_request_duration_seconds",
				Help:    "External backend call duration distribution",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		retrievalResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "medcure_retrieval_results",
				Help:    "Number of catalog records retrieved per question",
				Buckets: []float64{0, 1, 2, 3, 5, 10},
			},
		),
		messagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medcure_messages_processed_total",
				Help: "Total number of processed questions by detected language",
			},
			[]string{"language"},
		),
	}
	reg.MustRegister(m.backendRequests, m.backendDuration, m.retrievalResults, m.messagesProcessed)
	return m
}

func (m *Metrics) ObserveBackend(backend string, seconds float64, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.backendRequests.WithLabelValues(backend, outcome).Inc()
	m.backendDuration.WithLabelValues(backend).Observe(seconds)
}

func (m *Metrics) ObserveRetrieval(results int) {
	if m == nil {
		return
	}
	m.retrievalResults.Observe(float64(results))
}

func (m *Metrics) MessageProcessed(language string) {
	if m == nil {
		return
	}
	m.messagesProcessed.WithLabelValues(language).Inc()
}
