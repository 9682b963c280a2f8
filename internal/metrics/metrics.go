package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Extraction outcomes used as the outcome label.
const (
	OutcomeOK       = "ok"
	OutcomeReview   = "needs_review"
	OutcomeFailed   = "failed"
	OutcomeOCRError = "ocr_error"
	OutcomeLines    = "lines_only"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and
// records nothing, so tests and tools can skip the registry.
type Metrics struct {
	extractions    *prometheus.CounterVec
	fieldsResolved *prometheus.CounterVec
	confidence     prometheus.Histogram
	ocrDuration    prometheus.Histogram
	queueDepth     prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receipts_extractions_total",
			Help: "Receipt extractions by outcome.",
		}, []string{"outcome"}),
		fieldsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receipts_fields_resolved_total",
			Help: "Confidence-bearing fields resolved by the engine.",
		}, []string{"field"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "receipts_extraction_confidence",
			Help:    "Confidence of extracted records.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ocrDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "receipts_ocr_duration_seconds",
			Help:    "Time spent recognizing text per document.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 180},
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "receipts_queue_depth",
			Help: "Documents waiting in the processing queue.",
		}),
	}
	for _, c := range []prometheus.Collector{m.extractions, m.fieldsResolved, m.confidence, m.ocrDuration, m.queueDepth} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveExtraction records one finished extraction.
func (m *Metrics) ObserveExtraction(outcome string, confidence float64, resolved []string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(outcome).Inc()
	m.confidence.Observe(confidence)
	for _, f := range resolved {
		m.fieldsResolved.WithLabelValues(f).Inc()
	}
}

func (m *Metrics) ObserveOCR(d time.Duration) {
	if m == nil {
		return
	}
	m.ocrDuration.Observe(d.Seconds())
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
