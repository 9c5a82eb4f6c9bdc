package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	refreshes     *prometheus.CounterVec
	refreshTime   prometheus.Histogram
	invocations   *prometheus.HistogramVec
	storeErrors   *prometheus.CounterVec
	publishErrors prometheus.Counter
}

// New registers the collectors on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "omnispectrum_refresh_total",
			Help: "Refresh attempts by outcome (success, degraded, no_data, busy)",
		}, []string{"outcome"}),
		refreshTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "omnispectrum_refresh_duration_seconds",
			Help:    "Wall time of refresh attempts",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 240},
		}),
		invocations: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "omnispectrum_inference_duration_seconds",
			Help:    "Inference process runtime per strategy",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 180},
		}, []string{"strategy", "outcome"}),
		storeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "omnispectrum_store_errors_total",
			Help: "Snapshot store failures by operation",
		}, []string{"op"}),
		publishErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "omnispectrum_event_publish_errors_total",
			Help: "Snapshot events that could not be published",
		}),
	}
}

func (r *Recorder) RecordRefresh(outcome string, seconds float64) {
	r.refreshes.WithLabelValues(outcome).Inc()
	r.refreshTime.Observe(seconds)
}

func (r *Recorder) RecordInvocation(strategy, outcome string, seconds float64) {
	r.invocations.WithLabelValues(strategy, outcome).Observe(seconds)
}

func (r *Recorder) RecordStoreError(op string) {
	r.storeErrors.WithLabelValues(op).Inc()
}

func (r *Recorder) RecordPublishError() {
	r.publishErrors.Inc()
}
