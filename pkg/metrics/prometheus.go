package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the Prometheus-backed observability sink for the
// collection and signal pipeline.
type Recorder struct {
	fetches       *prometheus.CounterVec
	breakerOpen   *prometheus.GaugeVec
	signals       *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	cycleDuration *prometheus.HistogramVec
	errorsTotal   *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_source_fetches_total",
				Help: "Fetch attempts per source, operation and outcome",
			},
			[]string{"source", "op", "outcome"},
		),
		breakerOpen: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentinel_breaker_open",
				Help: "1 when the source circuit breaker is open",
			},
			[]string{"source"},
		),
		signals: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_signals_total",
				Help: "Generated signals by level",
			},
			[]string{"signal"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentinel_last_price",
				Help: "Last observed price per instrument",
			},
			[]string{"code"},
		),
		cycleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_cycle_duration_seconds",
				Help:    "Duration of full analysis cycles",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"mode"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordFetch counts one fetch attempt outcome.
func (r *Recorder) RecordFetch(source, op, outcome string) {
	r.fetches.WithLabelValues(source, op, outcome).Inc()
}

// RecordBreakerOpen reflects a breaker state transition.
func (r *Recorder) RecordBreakerOpen(source string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	r.breakerOpen.WithLabelValues(source).Set(v)
}

// RecordSignal counts one generated signal by level.
func (r *Recorder) RecordSignal(signal string) {
	r.signals.WithLabelValues(signal).Inc()
}

// RecordLastPrice records the last price for an instrument.
func (r *Recorder) RecordLastPrice(code string, price float64) {
	r.lastPrice.WithLabelValues(code).Set(price)
}

// RecordCycleDuration records one full cycle's wall time.
func (r *Recorder) RecordCycleDuration(mode string, d time.Duration) {
	r.cycleDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
