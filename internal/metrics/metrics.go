// Package metrics expone las métricas Prometheus del poller.
package metrics

import (
	"time"

	"github.com/alejandrodnm/fairline/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics agrupa los colectores de un proceso. Cada instancia tiene su propio
// registry para poder crear varias en tests.
type Metrics struct {
	Registry *prometheus.Registry

	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	FetchDuration prometheus.Histogram
	Events        prometheus.Gauge
	Assessments   *prometheus.CounterVec
	Opportunities prometheus.Counter
	SkippedTarget *prometheus.CounterVec
	QuotaLeft     prometheus.Gauge
	Confidence    prometheus.Histogram
}

// New crea y registra todas las métricas.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fairline_cycles_total",
				Help: "Polling cycles by final status",
			},
			[]string{"status"},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fairline_cycle_duration_seconds",
				Help:    "Wall time of a full fetch-evaluate-persist cycle",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fairline_odds_fetch_duration_seconds",
				Help:    "Response time of the odds provider",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		Events: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fairline_events_last_cycle",
				Help: "Events evaluated in the last cycle",
			},
		),
		Assessments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fairline_assessments_total",
				Help: "EV assessments by target book and result",
			},
			[]string{"book", "positive"},
		),
		Opportunities: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fairline_opportunities_total",
				Help: "Prices beating the trusted reference",
			},
		),
		SkippedTarget: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fairline_skipped_targets_total",
				Help: "Target books that could not be evaluated",
			},
			[]string{"book"},
		),
		QuotaLeft: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fairline_odds_api_requests_remaining",
				Help: "Remaining odds API quota as reported by the provider",
			},
		),
		Confidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fairline_consensus_confidence",
				Help:    "Confidence score of each event consensus",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),
	}

	m.Registry.MustRegister(
		m.Cycles,
		m.CycleDuration,
		m.FetchDuration,
		m.Events,
		m.Assessments,
		m.Opportunities,
		m.SkippedTarget,
		m.QuotaLeft,
		m.Confidence,
	)
	return m
}

// ObserveFetch registra la latencia y la cuota de una llamada al proveedor.
func (m *Metrics) ObserveFetch(d time.Duration, q domain.Quota) {
	m.FetchDuration.Observe(d.Seconds())
	if q.Remaining >= 0 {
		m.QuotaLeft.Set(float64(q.Remaining))
	}
}

// ObserveReport vuelca los contadores de un ciclo completado.
func (m *Metrics) ObserveReport(r domain.CycleReport) {
	m.Events.Set(float64(len(r.Evaluations)))
	for _, ev := range r.Evaluations {
		if ev.Consensus != nil {
			m.Confidence.Observe(ev.Confidence)
		}
		for _, a := range ev.Assessments {
			positive := "false"
			if a.HasPositiveEV {
				positive = "true"
			}
			m.Assessments.WithLabelValues(a.TargetSourceID, positive).Inc()
		}
		for _, f := range ev.Failures {
			m.SkippedTarget.WithLabelValues(f.SourceID).Inc()
		}
		m.Opportunities.Add(float64(len(ev.Opportunities)))
	}
}

// ObserveCycle registra el estado final y la duración de un ciclo.
func (m *Metrics) ObserveCycle(status domain.PollStatus, d time.Duration) {
	m.Cycles.WithLabelValues(string(status)).Inc()
	m.CycleDuration.Observe(d.Seconds())
}
