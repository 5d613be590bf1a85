package metrics_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/fairline/internal/domain"
	"github.com/alejandrodnm/fairline/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveReport(t *testing.T) {
	m := metrics.New()
	cons := domain.ConsensusResult{}

	m.ObserveReport(domain.CycleReport{
		Evaluations: []domain.EventEvaluation{
			{
				Consensus:  &cons,
				Confidence: 0.7,
				Assessments: []domain.EVAssessment{
					{TargetSourceID: "novig", HasPositiveEV: true},
					{TargetSourceID: "novig"},
					{TargetSourceID: "fanduel"},
				},
				Opportunities: []domain.Opportunity{{}, {}},
				Failures:      []domain.SkippedSource{{SourceID: "betmgm"}},
			},
			{},
		},
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Events))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Assessments.WithLabelValues("novig", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Assessments.WithLabelValues("novig", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Assessments.WithLabelValues("fanduel", "false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Opportunities))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedTarget.WithLabelValues("betmgm")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Confidence))
}

func TestMetrics_ObserveFetchAndCycle(t *testing.T) {
	m := metrics.New()

	m.ObserveFetch(200*time.Millisecond, domain.Quota{Remaining: 350})
	m.ObserveFetch(100*time.Millisecond, domain.Quota{Remaining: -1}) // sin cabecera: no pisa el gauge
	assert.Equal(t, 350.0, testutil.ToFloat64(m.QuotaLeft))

	m.ObserveCycle(domain.PollSuccess, time.Second)
	m.ObserveCycle(domain.PollError, time.Second)
	m.ObserveCycle(domain.PollSuccess, time.Second)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Cycles.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues("error")))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := metrics.New()
	b := metrics.New()
	a.Opportunities.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Opportunities))
}
