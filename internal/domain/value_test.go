package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectedValue(t *testing.T) {
	ev, err := ExpectedValue(0.55, 120, 100)
	require.NoError(t, err)
	assert.InDelta(t, 21.0, ev, 1e-9)

	ev, err = ExpectedValue(0.45, -110, 100)
	require.NoError(t, err)
	assert.InDelta(t, -14.0909, ev, 1e-4)
}

func TestExpectedValue_Invalid(t *testing.T) {
	_, err := ExpectedValue(1.2, 120, 100)
	assert.True(t, errors.Is(err, ErrInvalidProbability))

	_, err = ExpectedValue(0.5, 120, 0)
	assert.Error(t, err)

	_, err = ExpectedValue(0.5, 0, 100)
	assert.True(t, errors.Is(err, ErrInvalidOdds))
}

func TestDetectPositiveEV(t *testing.T) {
	c, err := DetectPositiveEV(0.55, 120)
	require.NoError(t, err)

	assert.True(t, c.HasPositiveEV)
	assert.InDelta(t, 21.0, c.ExpectedValue, 1e-9)
	assert.InDelta(t, 0.21, c.EVPerDollar, 1e-9)
	assert.InDelta(t, -122.222, c.FairOdds, 1e-3)
	assert.InDelta(t, 0.454545, c.ImpliedProbability, 1e-6)
	assert.InDelta(t, 0.095455, c.Edge, 1e-6)
}

func TestFairValueEdges(t *testing.T) {
	e, err := FairValueEdges([2]float64{-110, -110}, [2]float64{100, 100}, 0.02)
	require.NoError(t, err)

	assert.InDelta(t, -0.0238095, e.A.Edge, 1e-6)
	assert.InDelta(t, -0.0238095, e.B.Edge, 1e-6)
	assert.False(t, e.A.Opportunity)
	assert.False(t, e.B.Opportunity)
}

func TestWeightedFairValueScan(t *testing.T) {
	quotes := QuoteSet{
		"pinnacle":   {SourceID: "pinnacle", PriceA: -105, PriceB: -105},
		"draftkings": {SourceID: "draftkings", PriceA: -110, PriceB: -110},
		"fanduel":    {SourceID: "fanduel", PriceA: -108, PriceB: -108},
		"caesars":    {SourceID: "caesars", PriceA: 105, PriceB: -125},
	}

	scan, err := WeightedFairValueScan(quotes, DefaultWeightTable(), 0.01)
	require.NoError(t, err)
	require.Len(t, scan.Books, 4)

	// caesars no entra en el consenso pero sí se compara
	assert.NotContains(t, scan.Consensus.SourcesUsed, "caesars")
	assert.Equal(t, "caesars", scan.Books[0].SourceID)
	assert.True(t, scan.Books[0].Edges.A.Opportunity)
	assert.InDelta(t, 0.012195, scan.Books[0].Edges.A.Edge, 1e-6)
	assert.False(t, scan.Books[0].Edges.B.Opportunity)
	assert.Equal(t, "draftkings", scan.Books[3].SourceID)
}

func TestWeightedFairValueScan_NoSources(t *testing.T) {
	_, err := WeightedFairValueScan(QuoteSet{"caesars": {PriceA: 105, PriceB: -125}}, DefaultWeightTable(), 0.01)
	assert.True(t, errors.Is(err, ErrNoSourcesAvailable))
}

// --- Estimadores ---

func TestEstimateProbabilities_Weighted(t *testing.T) {
	quotes := QuoteSet{
		"pinnacle":   {SourceID: "pinnacle", PriceA: 150, PriceB: -170},
		"draftkings": {SourceID: "draftkings", PriceA: 140, PriceB: -160},
	}
	est, err := EstimateProbabilities(quotes, DefaultWeightTable())
	require.NoError(t, err)

	assert.Equal(t, MethodWeightedConsensus, est.Method)
	require.NotNil(t, est.Consensus)
	assert.InDelta(t, 0.393576, est.ProbabilityA, 1e-6)
	// 0.3 + 0.3 + 0.2×0.75 + 0 (residual 3%)
	assert.InDelta(t, 0.75, est.Confidence, 1e-9)
}

func TestEstimateProbabilities_FallbackToAverage(t *testing.T) {
	quotes := QuoteSet{
		"betmgm":  {SourceID: "betmgm", PriceA: 200, PriceB: -250},
		"caesars": {SourceID: "caesars", PriceA: 180, PriceB: -220},
	}
	est, err := EstimateProbabilities(quotes, DefaultWeightTable())
	require.NoError(t, err)

	assert.Equal(t, MethodSimpleAverage, est.Method)
	assert.Equal(t, []string{"betmgm", "caesars"}, est.SourcesUsed)
	assert.InDelta(t, 0.330014, est.ProbabilityA, 1e-6)
	assert.InDelta(t, 0.669986, est.ProbabilityB, 1e-6)
	assert.InDelta(t, 0.046131, est.AverageVig, 1e-6)
	assert.InDelta(t, 0.2, est.Confidence, 1e-9)
	assert.Nil(t, est.Consensus)
}

func TestSimpleAverageEstimate_Empty(t *testing.T) {
	_, err := SimpleAverageEstimate(QuoteSet{})
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestSimpleAverageEstimate_ConfidenceCap(t *testing.T) {
	quotes := QuoteSet{}
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		quotes[id] = Quote{SourceID: id, PriceA: -110, PriceB: -110}
	}
	est, err := SimpleAverageEstimate(quotes)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, est.Confidence, 1e-9)
}

func TestNaiveEstimate(t *testing.T) {
	est := NaiveEstimate()
	assert.Equal(t, MethodNaive, est.Method)
	assert.Equal(t, 0.5, est.ProbabilityA)
	assert.Equal(t, 0.1, est.Confidence)
}

// --- Summarize ---

func TestSummarize(t *testing.T) {
	as := []EVAssessment{
		{TargetSourceID: "a", HasPositiveEV: true, ExpectedValuePer100: 2},
		{TargetSourceID: "b", HasPositiveEV: false, ExpectedValuePer100: 8, Divergences: []Divergence{{}}},
		{TargetSourceID: "c", HasPositiveEV: true, ExpectedValuePer100: 5},
	}
	s := Summarize(as)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.PositiveEV)
	assert.Equal(t, 1, s.WithDivergence)
	require.NotNil(t, s.Best)
	assert.Equal(t, "c", s.Best.TargetSourceID)
	assert.InDelta(t, 5.0, s.AverageEV, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Total)
	assert.Nil(t, s.Best)
}

func TestRankByEV(t *testing.T) {
	as := []EVAssessment{
		{TargetSourceID: "b", ExpectedValuePer100: 1},
		{TargetSourceID: "a", ExpectedValuePer100: 3},
		{TargetSourceID: "c", ExpectedValuePer100: 3, TargetOutcome: OutcomeB},
	}
	RankByEV(as)
	assert.Equal(t, "a", as[0].TargetSourceID)
	assert.Equal(t, "c", as[1].TargetSourceID)
	assert.Equal(t, "b", as[2].TargetSourceID)
}
