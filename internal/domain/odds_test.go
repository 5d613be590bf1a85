package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOddsToProbability_Positive(t *testing.T) {
	p, err := OddsToProbability(150)
	require.NoError(t, err)
	assert.InDelta(t, 0.40, p, 1e-9)
}

func TestOddsToProbability_Negative(t *testing.T) {
	p, err := OddsToProbability(-150)
	require.NoError(t, err)
	assert.InDelta(t, 0.60, p, 1e-9)
}

func TestOddsToProbability_EvenMoney(t *testing.T) {
	pPos, err := OddsToProbability(100)
	require.NoError(t, err)
	pNeg, err := OddsToProbability(-100)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, pPos, 1e-12)
	assert.InDelta(t, 0.5, pNeg, 1e-12)
}

func TestOddsToProbability_Invalid(t *testing.T) {
	for _, odds := range []float64{0, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := OddsToProbability(odds)
		assert.True(t, errors.Is(err, ErrInvalidOdds), "odds=%v", odds)
	}
}

func TestProbabilityToOdds(t *testing.T) {
	tests := []struct {
		p    float64
		want float64
	}{
		{0.5, 100},
		{0.4, 150},
		{0.6, -150},
		{0.25, 300},
		{0.8, -400},
	}
	for _, tt := range tests {
		got, err := ProbabilityToOdds(tt.p)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9, "p=%v", tt.p)
	}
}

func TestProbabilityToOdds_OutOfRange(t *testing.T) {
	for _, p := range []float64{0, 1, -0.1, 1.5, math.NaN()} {
		_, err := ProbabilityToOdds(p)
		assert.True(t, errors.Is(err, ErrInvalidProbability), "p=%v", p)
	}
}

func TestRoundTrip_OddsProbabilityOdds(t *testing.T) {
	for _, o := range []float64{100, 101, 110, 150, 250, 1000, -101, -110, -150, -250, -1000} {
		p, err := OddsToProbability(o)
		require.NoError(t, err)
		back, err := ProbabilityToOdds(p)
		require.NoError(t, err)
		assert.InDelta(t, o, back, 1e-6, "odds=%v", o)
	}

	// -100 y +100 son la misma probabilidad; la vuelta siempre da +100.
	p, err := OddsToProbability(-100)
	require.NoError(t, err)
	back, err := ProbabilityToOdds(p)
	require.NoError(t, err)
	assert.Equal(t, 100.0, back)
}

func TestRoundTrip_ProbabilityOddsProbability(t *testing.T) {
	for _, p := range []float64{0.01, 0.1, 0.333, 0.5, 0.51, 0.75, 0.99} {
		o, err := ProbabilityToOdds(p)
		require.NoError(t, err)
		back, err := OddsToProbability(o)
		require.NoError(t, err)
		assert.InDelta(t, p, back, 1e-9, "p=%v", p)
	}
}

func TestRemoveVig_Example(t *testing.T) {
	fm, err := RemoveVig(113, -123)
	require.NoError(t, err)

	assert.InDelta(t, 0.4694836, fm.ImpliedA, 1e-6)
	assert.InDelta(t, 0.5515695, fm.ImpliedB, 1e-6)
	assert.InDelta(t, 0.45980, fm.FairProbabilityA, 1e-5)
	assert.InDelta(t, 0.54020, fm.FairProbabilityB, 1e-5)
	assert.InDelta(t, 0.02105, fm.VigPercentage, 1e-5)
	assert.InDelta(t, 1.0, fm.FairProbabilityA+fm.FairProbabilityB, 1e-9)
	assert.InDelta(t, 117.484, fm.FairOddsA, 1e-3)
	assert.InDelta(t, -117.484, fm.FairOddsB, 1e-3)
}

func TestRemoveVig_Degenerate(t *testing.T) {
	// +110/+105: total implícito 0.964, no hay vig
	_, err := RemoveVig(110, 105)
	assert.True(t, errors.Is(err, ErrMarketDegenerate))

	// exactamente 1 también es degenerado
	_, err = RemoveVig(100, -100)
	assert.True(t, errors.Is(err, ErrMarketDegenerate))
}

func TestRemoveVig_InvalidOdds(t *testing.T) {
	_, err := RemoveVig(0, -110)
	assert.True(t, errors.Is(err, ErrInvalidOdds))
}

func TestVigPercentage(t *testing.T) {
	v, err := VigPercentage(-110, -110)
	require.NoError(t, err)
	assert.InDelta(t, 0.047619, v, 1e-6)

	v, err = VigPercentage(110, 105)
	require.NoError(t, err)
	assert.Less(t, v, 0.0)
}

func TestMoreFavorable(t *testing.T) {
	tests := []struct {
		name      string
		candidate float64
		best      float64
		want      bool
	}{
		{"larger positive", 150, 120, true},
		{"smaller positive", 120, 150, false},
		{"less negative", -105, -120, true},
		{"more negative", -130, -120, false},
		{"positive beats negative", 100, -105, true},
		{"negative loses to positive", -105, 100, false},
		{"equal", 110, 110, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MoreFavorable(tt.candidate, tt.best))
		})
	}
}

func TestProfitPer100(t *testing.T) {
	assert.InDelta(t, 120.0, ProfitPer100(120), 1e-9)
	assert.InDelta(t, 50.0, ProfitPer100(-200), 1e-9)
	assert.InDelta(t, 90.909, ProfitPer100(-110), 1e-3)
}
