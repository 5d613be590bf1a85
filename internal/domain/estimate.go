package domain

import (
	"errors"
	"fmt"
	"math"
)

// EstimationMethod indica de dónde sale una estimación de probabilidad.
type EstimationMethod string

const (
	MethodWeightedConsensus EstimationMethod = "weighted_market_consensus"
	MethodSimpleAverage     EstimationMethod = "simple_market_average"
	MethodNaive             EstimationMethod = "naive_equal_split"
)

// ProbabilityEstimate es la probabilidad estimada de ambos lados con su confianza.
type ProbabilityEstimate struct {
	ProbabilityA float64
	ProbabilityB float64
	Method       EstimationMethod
	SourcesUsed  []string
	Confidence   float64
	Consensus    *ConsensusResult // solo con MethodWeightedConsensus
	AverageVig   float64          // solo con MethodSimpleAverage
}

// EstimateProbabilities intenta el consenso ponderado y, si ninguna fuente de la
// tabla cotiza, cae a la media simple de todas las fuentes.
func EstimateProbabilities(quotes QuoteSet, table WeightTable) (ProbabilityEstimate, error) {
	cons, err := WeightedConsensus(table, quotes)
	if err == nil {
		return ProbabilityEstimate{
			ProbabilityA: cons.FairProbabilityA,
			ProbabilityB: cons.FairProbabilityB,
			Method:       MethodWeightedConsensus,
			SourcesUsed:  cons.SourcesUsed,
			Confidence:   ConfidenceScore(cons, table),
			Consensus:    &cons,
		}, nil
	}
	if !errors.Is(err, ErrNoSourcesAvailable) {
		return ProbabilityEstimate{}, err
	}
	return SimpleAverageEstimate(quotes)
}

// SimpleAverageEstimate promedia las probabilidades implícitas de todas las
// fuentes válidas y normaliza. Confianza = min(0.6, 0.1 × fuentes).
func SimpleAverageEstimate(quotes QuoteSet) (ProbabilityEstimate, error) {
	var sumA, sumB float64
	var used []string
	for _, id := range quotes.SortedSourceIDs() {
		q := quotes[id]
		pa, err := OddsToProbability(float64(q.PriceA))
		if err != nil {
			continue
		}
		pb, err := OddsToProbability(float64(q.PriceB))
		if err != nil {
			continue
		}
		sumA += pa
		sumB += pb
		used = append(used, id)
	}
	if len(used) == 0 {
		return ProbabilityEstimate{}, fmt.Errorf("domain.SimpleAverageEstimate: %w", ErrInsufficientData)
	}

	n := float64(len(used))
	avgA, avgB := sumA/n, sumB/n
	total := avgA + avgB
	return ProbabilityEstimate{
		ProbabilityA: avgA / total,
		ProbabilityB: avgB / total,
		Method:       MethodSimpleAverage,
		SourcesUsed:  used,
		Confidence:   math.Min(0.6, 0.1*n),
		AverageVig:   total - 1,
	}, nil
}

// NaiveEstimate es el último recurso: 50/50 con confianza 0.1.
func NaiveEstimate() ProbabilityEstimate {
	return ProbabilityEstimate{
		ProbabilityA: 0.5,
		ProbabilityB: 0.5,
		Method:       MethodNaive,
		Confidence:   0.1,
	}
}
