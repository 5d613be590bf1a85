package domain

// odds.go: primitivas de conversión de cuotas americanas.
//
//   +150 → 100/(150+100)  = 0.40
//   -150 → 150/(150+100)  = 0.60
//
// Las cuotas justas resultantes son float64 (ej: -112.85); las cuotas
// publicadas por las casas son enteros.

import (
	"fmt"
	"math"
)

// OddsToProbability convierte una cuota americana en probabilidad implícita.
func OddsToProbability(odds float64) (float64, error) {
	if odds == 0 || math.IsNaN(odds) || math.IsInf(odds, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidOdds, odds)
	}
	if odds > 0 {
		return 100 / (odds + 100), nil
	}
	abs := math.Abs(odds)
	return abs / (abs + 100), nil
}

// ProbabilityToOdds convierte una probabilidad en cuota americana.
// p == 0.5 devuelve +100 por convención.
func ProbabilityToOdds(p float64) (float64, error) {
	if !(p > 0 && p < 1) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidProbability, p)
	}
	switch {
	case p == 0.5:
		return 100, nil
	case p < 0.5:
		return 100/p - 100, nil
	default:
		return -(100/(1-p) - 100), nil
	}
}

// FairMarket es el resultado de quitar el vig a un mercado de dos lados.
type FairMarket struct {
	ImpliedA         float64
	ImpliedB         float64
	Total            float64
	FairProbabilityA float64
	FairProbabilityB float64
	FairOddsA        float64
	FairOddsB        float64
	VigPercentage    float64 // Total - 1
}

// Probability devuelve la probabilidad justa del outcome dado.
func (f FairMarket) Probability(o Outcome) float64 {
	if o == OutcomeB {
		return f.FairProbabilityB
	}
	return f.FairProbabilityA
}

// Odds devuelve la cuota justa del outcome dado.
func (f FairMarket) Odds(o Outcome) float64 {
	if o == OutcomeB {
		return f.FairOddsB
	}
	return f.FairOddsA
}

// RemoveVig normaliza las dos probabilidades implícitas para que sumen 1.
// Un mercado cuyo total no supera 1 devuelve ErrMarketDegenerate.
func RemoveVig(oddsA, oddsB int) (FairMarket, error) {
	pa, err := OddsToProbability(float64(oddsA))
	if err != nil {
		return FairMarket{}, fmt.Errorf("domain.RemoveVig: side A: %w", err)
	}
	pb, err := OddsToProbability(float64(oddsB))
	if err != nil {
		return FairMarket{}, fmt.Errorf("domain.RemoveVig: side B: %w", err)
	}

	total := pa + pb
	if total <= 1 {
		return FairMarket{}, fmt.Errorf("domain.RemoveVig: %w: total=%.6f", ErrMarketDegenerate, total)
	}

	fa := pa / total
	fb := pb / total

	oa, err := ProbabilityToOdds(fa)
	if err != nil {
		return FairMarket{}, fmt.Errorf("domain.RemoveVig: fair odds A: %w", err)
	}
	ob, err := ProbabilityToOdds(fb)
	if err != nil {
		return FairMarket{}, fmt.Errorf("domain.RemoveVig: fair odds B: %w", err)
	}

	return FairMarket{
		ImpliedA:         pa,
		ImpliedB:         pb,
		Total:            total,
		FairProbabilityA: fa,
		FairProbabilityB: fb,
		FairOddsA:        oa,
		FairOddsB:        ob,
		VigPercentage:    total - 1,
	}, nil
}

// VigPercentage devuelve el margen de la casa (total implícito - 1).
// No exige que el mercado tenga vig: un total < 1 da un valor negativo.
func VigPercentage(oddsA, oddsB int) (float64, error) {
	pa, err := OddsToProbability(float64(oddsA))
	if err != nil {
		return 0, err
	}
	pb, err := OddsToProbability(float64(oddsB))
	if err != nil {
		return 0, err
	}
	return pa + pb - 1, nil
}

// MoreFavorable indica si candidate paga más al apostador que best.
// Positiva mayor gana a positiva menor; negativa menos negativa gana a más
// negativa; cualquier positiva gana a cualquier negativa.
func MoreFavorable(candidate, best float64) bool {
	switch {
	case candidate > 0 && best > 0:
		return candidate > best
	case candidate < 0 && best < 0:
		return candidate > best
	case candidate > 0 && best < 0:
		return true
	default:
		return false
	}
}

// ProfitPer100 es la ganancia neta de apostar 100 a la cuota dada.
func ProfitPer100(odds float64) float64 {
	if odds > 0 {
		return odds
	}
	return 100 / (math.Abs(odds) / 100)
}
