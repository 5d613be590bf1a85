package domain

// consensus.go: probabilidad justa por consenso ponderado de fuentes.
//
// Los pesos nominales (pinnacle 50%, draftkings 25%, fanduel 25%) se
// renormalizan sobre las fuentes presentes: si falta fanduel, pinnacle pasa a
// pesar 0.5/0.75 ≈ 0.667 y draftkings 0.333.

import (
	"fmt"
	"sort"
)

// SourceTier clasifica una fuente para el score de confianza.
type SourceTier string

const (
	TierSharp SourceTier = "sharp" // líneas de bajo margen, referencia del mercado
	TierMajor SourceTier = "major"
	TierOther SourceTier = "other"
)

// SourceWeight es el peso nominal de una fuente y su tier.
type SourceWeight struct {
	Weight float64
	Tier   SourceTier
}

// WeightTable asigna un peso nominal a cada fuente de referencia.
type WeightTable map[string]SourceWeight

// DefaultWeightTable devuelve la tabla por defecto.
func DefaultWeightTable() WeightTable {
	return WeightTable{
		"pinnacle":   {Weight: 0.50, Tier: TierSharp},
		"draftkings": {Weight: 0.25, Tier: TierMajor},
		"fanduel":    {Weight: 0.25, Tier: TierMajor},
	}
}

// Tier devuelve el tier de la fuente, o TierOther si no está en la tabla.
func (wt WeightTable) Tier(source string) SourceTier {
	if w, ok := wt[source]; ok && w.Tier != "" {
		return w.Tier
	}
	return TierOther
}

// ConsensusResult es la probabilidad justa de consenso y sus metadatos de auditoría.
type ConsensusResult struct {
	FairProbabilityA float64
	FairProbabilityB float64
	FairOddsA        float64
	FairOddsB        float64

	// Sumas ponderadas antes de normalizar.
	WeightedProbabilityA float64
	WeightedProbabilityB float64

	SourcesUsed        []string
	WeightsApplied     map[string]float64 // pesos renormalizados, suman 1
	TotalNominalWeight float64            // suma de pesos nominales de las fuentes presentes
	ResidualMargin     float64            // total ponderado - 1
	PerSourceMargin    map[string]float64 // vig individual de cada fuente usada
}

// Probability devuelve la probabilidad de consenso del outcome dado.
func (r ConsensusResult) Probability(o Outcome) float64 {
	if o == OutcomeB {
		return r.FairProbabilityB
	}
	return r.FairProbabilityA
}

// Odds devuelve la cuota justa de consenso del outcome dado.
func (r ConsensusResult) Odds(o Outcome) float64 {
	if o == OutcomeB {
		return r.FairOddsB
	}
	return r.FairOddsA
}

// WeightedConsensus combina las cotizaciones de las fuentes de la tabla.
// Fuentes fuera de la tabla o con precios no convertibles se ignoran.
// Sin ninguna fuente utilizable devuelve ErrNoSourcesAvailable.
func WeightedConsensus(table WeightTable, quotes QuoteSet) (ConsensusResult, error) {
	type leg struct {
		source   string
		weight   float64
		impliedA float64
		impliedB float64
	}

	sources := make([]string, 0, len(table))
	for src := range table {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	legs := make([]leg, 0, len(sources))
	var totalWeight float64
	for _, src := range sources {
		w := table[src].Weight
		if w <= 0 {
			continue
		}
		q, ok := quotes[src]
		if !ok {
			continue
		}
		pa, err := OddsToProbability(float64(q.PriceA))
		if err != nil {
			continue
		}
		pb, err := OddsToProbability(float64(q.PriceB))
		if err != nil {
			continue
		}
		legs = append(legs, leg{source: src, weight: w, impliedA: pa, impliedB: pb})
		totalWeight += w
	}

	if len(legs) == 0 {
		return ConsensusResult{}, fmt.Errorf("domain.WeightedConsensus: %w", ErrNoSourcesAvailable)
	}

	res := ConsensusResult{
		SourcesUsed:        make([]string, 0, len(legs)),
		WeightsApplied:     make(map[string]float64, len(legs)),
		PerSourceMargin:    make(map[string]float64, len(legs)),
		TotalNominalWeight: totalWeight,
	}
	for _, l := range legs {
		applied := l.weight / totalWeight
		res.SourcesUsed = append(res.SourcesUsed, l.source)
		res.WeightsApplied[l.source] = applied
		res.PerSourceMargin[l.source] = l.impliedA + l.impliedB - 1
		res.WeightedProbabilityA += applied * l.impliedA
		res.WeightedProbabilityB += applied * l.impliedB
	}

	total := res.WeightedProbabilityA + res.WeightedProbabilityB
	res.ResidualMargin = total - 1
	res.FairProbabilityA = res.WeightedProbabilityA / total
	res.FairProbabilityB = res.WeightedProbabilityB / total

	var err error
	if res.FairOddsA, err = ProbabilityToOdds(res.FairProbabilityA); err != nil {
		return ConsensusResult{}, fmt.Errorf("domain.WeightedConsensus: fair odds A: %w", err)
	}
	if res.FairOddsB, err = ProbabilityToOdds(res.FairProbabilityB); err != nil {
		return ConsensusResult{}, fmt.Errorf("domain.WeightedConsensus: fair odds B: %w", err)
	}
	return res, nil
}
