package domain

import (
	"fmt"
	"math"
	"sort"
)

// ExpectedValue es el EV de apostar stake a la cuota dada con probabilidad real p.
//
//	EV = p × profit - (1 - p) × stake
//
// Ejemplo: p=0.55 a +120 con stake 100 → 21.0
func ExpectedValue(p float64, odds float64, stake float64) (float64, error) {
	if !(p > 0 && p < 1) {
		return 0, fmt.Errorf("domain.ExpectedValue: %w: %v", ErrInvalidProbability, p)
	}
	if stake <= 0 {
		return 0, fmt.Errorf("domain.ExpectedValue: stake must be positive, got %v", stake)
	}
	if odds == 0 || math.IsNaN(odds) || math.IsInf(odds, 0) {
		return 0, fmt.Errorf("domain.ExpectedValue: %w: %v", ErrInvalidOdds, odds)
	}
	profit := stake * ProfitPer100(odds) / 100
	return p*profit - (1-p)*stake, nil
}

// PositiveEVCheck compara una probabilidad estimada contra una cuota ofrecida.
type PositiveEVCheck struct {
	HasPositiveEV      bool
	ExpectedValue      float64 // por 100 apostados
	EVPerDollar        float64
	FairOdds           float64
	OfferedOdds        float64
	TrueProbability    float64
	ImpliedProbability float64
	Edge               float64 // TrueProbability - ImpliedProbability
}

// DetectPositiveEV evalúa una cuota ofrecida contra la probabilidad estimada.
func DetectPositiveEV(trueProbability, offeredOdds float64) (PositiveEVCheck, error) {
	ev, err := ExpectedValue(trueProbability, offeredOdds, 100)
	if err != nil {
		return PositiveEVCheck{}, err
	}
	fair, err := ProbabilityToOdds(trueProbability)
	if err != nil {
		return PositiveEVCheck{}, err
	}
	implied, err := OddsToProbability(offeredOdds)
	if err != nil {
		return PositiveEVCheck{}, err
	}
	return PositiveEVCheck{
		HasPositiveEV:      ev > 0,
		ExpectedValue:      ev,
		EVPerDollar:        ev / 100,
		FairOdds:           fair,
		OfferedOdds:        offeredOdds,
		TrueProbability:    trueProbability,
		ImpliedProbability: implied,
		Edge:               trueProbability - implied,
	}, nil
}

// SideEdge es la ventaja de un lado del mercado frente a su cuota justa.
type SideEdge struct {
	MarketOdds  float64
	FairOdds    float64
	Edge        float64 // prob justa - prob implícita de mercado
	Opportunity bool    // Edge > threshold
}

// ValueEdges es el análisis de los dos lados de una cotización.
type ValueEdges struct {
	A         SideEdge
	B         SideEdge
	Threshold float64
}

// FairValueEdges compara una cotización con un par de cuotas justas.
// (-110, -110) contra (+100, +100) da edge ≈ -0.0238 en cada lado.
func FairValueEdges(market [2]float64, fair [2]float64, threshold float64) (ValueEdges, error) {
	var sides [2]SideEdge
	for i := range sides {
		mp, err := OddsToProbability(market[i])
		if err != nil {
			return ValueEdges{}, fmt.Errorf("domain.FairValueEdges: market side %d: %w", i, err)
		}
		fp, err := OddsToProbability(fair[i])
		if err != nil {
			return ValueEdges{}, fmt.Errorf("domain.FairValueEdges: fair side %d: %w", i, err)
		}
		edge := fp - mp
		sides[i] = SideEdge{
			MarketOdds:  market[i],
			FairOdds:    fair[i],
			Edge:        edge,
			Opportunity: edge > threshold,
		}
	}
	return ValueEdges{A: sides[0], B: sides[1], Threshold: threshold}, nil
}

// BookEdges son las ventajas de una fuente contra el consenso ponderado.
type BookEdges struct {
	SourceID string
	Edges    ValueEdges
}

// WeightedScan es el resultado de comparar todas las fuentes contra el consenso.
type WeightedScan struct {
	Consensus ConsensusResult
	Books     []BookEdges
	Skipped   []SkippedSource
}

// WeightedFairValueScan calcula el consenso con la tabla y compara cada fuente
// del conjunto (también las que no tienen peso) contra sus cuotas justas.
func WeightedFairValueScan(quotes QuoteSet, table WeightTable, threshold float64) (WeightedScan, error) {
	cons, err := WeightedConsensus(table, quotes)
	if err != nil {
		return WeightedScan{}, err
	}

	out := WeightedScan{Consensus: cons}
	fair := [2]float64{cons.FairOddsA, cons.FairOddsB}

	ids := quotes.SortedSourceIDs()
	for _, id := range ids {
		q := quotes[id]
		edges, err := FairValueEdges([2]float64{float64(q.PriceA), float64(q.PriceB)}, fair, threshold)
		if err != nil {
			out.Skipped = append(out.Skipped, SkippedSource{SourceID: id, Reason: err.Error()})
			continue
		}
		out.Books = append(out.Books, BookEdges{SourceID: id, Edges: edges})
	}
	sort.SliceStable(out.Books, func(i, j int) bool {
		return maxEdge(out.Books[i].Edges) > maxEdge(out.Books[j].Edges)
	})
	return out, nil
}

func maxEdge(e ValueEdges) float64 {
	return math.Max(e.A.Edge, e.B.Edge)
}
