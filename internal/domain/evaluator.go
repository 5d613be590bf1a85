package domain

// evaluator.go: evaluación de EV para una fuente objetivo en 7 pasos.
//
//   1. Baseline: el precio más favorable entre todas las fuentes.
//   2. Quitar el vig fuente por fuente (las fuentes inválidas se registran y se saltan).
//   3. Mejor línea justa del outcome.
//   4. Ajuste por fee P2P.
//   5. Buffer según clase de línea → cuota mínima recomendada.
//   6. Decisión de EV: offered_prob < recommended_prob.
//   7. Divergencias de probabilidad contra el resto de fuentes.

import (
	"fmt"
	"math"
)

// PricePoint es el precio de una fuente para un outcome.
type PricePoint struct {
	SourceID    string
	Odds        float64
	Probability float64
}

// FairLine es la línea sin vig de una fuente (paso 2).
type FairLine struct {
	SourceID string
	Market   FairMarket
}

// SkippedSource registra una fuente descartada en el paso 2.
type SkippedSource struct {
	SourceID string
	Reason   string
}

// Divergence es una fuente cuya probabilidad implícita se aleja de la del objetivo.
type Divergence struct {
	OtherSourceID    string
	OtherOdds        int
	OtherProbability float64
	ProbabilityGap   float64
	TargetIsBetter   bool // el objetivo paga más (menor probabilidad implícita)
}

// EVAssessment es el resultado completo de evaluar una fuente para un outcome.
type EVAssessment struct {
	TargetSourceID         string
	TargetOutcome          Outcome
	LineClass              LineClass
	OfferedOdds            int
	OfferedProbability     float64
	RecommendedProbability float64
	RecommendedMinimumOdds float64
	HasPositiveEV          bool
	ExpectedValuePer100    float64
	Divergences            []Divergence

	// Auditoría de los pasos intermedios.
	Baseline       PricePoint
	FairLines      []FairLine
	SkippedSources []SkippedSource
	BestFair       PricePoint
	Recommendation Recommendation
}

// Evaluate ejecuta los 7 pasos para target y outcome sobre el conjunto de cotizaciones.
//
// Devuelve ErrSourceNotFound si target no está en quotes y ErrInsufficientData si
// ninguna fuente produce una línea justa.
func Evaluate(quotes QuoteSet, target string, outcome Outcome, lc LineClass, cfg PricingConfig) (EVAssessment, error) {
	targetQuote, ok := quotes[target]
	if !ok {
		return EVAssessment{}, fmt.Errorf("domain.Evaluate: %w: %q", ErrSourceNotFound, target)
	}

	offered := targetQuote.Price(outcome)
	offeredProb, err := OddsToProbability(float64(offered))
	if err != nil {
		return EVAssessment{}, fmt.Errorf("domain.Evaluate: target %q offered price: %w", target, err)
	}

	ids := quotes.SortedSourceIDs()

	// Paso 1: baseline. Empieza en el objetivo y solo se reemplaza si otra fuente
	// es estrictamente mejor, así los empates se quedan con el objetivo.
	baseline := PricePoint{SourceID: target, Odds: float64(offered), Probability: offeredProb}
	for _, id := range ids {
		price := quotes[id].Price(outcome)
		if price == 0 || !MoreFavorable(float64(price), baseline.Odds) {
			continue
		}
		p, err := OddsToProbability(float64(price))
		if err != nil {
			continue
		}
		baseline = PricePoint{SourceID: id, Odds: float64(price), Probability: p}
	}

	// Paso 2: líneas justas por fuente.
	var fairLines []FairLine
	var skipped []SkippedSource
	for _, id := range ids {
		q := quotes[id]
		fm, err := RemoveVig(q.PriceA, q.PriceB)
		if err != nil {
			if !isPerSourceError(err) {
				return EVAssessment{}, fmt.Errorf("domain.Evaluate: source %q: %w", id, err)
			}
			skipped = append(skipped, SkippedSource{SourceID: id, Reason: err.Error()})
			continue
		}
		fairLines = append(fairLines, FairLine{SourceID: id, Market: fm})
	}

	// Paso 3: mejor línea justa para el outcome.
	if len(fairLines) == 0 {
		return EVAssessment{}, fmt.Errorf("domain.Evaluate: %w (%d sources skipped)", ErrInsufficientData, len(skipped))
	}
	best := PricePoint{
		SourceID:    fairLines[0].SourceID,
		Odds:        fairLines[0].Market.Odds(outcome),
		Probability: fairLines[0].Market.Probability(outcome),
	}
	for _, fl := range fairLines[1:] {
		odds := fl.Market.Odds(outcome)
		if MoreFavorable(odds, best.Odds) {
			best = PricePoint{SourceID: fl.SourceID, Odds: odds, Probability: fl.Market.Probability(outcome)}
		}
	}

	// Pasos 4-5: fee y buffer.
	rec, err := Recommend(best.Odds, lc, cfg)
	if err != nil {
		return EVAssessment{}, fmt.Errorf("domain.Evaluate: %w", err)
	}

	// Paso 6: EV sobre la probabilidad justa previa al buffer.
	ev := best.Probability*ProfitPer100(float64(offered)) - (1-best.Probability)*100

	// Paso 7: divergencias.
	var divergences []Divergence
	for _, id := range ids {
		if id == target {
			continue
		}
		price := quotes[id].Price(outcome)
		p, err := OddsToProbability(float64(price))
		if err != nil {
			continue
		}
		gap := math.Abs(offeredProb - p)
		if gap > cfg.DivergenceThreshold {
			divergences = append(divergences, Divergence{
				OtherSourceID:    id,
				OtherOdds:        price,
				OtherProbability: p,
				ProbabilityGap:   gap,
				TargetIsBetter:   offeredProb < p,
			})
		}
	}

	return EVAssessment{
		TargetSourceID:         target,
		TargetOutcome:          outcome,
		LineClass:              lc,
		OfferedOdds:            offered,
		OfferedProbability:     offeredProb,
		RecommendedProbability: rec.ProbabilityAfterBuffer,
		RecommendedMinimumOdds: rec.RecommendedMinimumOdds,
		HasPositiveEV:          offeredProb < rec.ProbabilityAfterBuffer,
		ExpectedValuePer100:    ev,
		Divergences:            divergences,
		Baseline:               baseline,
		FairLines:              fairLines,
		SkippedSources:         skipped,
		BestFair:               best,
		Recommendation:         rec,
	}, nil
}

// EvaluateMarket evalúa ambos outcomes de la fuente objetivo.
func EvaluateMarket(quotes QuoteSet, target string, lc LineClass, cfg PricingConfig) ([2]EVAssessment, error) {
	var out [2]EVAssessment
	for i, o := range []Outcome{OutcomeA, OutcomeB} {
		a, err := Evaluate(quotes, target, o, lc, cfg)
		if err != nil {
			return out, err
		}
		out[i] = a
	}
	return out, nil
}
