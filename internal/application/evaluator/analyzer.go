package evaluator

import (
	"errors"
	"fmt"

	"github.com/alejandrodnm/fairline/internal/domain"
)

// errTooFewSources indica que el evento no tiene suficientes cotizaciones válidas.
var errTooFewSources = errors.New("too few valid sources")

// Analyzer evalúa un evento completo: consenso, EV por casa y oportunidades.
type Analyzer struct {
	marketKey  string
	lineClass  domain.LineClass
	pricing    domain.PricingConfig
	weights    domain.WeightTable
	minSources int
}

// NewAnalyzer crea un Analyzer. minSources < 2 se eleva a 2: con una sola
// fuente no hay referencia contra la que comparar.
func NewAnalyzer(marketKey string, lc domain.LineClass, pricing domain.PricingConfig, weights domain.WeightTable, minSources int) *Analyzer {
	if minSources < 2 {
		minSources = 2
	}
	return &Analyzer{
		marketKey:  marketKey,
		lineClass:  lc,
		pricing:    pricing,
		weights:    weights,
		minSources: minSources,
	}
}

// Analyze evalúa todas las casas del evento en ambos outcomes.
// Una casa que falla se registra en Failures y no aborta el evento.
func (a *Analyzer) Analyze(ev domain.Event, scan domain.OpportunityScan) (domain.EventEvaluation, error) {
	out := domain.EventEvaluation{Event: ev, MarketKey: a.marketKey}

	quotes := ev.QuoteSet(a.marketKey)
	if n := quotes.ValidCount(); n < a.minSources {
		return out, fmt.Errorf("evaluator.Analyze: %s: %w (%d < %d)", ev.ExternalID, errTooFewSources, n, a.minSources)
	}

	est, err := domain.EstimateProbabilities(quotes, a.weights)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInsufficientData):
		// Ninguna cotización convertible: 50/50 para no dejar el evento sin estimación
		est = domain.NaiveEstimate()
	default:
		return out, fmt.Errorf("evaluator.Analyze: %s: estimate: %w", ev.ExternalID, err)
	}
	out.Estimate = est
	out.Consensus = est.Consensus
	out.Confidence = est.Confidence

	if out.Consensus != nil {
		edges, err := domain.WeightedFairValueScan(quotes, a.weights, a.pricing.OpportunityThreshold)
		if err == nil {
			out.Edges = edges.Books
		}
	}

	for _, target := range quotes.SortedSourceIDs() {
		pair, err := domain.EvaluateMarket(quotes, target, a.lineClass, a.pricing)
		if err != nil {
			out.Failures = append(out.Failures, domain.SkippedSource{SourceID: target, Reason: err.Error()})
			continue
		}
		out.Assessments = append(out.Assessments, pair[0], pair[1])
	}

	out.Opportunities = scan.Find(ev)
	return out, nil
}
