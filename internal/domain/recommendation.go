package domain

import (
	"fmt"
	"math"
)

// maxRecommendedProbability limita la probabilidad tras buffer.
const maxRecommendedProbability = 0.99

// PricingConfig agrupa las tasas que usa el evaluador. Se pasa por valor;
// no hay estado global.
type PricingConfig struct {
	FeeRate              float64 // comisión del exchange P2P sobre la ganancia
	MainBuffer           float64 // margen de seguridad para líneas principales
	AlternateBuffer      float64 // margen de seguridad para líneas alternativas
	DivergenceThreshold  float64 // gap de probabilidad a partir del cual se marca divergencia
	OpportunityThreshold float64 // umbral relativo del agregador
}

// DefaultPricingConfig devuelve fee 2%, buffers 2%/3%, divergencia 5%, oportunidad 1%.
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		FeeRate:              0.02,
		MainBuffer:           0.02,
		AlternateBuffer:      0.03,
		DivergenceThreshold:  0.05,
		OpportunityThreshold: 0.01,
	}
}

// Buffer devuelve el buffer que corresponde a la clase de línea.
func (c PricingConfig) Buffer(lc LineClass) float64 {
	if lc == LineAlternate {
		return c.AlternateBuffer
	}
	return c.MainBuffer
}

// Validate rechaza configuraciones que romperían las fórmulas.
func (c PricingConfig) Validate() error {
	if c.FeeRate < 0 || c.FeeRate >= 1 || math.IsNaN(c.FeeRate) {
		return fmt.Errorf("domain.PricingConfig: fee_rate %v outside [0, 1)", c.FeeRate)
	}
	if c.MainBuffer < 0 || c.AlternateBuffer < 0 {
		return fmt.Errorf("domain.PricingConfig: negative buffer (main=%v alternate=%v)", c.MainBuffer, c.AlternateBuffer)
	}
	if c.DivergenceThreshold <= 0 {
		return fmt.Errorf("domain.PricingConfig: divergence_threshold must be > 0, got %v", c.DivergenceThreshold)
	}
	if c.OpportunityThreshold < 0 {
		return fmt.Errorf("domain.PricingConfig: opportunity_threshold must be >= 0, got %v", c.OpportunityThreshold)
	}
	return nil
}

// Recommendation es la cuota mínima aceptable tras fee y buffer.
type Recommendation struct {
	FairProbability        float64
	ProbabilityAfterFee    float64
	ProbabilityAfterBuffer float64
	RecommendedMinimumOdds float64
	FeeRate                float64
	BufferRate             float64
	LineClass              LineClass
}

// Recommend aplica fee y buffer sobre una cuota justa:
//
//	p     = prob(fairOdds)
//	p_fee = p / (1 - fee)
//	p_buf = min(p_fee + buffer, 0.99)
func Recommend(fairOdds float64, lc LineClass, cfg PricingConfig) (Recommendation, error) {
	if err := cfg.Validate(); err != nil {
		return Recommendation{}, fmt.Errorf("domain.Recommend: %w", err)
	}
	p, err := OddsToProbability(fairOdds)
	if err != nil {
		return Recommendation{}, fmt.Errorf("domain.Recommend: %w", err)
	}

	buffer := cfg.Buffer(lc)
	pFee := p / (1 - cfg.FeeRate)
	pBuf := math.Min(pFee+buffer, maxRecommendedProbability)

	odds, err := ProbabilityToOdds(pBuf)
	if err != nil {
		return Recommendation{}, fmt.Errorf("domain.Recommend: %w", err)
	}

	return Recommendation{
		FairProbability:        p,
		ProbabilityAfterFee:    pFee,
		ProbabilityAfterBuffer: pBuf,
		RecommendedMinimumOdds: odds,
		FeeRate:                cfg.FeeRate,
		BufferRate:             buffer,
		LineClass:              lc,
	}, nil
}
