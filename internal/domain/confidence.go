package domain

import "math"

// ConfidenceScore puntúa la calidad de un consenso entre 0 y 1.
//
//	fuentes:  ≥3 → 0.4 | 2 → 0.3 | 1 → 0.2
//	tier:     sharp presente → +0.3, si no major presente → +0.15
//	cobertura: +0.2 × min(1, peso nominal total)
//	margen:   |residual| < 1% → +0.1, < 2% → +0.05
func ConfidenceScore(res ConsensusResult, table WeightTable) float64 {
	if len(res.SourcesUsed) == 0 {
		return 0
	}

	var score float64

	switch n := len(res.SourcesUsed); {
	case n >= 3:
		score += 0.4
	case n == 2:
		score += 0.3
	case n == 1:
		score += 0.2
	}

	var hasSharp, hasMajor bool
	for _, src := range res.SourcesUsed {
		switch table.Tier(src) {
		case TierSharp:
			hasSharp = true
		case TierMajor:
			hasMajor = true
		}
	}
	if hasSharp {
		score += 0.3
	} else if hasMajor {
		score += 0.15
	}

	score += 0.2 * math.Min(1, math.Max(0, res.TotalNominalWeight))

	residual := math.Abs(res.ResidualMargin)
	if residual < 0.01 {
		score += 0.1
	} else if residual < 0.02 {
		score += 0.05
	}

	return math.Max(0, math.Min(1, score))
}
