package domain

import "sort"

// Summary resume un lote de evaluaciones.
type Summary struct {
	Total          int
	PositiveEV     int
	WithDivergence int
	Best           *EVAssessment // mayor EV por 100 entre las positivas
	AverageEV      float64
}

// Summarize cuenta evaluaciones positivas y elige la mejor.
func Summarize(assessments []EVAssessment) Summary {
	s := Summary{Total: len(assessments)}
	if len(assessments) == 0 {
		return s
	}

	var sum float64
	for i := range assessments {
		a := &assessments[i]
		sum += a.ExpectedValuePer100
		if len(a.Divergences) > 0 {
			s.WithDivergence++
		}
		if !a.HasPositiveEV {
			continue
		}
		s.PositiveEV++
		if s.Best == nil || a.ExpectedValuePer100 > s.Best.ExpectedValuePer100 {
			best := *a
			s.Best = &best
		}
	}
	s.AverageEV = sum / float64(len(assessments))
	return s
}

// RankByEV ordena de mayor a menor EV; a igual EV, por fuente y outcome.
func RankByEV(assessments []EVAssessment) {
	sort.SliceStable(assessments, func(i, j int) bool {
		a, b := assessments[i], assessments[j]
		if a.ExpectedValuePer100 != b.ExpectedValuePer100 {
			return a.ExpectedValuePer100 > b.ExpectedValuePer100
		}
		if a.TargetSourceID != b.TargetSourceID {
			return a.TargetSourceID < b.TargetSourceID
		}
		return a.TargetOutcome < b.TargetOutcome
	})
}
