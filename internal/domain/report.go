package domain

import "time"

// OddsRequest es la consulta al proveedor de cuotas.
type OddsRequest struct {
	Sport   string
	Regions []string
	Markets []string
}

// OddsBatch es la respuesta del proveedor: eventos más metadatos de la llamada.
type OddsBatch struct {
	Events       []Event
	Quota        Quota
	ResponseTime time.Duration
}

// EventEvaluation agrupa todo lo calculado para un evento en un ciclo.
type EventEvaluation struct {
	Event         Event
	MarketKey     string
	Consensus     *ConsensusResult // nil si ninguna fuente ponderada cotiza
	Estimate      ProbabilityEstimate
	Confidence    float64
	Edges         []BookEdges // ventaja de cada casa contra el consenso
	Assessments   []EVAssessment
	Opportunities []Opportunity
	Failures      []SkippedSource // fuentes objetivo que no se pudieron evaluar
}

// PositiveEV devuelve solo las evaluaciones con EV positivo.
func (e EventEvaluation) PositiveEV() []EVAssessment {
	var out []EVAssessment
	for _, a := range e.Assessments {
		if a.HasPositiveEV {
			out = append(out, a)
		}
	}
	return out
}

// OutcomeName traduce A/B al nombre del outcome en el mercado evaluado.
func (e EventEvaluation) OutcomeName(o Outcome) string {
	names, ok := e.Event.OutcomeNames(e.MarketKey)
	if !ok {
		return o.String()
	}
	return names[o]
}

// CycleReport es el resultado de un ciclo completo de polling y evaluación.
type CycleReport struct {
	RunID       string
	Sport       string
	StartedAt   time.Time
	Duration    time.Duration
	Evaluations []EventEvaluation
	Quota       Quota
}

// Counts devuelve totales de evaluaciones, EV positivo y oportunidades.
func (r CycleReport) Counts() (assessments, positive, opportunities int) {
	for _, e := range r.Evaluations {
		assessments += len(e.Assessments)
		positive += len(e.PositiveEV())
		opportunities += len(e.Opportunities)
	}
	return assessments, positive, opportunities
}

// PollStatus es el resultado de un ciclo de polling.
type PollStatus string

const (
	PollSuccess PollStatus = "success"
	PollPartial PollStatus = "partial"
	PollError   PollStatus = "error"
)

// PollLog es el registro persistido de cada ciclo.
type PollLog struct {
	RunID          string
	Sport          string
	StartedAt      time.Time
	Duration       time.Duration
	Status         PollStatus
	EventsFetched  int
	SnapshotsSaved int
	Assessments    int
	PositiveEV     int
	Opportunities  int
	Quota          Quota
	ResponseTime   time.Duration
	Error          string
}

// StoredAssessment es una evaluación tal como se guarda y se sirve por la API.
type StoredAssessment struct {
	RunID                  string
	EventID                string
	EventName              string
	SportKey               string
	CommenceTime           time.Time
	MarketKey              string
	OutcomeName            string
	Outcome                Outcome
	SourceID               string
	LineClass              LineClass
	OfferedOdds            int
	OfferedProbability     float64
	FairSourceID           string
	FairOdds               float64
	FairProbability        float64
	RecommendedOdds        float64
	RecommendedProbability float64
	HasPositiveEV          bool
	ExpectedValuePer100    float64
	Divergences            int
	CalculatedAt           time.Time
}

// AssessmentFilter filtra las evaluaciones guardadas.
type AssessmentFilter struct {
	SportKey     string
	SourceID     string
	PositiveOnly bool
	MinEV        *float64
	Limit        int
	Offset       int
}

// Stats es el resumen global de la base de datos.
type Stats struct {
	Events         int
	UpcomingEvents int
	Bookmakers     int
	Snapshots      int
	Assessments    int
	PositiveEV     int
	LastPoll       *PollLog
}
