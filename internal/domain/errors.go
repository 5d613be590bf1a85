package domain

import "errors"

// Errores del núcleo. Siempre se envuelven con fmt.Errorf("...: %w") y se
// comparan con errors.Is.
var (
	// ErrInvalidOdds: cuota americana igual a 0 o no finita.
	ErrInvalidOdds = errors.New("invalid american odds")

	// ErrInvalidProbability: probabilidad fuera del intervalo abierto (0, 1).
	ErrInvalidProbability = errors.New("probability outside (0, 1)")

	// ErrMarketDegenerate: las probabilidades implícitas suman <= 1, no hay vig que quitar.
	ErrMarketDegenerate = errors.New("market degenerate: implied total does not exceed 1")

	// ErrNoSourcesAvailable: ninguna fuente ponderada tiene una cotización válida.
	ErrNoSourcesAvailable = errors.New("no weighted sources available")

	// ErrInsufficientData: ninguna fuente produjo una línea justa válida.
	ErrInsufficientData = errors.New("insufficient data: no valid fair line")

	// ErrSourceNotFound: la fuente objetivo no está en el conjunto de cotizaciones.
	ErrSourceNotFound = errors.New("target source not found")

	// ErrCycleInProgress: ya hay un ciclo de evaluación en marcha.
	ErrCycleInProgress = errors.New("evaluation cycle already running")
)

// isPerSourceError indica si el error afecta solo a una fuente y puede saltarse.
func isPerSourceError(err error) bool {
	return errors.Is(err, ErrInvalidOdds) ||
		errors.Is(err, ErrInvalidProbability) ||
		errors.Is(err, ErrMarketDegenerate)
}
