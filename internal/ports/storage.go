package ports

import (
	"context"

	"github.com/alejandrodnm/fairline/internal/domain"
)

// Storage persiste eventos, snapshots de cuotas, evaluaciones y logs de polling.
type Storage interface {
	// Bookmakers devuelve el registro de casas (activas o no).
	Bookmakers(ctx context.Context) ([]domain.Bookmaker, error)

	// SaveEvents hace upsert de los eventos y guarda un snapshot por casa y mercado.
	// Devuelve el número de snapshots escritos (los que no cambiaron se omiten).
	SaveEvents(ctx context.Context, events []domain.Event) (int, error)

	// SaveReport persiste todas las evaluaciones del ciclo.
	SaveReport(ctx context.Context, report domain.CycleReport) error

	// SavePollLog registra el resultado del ciclo.
	SavePollLog(ctx context.Context, log domain.PollLog) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}

// Reader expone las consultas de solo lectura que sirve la API HTTP.
type Reader interface {
	UpcomingEvents(ctx context.Context, limit int) ([]domain.Event, error)
	Assessments(ctx context.Context, f domain.AssessmentFilter) ([]domain.StoredAssessment, int, error)
	RecentPollLogs(ctx context.Context, limit int) ([]domain.PollLog, error)
	Stats(ctx context.Context) (domain.Stats, error)
	Bookmakers(ctx context.Context) ([]domain.Bookmaker, error)
}
