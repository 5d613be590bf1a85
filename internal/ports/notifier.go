package ports

import (
	"context"

	"github.com/alejandrodnm/fairline/internal/domain"
)

// Notifier presenta el resultado de cada ciclo al usuario.
type Notifier interface {
	// Notify muestra las evaluaciones con EV positivo y las oportunidades.
	// En la implementación de consola, imprime una tabla formateada.
	Notify(ctx context.Context, report domain.CycleReport) error
}

// Publisher difunde el resultado de cada ciclo a otros servicios.
type Publisher interface {
	Publish(ctx context.Context, report domain.CycleReport) error
}
