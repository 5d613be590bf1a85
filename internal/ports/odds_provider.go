package ports

import (
	"context"

	"github.com/alejandrodnm/fairline/internal/domain"
)

// OddsProvider obtiene las cuotas de las casas desde la API externa.
type OddsProvider interface {
	// FetchOdds devuelve los eventos del deporte pedido con las cuotas de cada casa.
	// La respuesta incluye la cuota de requests restante informada por la API.
	FetchOdds(ctx context.Context, req domain.OddsRequest) (domain.OddsBatch, error)
}
