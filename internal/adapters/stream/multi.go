package stream

import (
	"context"
	"errors"

	"github.com/alejandrodnm/fairline/internal/domain"
	"github.com/alejandrodnm/fairline/internal/ports"
)

// Multi publica el mismo reporte en varios destinos. Un fallo no corta al resto.
type Multi []ports.Publisher

func (m Multi) Publish(ctx context.Context, report domain.CycleReport) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
