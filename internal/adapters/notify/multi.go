package notify

import (
	"context"
	"errors"

	"github.com/alejandrodnm/fairline/internal/domain"
	"github.com/alejandrodnm/fairline/internal/ports"
)

// Multi reparte el reporte entre varios notifiers. Un fallo no corta al resto.
type Multi []ports.Notifier

func (m Multi) Notify(ctx context.Context, report domain.CycleReport) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
