package evaluator

// concurrent.go: worker pool para evaluar eventos en paralelo.
//
// Cada evento se evalúa entero en un worker (todas las casas, ambos outcomes).
// El resultado se reordena por hora de inicio para que la salida sea estable.

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/alejandrodnm/fairline/internal/domain"
)

// evaluateEventsConcurrent evalúa los eventos usando un worker pool.
// Si workers <= 0 usa runtime.NumCPU() × 2.
func evaluateEventsConcurrent(
	ctx context.Context,
	analyzer *Analyzer,
	events []domain.Event,
	scan domain.OpportunityScan,
	workers int,
) []domain.EventEvaluation {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	workCh := make(chan domain.Event, len(events))
	resultCh := make(chan domain.EventEvaluation, len(events))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range workCh {
				if ctx.Err() != nil {
					continue // drenar sin evaluar
				}
				res, err := analyzer.Analyze(ev, scan)
				if err != nil {
					level := slog.LevelWarn
					if errors.Is(err, errTooFewSources) {
						level = slog.LevelDebug
					}
					slog.Log(ctx, level, "event skipped", "event", ev.Name(), "id", ev.ExternalID, "err", err)
					continue
				}
				resultCh <- res
			}
		}()
	}

	for _, ev := range events {
		workCh <- ev
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	out := make([]domain.EventEvaluation, 0, len(events))
	for res := range resultCh {
		out = append(out, res)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Event, out[j].Event
		if !a.CommenceTime.Equal(b.CommenceTime) {
			return a.CommenceTime.Before(b.CommenceTime)
		}
		return a.ExternalID < b.ExternalID
	})

	slog.Debug("concurrent evaluation complete",
		"events_queued", len(events),
		"evaluated", len(out),
		"workers", workers,
	)
	return out
}
