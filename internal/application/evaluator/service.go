package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/fairline/internal/domain"
	"github.com/alejandrodnm/fairline/internal/metrics"
	"github.com/alejandrodnm/fairline/internal/ports"
	"github.com/google/uuid"
)

// Config contiene la configuración del servicio.
type Config struct {
	Interval      time.Duration
	Sport         string
	Regions       []string
	Markets       []string
	MarketKey     string // mercado que se evalúa (h2h)
	LineClass     domain.LineClass
	Pricing       domain.PricingConfig
	Weights       domain.WeightTable
	TrustedRegion string
	MinSources    int
	Workers       int                // goroutines para evaluación paralela (0 = NumCPU*2)
	Bookmakers    []domain.Bookmaker // registro a usar si no hay storage
	IncludeLive   bool               // evaluar también eventos ya empezados
	DryRun        bool
}

// Service es el orquestador del loop de polling y evaluación.
type Service struct {
	cfg       Config
	odds      ports.OddsProvider
	storage   ports.Storage   // opcional
	notifier  ports.Notifier  // opcional
	publisher ports.Publisher // opcional
	metrics   *metrics.Metrics
	analyzer  *Analyzer

	// cycleMu serializa los ciclos: el ticker y POST /api/poll-odds comparten el Service.
	cycleMu sync.Mutex

	now           func() time.Time
	newRunID      func() string
	previousEVIDs map[string]bool // +EV del ciclo anterior para alertas
}

// New crea un Service con todas las dependencias inyectadas. storage, notifier,
// publisher y m pueden ser nil.
func New(
	cfg Config,
	odds ports.OddsProvider,
	storage ports.Storage,
	notifier ports.Notifier,
	publisher ports.Publisher,
	m *metrics.Metrics,
) *Service {
	if cfg.MarketKey == "" {
		cfg.MarketKey = "h2h"
	}
	if len(cfg.Markets) == 0 {
		cfg.Markets = []string{cfg.MarketKey}
	}
	if cfg.Weights == nil {
		cfg.Weights = domain.DefaultWeightTable()
	}
	return &Service{
		cfg:           cfg,
		odds:          odds,
		storage:       storage,
		notifier:      notifier,
		publisher:     publisher,
		metrics:       m,
		analyzer:      NewAnalyzer(cfg.MarketKey, cfg.LineClass, cfg.Pricing, cfg.Weights, cfg.MinSources),
		now:           time.Now,
		newRunID:      uuid.NewString,
		previousEVIDs: make(map[string]bool),
	}
}

// Run ejecuta el loop hasta que el contexto se cancele.
// Si cfg.DryRun está activo, solo ejecuta un ciclo.
func (s *Service) Run(ctx context.Context) error {
	slog.Info("evaluator starting",
		"sport", s.cfg.Sport,
		"interval", s.cfg.Interval,
		"market", s.cfg.MarketKey,
		"line_class", s.cfg.LineClass,
		"dry_run", s.cfg.DryRun,
		"workers", s.cfg.Workers,
	)

	if _, err := s.RunOnce(ctx); err != nil {
		slog.Error("evaluation cycle failed", "err", err)
		if s.cfg.DryRun {
			return err
		}
	}

	if s.cfg.DryRun {
		return nil
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("evaluator stopped")
			return nil
		case <-ticker.C:
			_, err := s.RunOnce(ctx)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrCycleInProgress):
				slog.Info("skipping tick, manual poll in progress")
			case ctx.Err() != nil:
				slog.Info("evaluation cycle interrupted", "err", err)
			default:
				slog.Error("evaluation cycle failed", "err", err)
			}
		}
	}
}

// RunOnce ejecuta un ciclo completo: fetch → persistir → evaluar → notificar.
// Devuelve error si no se pudieron obtener las cuotas o si el contexto se canceló
// durante el ciclo; los fallos de persistencia o publicación se registran y
// marcan el ciclo como parcial. Si otro ciclo está en marcha devuelve
// domain.ErrCycleInProgress sin hacer nada.
func (s *Service) RunOnce(ctx context.Context) (domain.CycleReport, error) {
	if !s.cycleMu.TryLock() {
		return domain.CycleReport{}, fmt.Errorf("evaluator.RunOnce: %w", domain.ErrCycleInProgress)
	}
	defer s.cycleMu.Unlock()

	start := s.now()
	report := domain.CycleReport{
		RunID:     s.newRunID(),
		Sport:     s.cfg.Sport,
		StartedAt: start.UTC(),
	}
	pollLog := domain.PollLog{RunID: report.RunID, Sport: s.cfg.Sport, StartedAt: report.StartedAt, Status: domain.PollSuccess}

	batch, err := s.odds.FetchOdds(ctx, domain.OddsRequest{
		Sport:   s.cfg.Sport,
		Regions: s.cfg.Regions,
		Markets: s.cfg.Markets,
	})
	if err != nil {
		err = fmt.Errorf("evaluator.RunOnce: fetch odds: %w", err)
		pollLog.Status = domain.PollError
		pollLog.Error = err.Error()
		pollLog.Quota = domain.Quota{Remaining: -1, Used: -1, Last: -1}
		s.finish(ctx, pollLog, start)
		return report, err
	}
	report.Quota = batch.Quota
	pollLog.Quota = batch.Quota
	pollLog.ResponseTime = batch.ResponseTime
	pollLog.EventsFetched = len(batch.Events)
	if s.metrics != nil {
		s.metrics.ObserveFetch(batch.ResponseTime, batch.Quota)
	}

	var failures []string
	if s.storage != nil {
		saved, err := s.storage.SaveEvents(ctx, batch.Events)
		if err != nil {
			slog.Warn("storage error", "op", "save_events", "err", err)
			failures = append(failures, "save events: "+err.Error())
		}
		pollLog.SnapshotsSaved = saved
	}

	scan := domain.NewOpportunityScan(s.registry(ctx), s.cfg.TrustedRegion, s.cfg.Pricing.OpportunityThreshold)

	events := s.selectEvents(batch.Events)
	report.Evaluations = evaluateEventsConcurrent(ctx, s.analyzer, events, scan, s.cfg.Workers)
	report.Duration = s.now().Sub(start)

	// Un reporte truncado no se publica ni toca la deduplicación de alertas.
	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("evaluator.RunOnce: cycle interrupted: %w", err)
		pollLog.Status = domain.PollError
		pollLog.Error = err.Error()
		s.finish(ctx, pollLog, start)
		return report, err
	}

	s.emitNewEVAlerts(report)

	if s.storage != nil {
		if err := s.storage.SaveReport(ctx, report); err != nil {
			slog.Warn("storage error", "op", "save_report", "err", err)
			failures = append(failures, "save report: "+err.Error())
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, report); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, report); err != nil {
			slog.Warn("publisher error", "err", err)
			failures = append(failures, "publish: "+err.Error())
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveReport(report)
	}

	n, positive, opps := report.Counts()
	pollLog.Assessments = n
	pollLog.PositiveEV = positive
	pollLog.Opportunities = opps
	if len(failures) > 0 {
		pollLog.Status = domain.PollPartial
		pollLog.Error = strings.Join(failures, "; ")
	}
	s.finish(ctx, pollLog, start)

	slog.Info("evaluation cycle complete",
		"run_id", report.RunID,
		"events", len(report.Evaluations),
		"assessments", n,
		"positive_ev", positive,
		"opportunities", opps,
		"quota_remaining", report.Quota.Remaining,
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report, nil
}

// finish guarda el log del ciclo y actualiza las métricas. El log se guarda
// aunque ctx esté cancelado.
func (s *Service) finish(ctx context.Context, l domain.PollLog, start time.Time) {
	ctx = context.WithoutCancel(ctx)
	l.Duration = s.now().Sub(start)
	if s.metrics != nil {
		s.metrics.ObserveCycle(l.Status, l.Duration)
	}
	if s.storage == nil {
		return
	}
	if err := s.storage.SavePollLog(ctx, l); err != nil {
		slog.Warn("storage error", "op", "save_poll_log", "err", err)
	}
}

// registry devuelve el registro de casas: el de storage si existe, si no el configurado.
func (s *Service) registry(ctx context.Context) []domain.Bookmaker {
	if s.storage == nil {
		return s.cfg.Bookmakers
	}
	books, err := s.storage.Bookmakers(ctx)
	if err != nil || len(books) == 0 {
		if err != nil {
			slog.Warn("storage error", "op", "bookmakers", "err", err)
		}
		return s.cfg.Bookmakers
	}
	return books
}

// selectEvents descarta los eventos terminados y, salvo IncludeLive, los ya empezados.
func (s *Service) selectEvents(events []domain.Event) []domain.Event {
	now := s.now()
	out := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		if ev.Completed {
			continue
		}
		if !s.cfg.IncludeLive && ev.IsLive(now) {
			slog.Debug("skipping live event", "event", ev.Name())
			continue
		}
		out = append(out, ev)
	}
	return out
}

// emitNewEVAlerts registra las evaluaciones +EV que no estaban en el ciclo anterior.
// Si además hay divergencias, la alerta sube a nivel ERROR.
func (s *Service) emitNewEVAlerts(report domain.CycleReport) {
	current := make(map[string]bool)
	for _, ev := range report.Evaluations {
		for _, a := range ev.PositiveEV() {
			id := fmt.Sprintf("%s/%s/%s", ev.Event.ExternalID, a.TargetSourceID, a.TargetOutcome)
			current[id] = true
			if s.previousEVIDs[id] {
				continue // ya conocido
			}

			attrs := []any{
				"event", ev.Event.Name(),
				"outcome", ev.OutcomeName(a.TargetOutcome),
				"book", a.TargetSourceID,
				"offered", a.OfferedOdds,
				"min_odds", fmt.Sprintf("%.1f", a.RecommendedMinimumOdds),
				"fair", fmt.Sprintf("%.1f (%s)", a.BestFair.Odds, a.BestFair.SourceID),
				"ev_per_100", fmt.Sprintf("%.2f", a.ExpectedValuePer100),
				"confidence", fmt.Sprintf("%.2f", ev.Confidence),
			}
			if len(a.Divergences) > 0 {
				attrs = append(attrs, "divergences", len(a.Divergences))
				slog.Error("*** NEW +EV WITH DIVERGENCE ***", attrs...)
			} else {
				slog.Warn("NEW +EV", attrs...)
			}
		}
	}
	s.previousEVIDs = current
}
