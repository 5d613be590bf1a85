package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/alejandrodnm/fairline/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier.
type Console struct {
	out     io.Writer
	table   bool
	verbose bool
	now     func() time.Time
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table, verbose bool) *Console {
	return &Console{out: os.Stdout, table: table, verbose: verbose, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table, verbose bool) *Console {
	return &Console{out: w, table: table, verbose: verbose, now: time.Now}
}

// Notify imprime el ciclo en el modo configurado.
func (c *Console) Notify(_ context.Context, report domain.CycleReport) error {
	if len(report.Evaluations) == 0 {
		fmt.Fprintf(c.out, "[%s] no events evaluated\n", c.now().Format("15:04:05"))
		return nil
	}

	ranked := rankedPositive(report)
	opps := allOpportunities(report)

	if c.table {
		c.printFull(report, ranked, opps)
	} else {
		c.printCompact(report, ranked, opps)
	}

	if c.verbose {
		c.printValidation(ranked)
	}
	return nil
}

// printCompact imprime lo esencial en 1-2 líneas.
func (c *Console) printCompact(report domain.CycleReport, ranked []rankedAssessment, opps []domain.Opportunity) {
	n, positive, _ := report.Counts()

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d events → evals:%d +EV:%d opps:%d quota:%s",
		c.now().Format("15:04:05"), len(report.Evaluations), n, positive, len(opps), quotaLabel(report.Quota))

	for i, r := range ranked {
		if i >= 4 {
			break
		}
		a := r.assessment
		fmt.Fprintf(&sb, " | %s %s@%s %s ev%+.2f",
			compactName(r.outcomeName, 20), a.TargetSourceID, fmtOdds(float64(a.OfferedOdds)),
			"min"+fmtOdds(a.RecommendedMinimumOdds), a.ExpectedValuePer100)
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime las tablas de EV positivo y oportunidades.
func (c *Console) printFull(report domain.CycleReport, ranked []rankedAssessment, opps []domain.Opportunity) {
	n, positive, _ := report.Counts()
	fmt.Fprintf(c.out, "\n[%s] %s | %d events, %d evaluations, %d +EV, %d opportunities (quota %s)\n",
		c.now().Format("15:04:05"), report.Sport, len(report.Evaluations), n, positive, len(opps), quotaLabel(report.Quota))

	if len(ranked) == 0 {
		fmt.Fprintln(c.out, "  no positive EV found")
	} else {
		c.printEVTable(ranked)
	}

	if len(opps) > 0 {
		c.printOpportunityTable(opps)
	}

	c.printSummary(report)
}

// printEVTable imprime una fila por evaluación con EV positivo.
func (c *Console) printEVTable(ranked []rankedAssessment) {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Event", "Outcome", "Book", "Offered", "Fair", "Min odds", "EV/100", "Div")

	for i, r := range ranked {
		a := r.assessment
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(r.eventName, 32),
			truncate(r.outcomeName, 22),
			a.TargetSourceID,
			fmtOdds(float64(a.OfferedOdds)),
			fmt.Sprintf("%s (%s)", fmtOdds(a.BestFair.Odds), a.BestFair.SourceID),
			fmtOdds(a.RecommendedMinimumOdds),
			fmt.Sprintf("%+.2f", a.ExpectedValuePer100),
			fmt.Sprintf("%d", len(a.Divergences)),
		)
	}
	table.Render()

	fmt.Fprintln(c.out, "  Fair = mejor línea sin vig | Min odds = fair + fee + buffer")
	fmt.Fprintln(c.out, "  EV/100 = valor esperado por 100 apostados a la cuota ofrecida")
}

// printOpportunityTable imprime las cuotas que mejoran la referencia de confianza.
func (c *Console) printOpportunityTable(opps []domain.Opportunity) {
	fmt.Fprintf(c.out, "\n=== OPPORTUNITIES vs TRUSTED REFERENCE (%d) ===\n", len(opps))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Event", "Outcome", "Book", "Price", "Reference", "Improvement")
	for i, o := range opps {
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(o.EventName, 32),
			truncate(o.OutcomeName, 22),
			o.SourceID,
			fmtOdds(float64(o.Price)),
			fmtOdds(o.ReferencePrice),
			fmt.Sprintf("%.1f%%", o.Improvement*100),
		)
	}
	table.Render()
}

// printSummary imprime el agregado del ciclo y los fallos por evento.
func (c *Console) printSummary(report domain.CycleReport) {
	var all []domain.EVAssessment
	failures := 0
	for _, ev := range report.Evaluations {
		all = append(all, ev.Assessments...)
		failures += len(ev.Failures)
	}
	s := domain.Summarize(all)

	fmt.Fprintf(c.out, "\n  Evaluations: %d | +EV: %d | with divergence: %d | avg EV/100: %+.2f",
		s.Total, s.PositiveEV, s.WithDivergence, s.AverageEV)
	if failures > 0 {
		fmt.Fprintf(c.out, " | skipped targets: %d", failures)
	}
	fmt.Fprintln(c.out)
	if s.Best != nil {
		fmt.Fprintf(c.out, "  Best: %s %s %s  EV/100 %+.2f\n\n",
			s.Best.TargetSourceID, s.Best.TargetOutcome, fmtOdds(float64(s.Best.OfferedOdds)), s.Best.ExpectedValuePer100)
	} else {
		fmt.Fprintln(c.out)
	}
}

// printValidation imprime los 7 pasos de las 3 mejores evaluaciones.
func (c *Console) printValidation(ranked []rankedAssessment) {
	top := ranked
	if len(top) > 3 {
		top = ranked[:3]
	}
	if len(top) == 0 {
		return
	}

	fmt.Fprintln(c.out, "=== VALIDATION: step-by-step ===")
	for i, r := range top {
		a := r.assessment
		fmt.Fprintf(c.out, "\n--- #%d: %s  [%s @ %s %s] ---\n",
			i+1, r.eventName, r.outcomeName, a.TargetSourceID, fmtOdds(float64(a.OfferedOdds)))
		if r.consensus != nil {
			fmt.Fprintf(c.out, "  consensus: %s / %s  (confidence %.2f, %d sources)\n",
				fmtOdds(r.consensus.FairOddsA), fmtOdds(r.consensus.FairOddsB),
				r.confidence, len(r.consensus.SourcesUsed))
			chk, err := domain.DetectPositiveEV(r.consensus.Probability(a.TargetOutcome), float64(a.OfferedOdds))
			if err == nil {
				fmt.Fprintf(c.out, "  vs consensus: p=%.4f implied=%.4f edge=%+.4f EV=$%+.2f\n",
					chk.TrueProbability, chk.ImpliedProbability, chk.Edge, chk.ExpectedValue)
			}
		} else {
			fmt.Fprintf(c.out, "  estimate: %s (confidence %.2f)\n", r.method, r.confidence)
		}

		fmt.Fprintf(c.out, "\n  1. BASELINE: %s %s (p=%.4f)\n",
			a.Baseline.SourceID, fmtOdds(a.Baseline.Odds), a.Baseline.Probability)

		fmt.Fprintf(c.out, "  2. FAIR LINES:\n")
		for _, fl := range a.FairLines {
			fmt.Fprintf(c.out, "     %-12s fair=%s  p=%.4f  vig=%.2f%%\n",
				fl.SourceID, fmtOdds(fl.Market.Odds(a.TargetOutcome)),
				fl.Market.Probability(a.TargetOutcome), fl.Market.VigPercentage*100)
		}
		for _, sk := range a.SkippedSources {
			fmt.Fprintf(c.out, "     %-12s skipped: %s\n", sk.SourceID, sk.Reason)
		}

		fmt.Fprintf(c.out, "  3. BEST FAIR: %s %s (p=%.4f)\n",
			a.BestFair.SourceID, fmtOdds(a.BestFair.Odds), a.BestFair.Probability)

		rec := a.Recommendation
		fmt.Fprintf(c.out, "  4. RECOMMENDATION: p=%.4f → fee %.1f%% → %.4f → buffer %.1f%% (%s) → %.4f = %s\n",
			rec.FairProbability, rec.FeeRate*100, rec.ProbabilityAfterFee,
			rec.BufferRate*100, rec.LineClass, rec.ProbabilityAfterBuffer, fmtOdds(rec.RecommendedMinimumOdds))

		fmt.Fprintf(c.out, "  5. OFFERED: %s (p=%.4f) vs required p=%.4f → +EV=%v\n",
			fmtOdds(float64(a.OfferedOdds)), a.OfferedProbability, a.RecommendedProbability, a.HasPositiveEV)

		fmt.Fprintf(c.out, "  6. DIVERGENCES:")
		if len(a.Divergences) == 0 {
			fmt.Fprintf(c.out, " none\n")
		} else {
			fmt.Fprintln(c.out)
			for _, d := range a.Divergences {
				mark := "worse"
				if d.TargetIsBetter {
					mark = "target better"
				}
				fmt.Fprintf(c.out, "     %-12s %s gap=%.4f (%s)\n",
					d.OtherSourceID, fmtOdds(float64(d.OtherOdds)), d.ProbabilityGap, mark)
			}
		}

		fmt.Fprintf(c.out, "  7. EV: $%+.2f per $100\n", a.ExpectedValuePer100)
	}
	fmt.Fprintln(c.out)
}

// --- helpers ---

// rankedAssessment es una evaluación positiva con el contexto de su evento.
type rankedAssessment struct {
	assessment  domain.EVAssessment
	eventName   string
	outcomeName string
	consensus   *domain.ConsensusResult
	method      domain.EstimationMethod
	confidence  float64
}

// rankedPositive junta las evaluaciones positivas de todos los eventos, mejor EV primero.
func rankedPositive(report domain.CycleReport) []rankedAssessment {
	var out []rankedAssessment
	for _, ev := range report.Evaluations {
		pos := ev.PositiveEV()
		domain.RankByEV(pos)
		for _, a := range pos {
			out = append(out, rankedAssessment{
				assessment:  a,
				eventName:   ev.Event.Name(),
				outcomeName: ev.OutcomeName(a.TargetOutcome),
				consensus:   ev.Consensus,
				method:      ev.Estimate.Method,
				confidence:  ev.Confidence,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].assessment.ExpectedValuePer100 > out[j].assessment.ExpectedValuePer100
	})
	return out
}

func allOpportunities(report domain.CycleReport) []domain.Opportunity {
	var out []domain.Opportunity
	for _, ev := range report.Evaluations {
		out = append(out, ev.Opportunities...)
	}
	return out
}

// fmtOdds formatea una cuota americana con signo explícito.
func fmtOdds(odds float64) string {
	if odds == float64(int64(odds)) {
		return fmt.Sprintf("%+d", int64(odds))
	}
	return fmt.Sprintf("%+.1f", odds)
}

func quotaLabel(q domain.Quota) string {
	if q.Remaining < 0 {
		return "-"
	}
	return fmt.Sprintf("%d", q.Remaining)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func compactName(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if idx := strings.LastIndex(cut, " "); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}
