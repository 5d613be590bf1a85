package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/fairline/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Telegram limita a ~30 mensajes/minuto por chat; dejamos margen.
const telegramSendInterval = 2 * time.Second

// messageSender es la parte de *tgbotapi.BotAPI que usamos.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram envía una alerta por cada +EV nuevo (no presente en el ciclo anterior).
type Telegram struct {
	bot         messageSender
	chatID      int64
	minEV       float64 // EV/100 mínimo para alertar
	maxPerCycle int
	limiter     *rate.Limiter

	mu   sync.Mutex
	seen map[string]bool
}

// NewTelegram conecta con la API de bots. Falla si el token no es válido.
func NewTelegram(token string, chatID int64, minEV float64, maxPerCycle int) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: %w", err)
	}
	slog.Info("telegram notifier ready", "bot", bot.Self.UserName, "chat_id", chatID)
	return newTelegram(bot, chatID, minEV, maxPerCycle), nil
}

func newTelegram(bot messageSender, chatID int64, minEV float64, maxPerCycle int) *Telegram {
	if maxPerCycle <= 0 {
		maxPerCycle = 10
	}
	return &Telegram{
		bot:         bot,
		chatID:      chatID,
		minEV:       minEV,
		maxPerCycle: maxPerCycle,
		limiter:     rate.NewLimiter(rate.Every(telegramSendInterval), 3),
		seen:        make(map[string]bool),
	}
}

// Notify envía las alertas nuevas del ciclo. Si hay más de maxPerCycle, el resto
// se resume en un último mensaje.
func (t *Telegram) Notify(ctx context.Context, report domain.CycleReport) error {
	pending := t.newAlerts(report)
	if len(pending) == 0 {
		return nil
	}

	extra := 0
	if len(pending) > t.maxPerCycle {
		extra = len(pending) - t.maxPerCycle
		pending = pending[:t.maxPerCycle]
	}
	if extra > 0 {
		pending = append(pending, fmt.Sprintf("… and %d more +EV alerts this cycle", extra))
	}

	var failed int
	for _, text := range pending {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("notify.Telegram: %w", err)
		}
		if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
			slog.Warn("telegram send failed", "err", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("notify.Telegram: %d of %d messages failed", failed, len(pending))
	}
	return nil
}

// newAlerts devuelve los textos de los +EV que no estaban en el ciclo anterior
// y recuerda los del ciclo actual.
func (t *Telegram) newAlerts(report domain.CycleReport) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pending []string
	current := make(map[string]bool)
	for _, ev := range report.Evaluations {
		for _, a := range ev.PositiveEV() {
			id := fmt.Sprintf("%s/%s/%s", ev.Event.ExternalID, a.TargetSourceID, a.TargetOutcome)
			current[id] = true
			if t.seen[id] || a.ExpectedValuePer100 < t.minEV {
				continue
			}
			pending = append(pending, alertText(ev, a))
		}
	}
	t.seen = current
	return pending
}

// alertText formatea una alerta en texto plano.
func alertText(ev domain.EventEvaluation, a domain.EVAssessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "+EV %s\n", ev.Event.Name())
	fmt.Fprintf(&b, "%s @ %s %s\n", ev.OutcomeName(a.TargetOutcome), a.TargetSourceID, fmtOdds(float64(a.OfferedOdds)))
	fmt.Fprintf(&b, "fair %s (%s) · min %s\n", fmtOdds(a.BestFair.Odds), a.BestFair.SourceID, fmtOdds(a.RecommendedMinimumOdds))
	fmt.Fprintf(&b, "EV $%+.2f / $100", a.ExpectedValuePer100)
	if ev.Consensus != nil {
		fmt.Fprintf(&b, " · confidence %.2f", ev.Confidence)
	}
	if len(a.Divergences) > 0 {
		fmt.Fprintf(&b, "\n%d divergent books", len(a.Divergences))
	}
	if !ev.Event.CommenceTime.IsZero() {
		fmt.Fprintf(&b, "\nstarts %s", ev.Event.CommenceTime.UTC().Format("Jan 2 15:04 MST"))
	}
	return b.String()
}
