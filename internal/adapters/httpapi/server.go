// Package httpapi sirve las evaluaciones guardadas y permite lanzar un ciclo a mano.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/fairline/internal/domain"
	"github.com/alejandrodnm/fairline/internal/ports"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poller ejecuta un ciclo completo de fetch y evaluación.
type Poller interface {
	RunOnce(ctx context.Context) (domain.CycleReport, error)
}

// Options configura el servidor.
type Options struct {
	AllowedOrigins []string
	TrustedRegion  string  // región de las casas que forman la referencia
	Threshold      float64 // umbral de mejora para /api/opportunities
	Gatherer       prometheus.Gatherer
	Feed           http.Handler // WebSocket en /ws; nil = sin feed
}

// Server agrupa las dependencias de los handlers.
type Server struct {
	reader  ports.Reader
	poller  Poller
	opts    Options
	polling atomic.Bool
	started time.Time
}

// New crea el servidor. poller puede ser nil: POST /api/poll-odds responde 503.
func New(reader ports.Reader, poller Poller, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{reader: reader, poller: poller, opts: opts, started: time.Now()}
}

// Routes devuelve el router con middleware y todas las rutas.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	if s.opts.Feed != nil {
		r.Handle("/ws", s.opts.Feed)
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(10 * time.Second))
			r.Get("/events", s.events)
			r.Get("/ev-opportunities", s.evOpportunities)
			r.Get("/opportunities", s.opportunities)
			r.Get("/polling-logs", s.pollingLogs)
			r.Get("/stats", s.stats)
			r.Get("/bookmakers", s.bookmakers)
		})
		// Un ciclo puede tardar más que el timeout de lectura
		r.Post("/poll-odds", s.pollOdds)
	})

	return r
}

// requestLogger registra cada request con slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}
