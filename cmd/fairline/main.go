package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/fairline/config"
	"github.com/alejandrodnm/fairline/internal/adapters/httpapi"
	"github.com/alejandrodnm/fairline/internal/adapters/notify"
	"github.com/alejandrodnm/fairline/internal/adapters/oddsapi"
	"github.com/alejandrodnm/fairline/internal/adapters/storage"
	"github.com/alejandrodnm/fairline/internal/adapters/stream"
	"github.com/alejandrodnm/fairline/internal/adapters/wsfeed"
	"github.com/alejandrodnm/fairline/internal/application/evaluator"
	"github.com/alejandrodnm/fairline/internal/metrics"
	"github.com/alejandrodnm/fairline/internal/ports"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one evaluation cycle and exit")
	dryRun := flag.Bool("dry-run", false, "use local fixtures instead of real API (no storage, no redis)")
	fixture := flag.String("fixture", "testdata/fixtures/odds_api_events.json", "fixture file used by -dry-run")
	verbose := flag.Bool("verbose", false, "set log level to debug and print the 7 steps for the top 3")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full tables (default: compact 1-line)")
	serve := flag.Bool("serve", false, "serve the HTTP API next to the polling loop")
	sports := flag.Bool("sports", false, "list available sports and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("fairline starting",
		"config", *configPath,
		"sport", cfg.OddsAPI.Sport,
		"interval", cfg.PollInterval(),
		"dry_run", *dryRun,
		"once", *once,
		"serve", *serve,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := oddsapi.NewClient(cfg.OddsAPI.BaseURL, cfg.OddsAPI.APIKey, cfg.OddsAPI.RatePerSec, cfg.Timeout())

	if *sports {
		if err := listSports(ctx, client, os.Stdout); err != nil {
			slog.Error("failed to list sports", "err", err)
			os.Exit(1)
		}
		return
	}

	var odds ports.OddsProvider = client
	if *dryRun {
		odds = oddsapi.NewFileProvider(*fixture)
	} else if cfg.OddsAPI.APIKey == "" {
		slog.Error("missing odds api key: set ODDS_API_KEY or odds_api.api_key")
		os.Exit(1)
	}

	var store *storage.SQLiteStorage
	if !*dryRun {
		store, err = storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()

		if err := store.SeedBookmakers(ctx, cfg.BookmakerRegistry()); err != nil {
			slog.Error("failed to seed bookmakers", "err", err)
			os.Exit(1)
		}
	}

	var publishers stream.Multi
	if cfg.Redis.Enabled && !*dryRun {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			slog.Warn("redis unavailable, publishing disabled", "addr", cfg.Redis.Addr, "err", err)
		} else {
			publishers = append(publishers, stream.NewRedisPublisher(rdb, cfg.Redis.StreamPrefix, cfg.Redis.MaxLen))
			slog.Info("publishing to redis streams", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.StreamPrefix)
		}
	}

	// El feed WebSocket vive en el mismo servidor que la API.
	var hub *wsfeed.Hub
	if *serve {
		hub = wsfeed.NewHub(cfg.HTTP.AllowedOrigins)
		defer hub.Close()
		publishers = append(publishers, hub)
	}

	var publisher ports.Publisher
	if len(publishers) > 0 {
		publisher = publishers
	}

	m := metrics.New()
	notifier := notify.Multi{notify.NewConsole(*table, *verbose)}
	if cfg.Telegram.Enabled && !*dryRun {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Telegram.MinEV, cfg.Telegram.MaxPerCycle)
		if err != nil {
			slog.Warn("telegram unavailable, alerts disabled", "err", err)
		} else {
			notifier = append(notifier, tg)
		}
	}

	evalCfg := evaluator.Config{
		Interval:      cfg.PollInterval(),
		Sport:         cfg.OddsAPI.Sport,
		Regions:       cfg.OddsAPI.Regions,
		Markets:       cfg.OddsAPI.Markets,
		MarketKey:     cfg.Evaluator.MarketKey,
		LineClass:     cfg.LineClass(),
		Pricing:       cfg.DomainPricing(),
		Weights:       cfg.WeightTable(),
		TrustedRegion: cfg.Trusted.Region,
		MinSources:    cfg.Evaluator.MinSources,
		Workers:       cfg.Evaluator.Workers,
		Bookmakers:    cfg.BookmakerRegistry(),
		DryRun:        *dryRun || *once,
	}

	// store nil → interfaz nil, no un puntero nil envuelto
	var st ports.Storage
	if store != nil {
		st = store
	}
	svc := evaluator.New(evalCfg, odds, st, notifier, publisher, m)

	var srv *http.Server
	if *serve {
		if store == nil {
			slog.Error("-serve needs storage; drop -dry-run")
			os.Exit(1)
		}
		api := httpapi.New(store, svc, httpapi.Options{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			TrustedRegion:  cfg.Trusted.Region,
			Threshold:      cfg.DomainPricing().OpportunityThreshold,
			Gatherer:       m.Registry,
			Feed:           hub,
		})
		srv = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("http api listening", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server failed", "err", err)
				cancel()
			}
		}()
	}

	runErr := svc.Run(ctx)

	// Con -serve y -once la API sigue viva hasta la señal de salida.
	if srv != nil {
		if evalCfg.DryRun && runErr == nil {
			<-ctx.Done()
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "err", err)
		}
		shutdownCancel()
	}

	if runErr != nil {
		slog.Error("evaluator exited with error", "err", runErr)
		os.Exit(1)
	}

	slog.Info("fairline stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
