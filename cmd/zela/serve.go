package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/zeladoria/zela/internal/config"
	"github.com/zeladoria/zela/internal/db"
	"github.com/zeladoria/zela/internal/event"
	"github.com/zeladoria/zela/internal/extract"
	"github.com/zeladoria/zela/internal/geocode"
	"github.com/zeladoria/zela/internal/handlers"
	"github.com/zeladoria/zela/internal/intake"
	"github.com/zeladoria/zela/internal/logger"
	"github.com/zeladoria/zela/internal/normalize"
	"github.com/zeladoria/zela/internal/outbound"
	"github.com/zeladoria/zela/internal/server"
	"github.com/zeladoria/zela/internal/session"
	"github.com/zeladoria/zela/internal/ticket"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideSessionStore,
			provideNormalizer,
			provideExtractor,
			provideTicketClient,
			provideDispatcher,
			provideGeocoder,
			event.NewHub,
			provideEngine,
			provideSweeper,
			providePingHandler,
			provideWebhookHandler,
			provideEventsHandler,
			provideServer,
		),
		fx.Invoke(
			startSweeper,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideSessionStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (session.Store, error) {
	if cfg.Session.InMemory {
		log.Info("using in-memory session store")
		return session.NewMemoryStore(), nil
	}
	pool, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
	return session.NewPostgresStore(pool), nil
}

func provideNormalizer(log *slog.Logger) *normalize.Normalizer {
	return normalize.New(log)
}

func provideExtractor(log *slog.Logger, cfg config.Config) (*extract.Extractor, error) {
	classifier, err := extract.NewClassifier(cfg.AI.KeywordTable)
	if err != nil {
		return nil, fmt.Errorf("load keyword table: %w", err)
	}
	client := extract.NewHTTPClient(log, cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout())
	return extract.NewExtractor(log, client, classifier), nil
}

func provideTicketClient(log *slog.Logger, cfg config.Config) *ticket.Client {
	return ticket.NewClient(log, cfg.Tickets.BaseURL, cfg.Tickets.APIKey)
}

func provideDispatcher(log *slog.Logger, cfg config.Config) outbound.Dispatcher {
	sender := outbound.NewGatewaySender(log, cfg.WhatsApp.GatewayBaseURL, cfg.WhatsApp.Token)
	return outbound.NewRetrier(log, sender, 3, 500*time.Millisecond)
}

func provideGeocoder(log *slog.Logger, cfg config.Config) geocode.Geocoder {
	timeout := time.Duration(cfg.Geocode.TimeoutSeconds) * time.Second
	return geocode.NewNominatimClient(log, cfg.Geocode.BaseURL, timeout)
}

func provideEngine(lc fx.Lifecycle, log *slog.Logger, store session.Store, extractor *extract.Extractor, tickets *ticket.Client, dispatcher outbound.Dispatcher, geocoder geocode.Geocoder, hub *event.Hub, cfg config.Config) *intake.Engine {
	engine := intake.NewEngine(log, store, extractor, tickets, dispatcher)
	engine.SetGeocoder(geocoder)
	engine.SetHub(hub)
	engine.SetAITimeout(cfg.AI.Timeout())
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { engine.Close(); return nil }})
	return engine
}

func provideSweeper(log *slog.Logger, store session.Store, engine *intake.Engine, cfg config.Config) *session.Sweeper {
	return session.NewSweeper(log, store, engine,
		cfg.Session.IdleWarnDuration(),
		cfg.Session.TTLDuration(),
		cfg.Session.SweepSpec,
	)
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

func provideWebhookHandler(log *slog.Logger, engine *intake.Engine, normalizer *normalize.Normalizer, cfg config.Config) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, engine, normalizer, cfg.WhatsApp.WebhookSecret)
}

func provideEventsHandler(log *slog.Logger, hub *event.Hub) *handlers.EventsHandler {
	return handlers.NewEventsHandler(log, hub)
}

func provideServer(cfg config.Config, pingHandler *handlers.PingHandler, webhookHandler *handlers.WebhookHandler, eventsHandler *handlers.EventsHandler) *server.Server {
	return server.NewServer(cfg.Server.Addr, pingHandler, webhookHandler, eventsHandler)
}

func startSweeper(lc fx.Lifecycle, sweeper *session.Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return sweeper.Start() },
		OnStop:  func(ctx context.Context) error { sweeper.Stop(); return nil },
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
