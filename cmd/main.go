package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"go-event-hub/internal/application/facade"
	"go-event-hub/internal/infrastructure/config"
	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
	"go-event-hub/internal/infrastructure/server"
)

func main() {
	ctx := context.Background()
	sctx := WithSignal(ctx)

	cfg, err := config.Load()
	if err != nil {
		fallback := logger.NewLogrusLogger(logger.NewDefaultConfig())
		fallback.Fatalf("failed to load config: %v", err)
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		fallback := logger.NewLogrusLogger(logger.NewDefaultConfig())
		fallback.Fatalf("failed to build logger: %v", err)
	}
	log = log.WithField("app", cfg.App.Name)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hubInstance := hub.New(log,
		hub.WithConfig(hub.Config{
			BufferSize:        cfg.Hub.BufferSize,
			HeartbeatInterval: cfg.Hub.HeartbeatInterval,
			WriteTimeout:      cfg.Hub.WriteTimeout,
			StallTimeout:      cfg.Hub.StallTimeout,
		}),
		hub.WithMetrics(hub.NewMetrics(registry)),
	)

	// Start the hub before the router accepts streams
	if err := hubInstance.Start(sctx); err != nil {
		log.Errorf("failed to start hub: %v", err)
		return
	}
	log.Infof(
		"hub started, heartbeat every %s, buffer %d frames",
		hubInstance.Config().HeartbeatInterval,
		hubInstance.Config().BufferSize,
	)

	events := facade.NewEventApplicationService(hubInstance, log)
	router := InitRouter(cfg, hubInstance, events, registry, log)
	httpSrv := server.NewHTTPServer(router, server.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	})
	log.Infof("listening on %s", httpSrv.Addr())

	app := newApplication(log, httpSrv, hubInstance, cfg.HTTP.ShutdownTimeout)
	if err := app.Run(sctx); err != nil {
		log.Errorf("failed to run application: %v", err)
	}
}

func newLogger(cfg config.LogConfig) (logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	lCfg := logger.NewDefaultConfig()
	lCfg.Level = level
	lCfg.Format = cfg.Format
	lCfg.Output = cfg.Output
	lCfg.FilePath = cfg.FilePath
	lCfg.MaxSize = cfg.MaxSize
	lCfg.MaxBackups = cfg.MaxBackups
	lCfg.MaxAge = cfg.MaxAge
	lCfg.Compress = cfg.Compress

	return logger.NewLogrusLogger(lCfg), nil
}

type Application struct {
	logger          logger.Logger
	httpSrv         server.Server
	hub             *hub.Hub
	shutdownTimeout time.Duration
}

func newApplication(
	logger logger.Logger,
	httpSrv *server.HTTPServer,
	hubInstance *hub.Hub,
	shutdownTimeout time.Duration,
) *Application {
	return &Application{
		logger:          logger.WithField("component", "app"),
		httpSrv:         httpSrv,
		hub:             hubInstance,
		shutdownTimeout: shutdownTimeout,
	}
}

func (app *Application) Run(ctx context.Context) error {
	eg := errgroup.Group{}

	eg.Go(func() error {
		return app.httpSrv.Start(ctx)
	})

	eg.Go(func() error {
		<-ctx.Done()
		app.logger.Info("shutting down")

		gracefulshutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			app.shutdownTimeout,
		)
		defer cancel()

		// Stop hub first so open streams return and Shutdown is not held up
		if err := app.hub.Stop(gracefulshutdownCtx); err != nil {
			app.logger.Errorf("failed to stop hub: %v", err)
		}

		return app.httpSrv.Stop(gracefulshutdownCtx)
	})

	return eg.Wait()
}

func WithSignal(pctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(pctx)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

		<-sigc

		cancel()
	}()

	return ctx
}
