package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"StockSentinel/internal/domain/repository"
	"StockSentinel/internal/handler/api"
	"StockSentinel/internal/usecase"
	pkgch "StockSentinel/pkg/clickhouse"
	"StockSentinel/pkg/config"
	xhttp "StockSentinel/pkg/http"
	applogger "StockSentinel/pkg/logger"
)

// App encapsulates the entire application lifecycle: record store
// bootstrap, HTTP surface, the cycle scheduler and graceful teardown.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	handler   xhttp.Handler
	hub       *api.Hub
	scheduler *usecase.Scheduler
	analyzer  *usecase.Analyzer
	store     repository.RecordStore
	chClient  *pkgch.Client
	publisher *usecase.KafkaPublisher

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. The ClickHouse
// client and the publisher are nil when their backends are disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	hub *api.Hub,
	scheduler *usecase.Scheduler,
	analyzer *usecase.Analyzer,
	store repository.RecordStore,
	chClient *pkgch.Client,
	publisher *usecase.KafkaPublisher,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		handler:   handler,
		hub:       hub,
		scheduler: scheduler,
		analyzer:  analyzer,
		store:     store,
		chClient:  chClient,
		publisher: publisher,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.store.Init(ctx); err != nil {
		a.log.Error("record store init failed", applogger.Error(err))
		return err
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(a.log, a.cfg.Server.WriteTimeout/2),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	if a.cfg.Scheduler.Enabled && a.scheduler != nil {
		go func() {
			if err := a.scheduler.Run(ctx); err != nil && ctx.Err() == nil {
				a.log.Error("scheduler stopped", applogger.Error(err))
			}
		}()
		a.log.Info("scheduler started",
			applogger.String("midday", a.cfg.Scheduler.MiddayTime),
			applogger.String("close", a.cfg.Scheduler.CloseTime))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel() // stops the scheduler before connections drain
	return a.shutdown()
}

// RunOnce executes a single cycle and exits; used by the -mode flag for
// cron-style deployments without the resident scheduler.
func (a *App) RunOnce(mode string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.store.Init(ctx); err != nil {
		return err
	}
	defer func() { _ = a.shutdown() }()

	_, err := a.analyzer.RunCycle(ctx, mode)
	return err
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.publisher != nil {
		a.log.RemoveCollector()
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("record store close error", applogger.Error(err))
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
