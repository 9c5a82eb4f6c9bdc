package server

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"OmniSpectrum/internal/service/scheduler"
	"OmniSpectrum/internal/service/stream"
	"OmniSpectrum/internal/service/watcher"
	"OmniSpectrum/pkg/config"
	xhttp "OmniSpectrum/pkg/http"
	pkgkafka "OmniSpectrum/pkg/kafka"
	applogger "OmniSpectrum/pkg/logger"
)

// App encapsulates the entire application lifecycle. Optional components
// are nil when disabled in config.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	hub        *stream.Hub
	consumer   *pkgkafka.Consumer
	scheduler  *scheduler.Runner
	watcher    *watcher.FileWatcher
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	hub *stream.Hub,
	consumer *pkgkafka.Consumer,
	sched *scheduler.Runner,
	fw *watcher.FileWatcher,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		hub:        hub,
		consumer:   consumer,
		scheduler:  sched,
		watcher:    fw,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.httpServer.Serve(gctx) })

	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}

	if a.consumer != nil {
		if err := a.consumer.Start(gctx); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
		}
	}

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	a.log.Info("omnispectrum started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("store", a.cfg.Store.Backend),
		applogger.Int("port", a.cfg.Server.Port))

	err := g.Wait()
	a.shutdown()
	return err
}

// shutdown stops background components. The HTTP server stops itself when
// its context ends.
func (a *App) shutdown() {
	a.log.Info("shutting down...")

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	if a.consumer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.hub != nil {
		a.hub.Close()
	}

	a.log.Info("shutdown complete")
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
