package server

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"PriceLens/internal/usecase"
	"PriceLens/pkg/config"
	xhttp "PriceLens/pkg/http"
	pkgkafka "PriceLens/pkg/kafka"
	applogger "PriceLens/pkg/logger"
	"PriceLens/pkg/queue"
)

// Closer is a named resource released at shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// Components are the long-running parts of the service. Everything except
// HTTP is optional.
type Components struct {
	HTTP      *xhttp.Server
	Collector *usecase.TickCollector
	Consumer  *pkgkafka.Consumer
	Ticks     *usecase.KafkaTicksHandler
	Queue     *queue.RedisQueue
	// Closers run in order after everything has stopped.
	Closers []Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	log *applogger.Logger
	Components
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, c Components) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{cfg: cfg, log: log, Components: c}
}

// Run starts every component and blocks until SIGINT/SIGTERM or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.start(ctx); err != nil {
		a.shutdown()
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) start(ctx context.Context) error {
	if a.Queue != nil {
		if err := a.Queue.Start(); err != nil {
			return err
		}
		a.log.Info("warm queue started", applogger.String("name", a.cfg.Queue.Name))
	}

	if a.Consumer != nil && a.Ticks != nil {
		a.Consumer.RegisterHandler(a.Ticks)
		if err := a.Consumer.Start(); err != nil {
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.Ticks.Topic()))
	}

	if a.Collector != nil {
		if err := a.Collector.Start(ctx); err != nil {
			return err
		}
		a.log.Info("collector started", applogger.Strings("symbols", a.cfg.Finnhub.Symbols))
	}

	if err := a.HTTP.Start(); err != nil {
		return err
	}
	a.log.Info("http server started", applogger.String("addr", a.HTTP.Addr()))
	return nil
}

// shutdown stops intake first, then the HTTP server, then workers, and
// finally releases clients. Each stage gets its own bounded timeout.
func (a *App) shutdown() error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	var errs []error
	stage := func(name string, fn func(ctx context.Context) error) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			a.log.Warn("shutdown stage failed", applogger.String("stage", name), applogger.Error(err))
			errs = append(errs, err)
		}
	}

	if a.Collector != nil {
		stage("collector", a.Collector.Shutdown)
	}
	stage("http", a.HTTP.Stop)
	if a.Consumer != nil {
		stage("kafka consumer", a.Consumer.Stop)
	}
	if a.Queue != nil {
		stage("warm queue", a.Queue.Stop)
	}
	for _, c := range a.Closers {
		stage(c.Name, func(context.Context) error { return c.Close() })
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
