package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"perfreview/internal/domain/performance"
	"perfreview/internal/platform/config"
	"perfreview/internal/platform/db"
	"perfreview/internal/platform/logging"
	"perfreview/internal/platform/memstore"
	"perfreview/internal/platform/metrics"
	"perfreview/internal/platform/mongo"
	"perfreview/internal/platform/mq"
	"perfreview/internal/platform/mq/consumer"
	"perfreview/internal/platform/sqlite"
	performancehandler "perfreview/internal/transport/http/handlers/performance"
	"perfreview/internal/transport/http/middleware"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Config  config.Config
	Router  http.Handler
	Store   performance.StoreAPI
	Queue   *mq.InMemoryQueue
	Pool    *consumer.Pool
	Metrics *metrics.Collector

	ready   pinger
	closers []func(context.Context) error
}

// New opens the configured store, starts the review consumer and builds the router.
// The caller owns the returned App and must Close it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}
	if cfg.MetricsEnabled {
		app.Metrics = metrics.New()
	}

	if err := app.openStore(ctx); err != nil {
		app.Close()
		return nil, err
	}

	service := performance.NewService(app.Store)

	app.Queue = mq.NewInMemoryQueue(
		mq.WithCapacity(cfg.QueueCapacity),
		mq.WithMaxAttempts(cfg.QueueMaxAttempts),
		mq.WithRedeliveryDelay(cfg.QueueRedeliveryDelay),
		mq.WithMetrics(app.Metrics),
	)
	app.Pool = consumer.NewPool(app.Queue, service,
		consumer.WithWorkers(cfg.QueueWorkers),
		consumer.WithDeduper(mq.NewDeduper(cfg.DedupeSize)),
		consumer.WithMetrics(app.Metrics),
	)
	app.Pool.Start(context.WithoutCancel(ctx))
	// The queue drains before the store goes away, so these run first on Close.
	app.closers = append(app.closers, func(ctx context.Context) error {
		if err := app.Queue.Close(); err != nil {
			return err
		}
		return app.Pool.Shutdown(ctx)
	})

	app.Router = app.routes(performancehandler.NewHandler(service, app.Queue, app.Metrics))
	return app, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
		}
		a.Store = performance.NewStore(pool)
		a.ready = pool
	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("sqlite open: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
		a.Store = store
		a.ready = store
	case config.StoreMongo:
		store, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return fmt.Errorf("mongo connect: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.Store = store
		a.ready = store
	case config.StoreMemory, "":
		a.Store = memstore.New()
	default:
		return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	slog.Info("review store ready", "driver", cfg.StoreDriver)
	return nil
}

func (a *App) routes(handler *performancehandler.Handler) http.Handler {
	cfg := a.Config

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(slog.Default()))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Metrics(a.Metrics))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.Queue.IsClosed() {
			http.Error(w, "queue closed", http.StatusServiceUnavailable)
			return
		}
		if a.ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := a.ready.Ping(ctx); err != nil {
				slog.Warn("readiness ping failed", "err", err)
				http.Error(w, "store not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if a.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", a.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		handler.RegisterRoutes(r)
		r.Group(func(r chi.Router) {
			if cfg.RateLimitPerMinute > 0 {
				var key middleware.RateLimitKeyFunc = middleware.RemoteAddrKey
				if cfg.TrustProxyHeaders {
					key = middleware.HeaderOrIPKey(performancehandler.ProducerIDHeader, middleware.ForwardedForKey)
				}
				r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute, middleware.WithKeyFunc(key)))
			}
			handler.RegisterSubmissionRoutes(r)
		})
	})

	return router
}

// Close stops intake, drains the consumer and releases the store, newest resource
// first. It waits at most Config.ShutdownTimeout.
func (a *App) Close() error {
	timeout := a.Config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Run loads configuration, serves HTTP until SIGINT or SIGTERM and then shuts down
// gracefully.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, cfg.Environment)

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("perfreview server listening", "addr", cfg.Addr, "store", cfg.StoreDriver)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		err = srv.Shutdown(shutdownCtx)
		cancel()
	}

	if closeErr := app.Close(); closeErr != nil {
		slog.Warn("app close failed", "err", closeErr)
	}
	return err
}
