package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"mxiledger/api"
	"mxiledger/application"
	"mxiledger/config"
	"mxiledger/database"
	"mxiledger/domain/interfaces"
	"mxiledger/infrastructure"
	"mxiledger/infrastructure/cache"
	"mxiledger/infrastructure/observability"
	"mxiledger/repository"
	"mxiledger/repository/memory"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// Runtime is the wired operation layer plus the resources behind it
type Runtime struct {
	Core    *application.Core
	Clock   clockwork.Clock
	closers []func()
}

// Close releases resources in reverse order of acquisition
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// ConfigureLogging applies the configured logrus level and format
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	if strings.EqualFold(cfg.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

// Bootstrap connects storage, events, cache and metrics and builds the Core
func Bootstrap(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{Clock: clockwork.NewRealClock()}

	repoFactory, err := openStorage(ctx, cfg, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}

	publisher, registry, err := openEvents(ctx, cfg, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}
	uowFactory := infrastructure.NewUnitOfWorkFactory(repoFactory, publisher)

	log.Info("Initializing metrics...")
	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	metrics := observability.GetMetrics()
	rt.closers = append(rt.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
			log.WithError(err).Warn("Error shutting down metrics")
		}
	})
	infrastructure.RegisterMetricsHandlers(registry, metrics)

	opts := []application.Option{application.WithMetrics(metrics)}
	if cfg.RedisURL != "" {
		log.Info("Connecting to Redis...")
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		rt.closers = append(rt.closers, func() {
			if err := rdb.Close(); err != nil {
				log.WithError(err).Warn("Error closing redis client")
			}
		})
		readCache := cache.NewRedisCache(rdb, cfg.CacheTTL)
		cache.RegisterInvalidation(registry, readCache)
		opts = append(opts, application.WithReadCache(readCache))
		log.Info("Read cache enabled")
	}

	rt.Core = application.NewCore(uowFactory, rt.Clock, opts...)
	return rt, nil
}

func openStorage(ctx context.Context, cfg *config.Config, rt *Runtime) (infrastructure.RepositoryFactory, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL is not set, using the in-memory store")
		return memory.NewStore(cfg.LockTimeout), nil
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	rt.closers = append(rt.closers, func() {
		log.Info("Closing database connection...")
		db.Close()
	})
	log.Info("Database connection established successfully")

	return repository.NewUnitOfWorkFactory(db, cfg.LockTimeout), nil
}

func openEvents(ctx context.Context, cfg *config.Config, rt *Runtime) (interfaces.EventPublisher, infrastructure.LocalHandlerRegistry, error) {
	if cfg.NATSServers == "" {
		log.Info("NATS_SERVERS is not set, dispatching events locally only")
		dispatcher := infrastructure.NewLocalEventDispatcher()
		return dispatcher, dispatcher, nil
	}

	log.Info("Connecting to NATS...")
	client := infrastructure.NewNATSClient(cfg.NATSServers)
	if err := client.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	rt.closers = append(rt.closers, func() {
		if err := client.Close(); err != nil {
			log.WithError(err).Warn("Error closing NATS connection")
		}
	})

	publisher := infrastructure.NewNATSEventPublisher(client, infrastructure.NewEventSubjectMapper())
	if err := publisher.EnsureDomainEventStream(client); err != nil {
		return nil, nil, fmt.Errorf("failed to ensure event stream: %w", err)
	}
	log.Info("NATS event publisher ready")
	return publisher, publisher, nil
}

// Run serves the HTTP API and maintenance jobs until ctx is cancelled
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)
	log.WithField("environment", cfg.Environment).Info("Starting mxiledger...")

	rt, err := Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	scheduler, err := application.NewScheduler(rt.Core, rt.Clock)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	scheduler.Start()
	log.WithField("jobs", scheduler.Jobs()).Info("Maintenance scheduler started")

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(rt.Core).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case err := <-serveErr:
		if err != nil {
			_ = scheduler.Stop()
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown incomplete")
	}
	if err := scheduler.Stop(); err != nil {
		log.WithError(err).Warn("Scheduler shutdown incomplete")
	}

	log.Info("Shutdown completed")
	return nil
}
