// Package main wires together the dining menu service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/columbiacals/menud/internal/adapter"
	"github.com/columbiacals/menud/internal/adapter/columbia"
	"github.com/columbiacals/menud/internal/adapter/cornell"
	"github.com/columbiacals/menud/internal/aggregate"
	"github.com/columbiacals/menud/internal/api"
	"github.com/columbiacals/menud/internal/clock/system"
	"github.com/columbiacals/menud/internal/config"
	"github.com/columbiacals/menud/internal/fetch"
	"github.com/columbiacals/menud/internal/logging"
	"github.com/columbiacals/menud/internal/menu"
	"github.com/columbiacals/menud/internal/metrics"
	"github.com/columbiacals/menud/internal/normalize"
	"github.com/columbiacals/menud/internal/nutrition"
	"github.com/columbiacals/menud/internal/scheduler"
	"github.com/columbiacals/menud/internal/snapshot"
	gcspersister "github.com/columbiacals/menud/internal/snapshot/gcs"
	localpersister "github.com/columbiacals/menud/internal/snapshot/local"
	postgrespersister "github.com/columbiacals/menud/internal/snapshot/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	clock := system.New()

	persister, cleanup, err := newPersister(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init snapshot persister: %w", err)
	}
	defer cleanup()

	store := snapshot.New(persister, clock, logger.Named("snapshot"))
	if err := store.Restore(ctx); err != nil {
		// Boot cold rather than refuse to start; the first cycle
		// repopulates everything.
		logger.Warn("snapshot restore failed", zap.Error(err))
	}

	fetcher := fetch.New(fetch.Config{
		UserAgent: cfg.Adapters.UserAgent,
		Timeout:   cfg.AdapterTimeout(),
	})

	columbiaAdapter, err := columbia.New(fetcher, clock, logger.Named("columbia"))
	if err != nil {
		return fmt.Errorf("init columbia adapter: %w", err)
	}
	cornellAdapter, err := cornell.New(fetcher, clock, logger.Named("cornell"))
	if err != nil {
		return fmt.Errorf("init cornell adapter: %w", err)
	}
	registry, err := adapter.NewRegistry(columbiaAdapter, cornellAdapter)
	if err != nil {
		return fmt.Errorf("build adapter registry: %w", err)
	}
	registry, err = registry.Filter(cfg.Adapters.Enabled)
	if err != nil {
		return fmt.Errorf("filter adapters: %w", err)
	}

	usda := nutrition.NewClient(nutrition.ClientConfig{
		APIKey:         cfg.Nutrition.APIKey,
		BaseURL:        cfg.Nutrition.BaseURL,
		Timeout:        time.Duration(cfg.Nutrition.TimeoutSeconds) * time.Second,
		RequestsPerSec: cfg.Nutrition.RequestsPerSec,
		Burst:          cfg.Nutrition.Burst,
	}, logger.Named("usda"))
	enricher := nutrition.New(usda, clock, logger.Named("enricher"), nutrition.Config{
		Workers:   cfg.Nutrition.Workers,
		CacheSize: cfg.Nutrition.CacheSize,
		CacheTTL:  cfg.CacheTTL(),
	})

	aggregator := aggregate.New(
		registry,
		normalize.New(logger.Named("normalize")),
		enricher,
		store,
		clock,
		logger.Named("aggregate"),
		aggregate.Config{
			AdapterTimeout: cfg.AdapterTimeout(),
			FetchWorkers:   cfg.Adapters.FetchWorkers,
		},
	)

	sched := scheduler.New(aggregator, logger.Named("scheduler"), scheduler.Config{
		Interval:     cfg.RefreshInterval(),
		CycleTimeout: cfg.CycleTimeout(),
		RunOnStart:   cfg.Scheduler.RunOnStart,
	})

	apiServer := api.NewServer(store, sched, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	schedErr := make(chan error, 1)
	go func() {
		logger.Info("scheduler started",
			zap.Duration("interval", cfg.RefreshInterval()),
			zap.Strings("universities", registry.Universities()))
		schedErr <- sched.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			schedErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-schedErr:
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return runErr
}

// newPersister builds the snapshot persister named by storage.provider.
func newPersister(ctx context.Context, cfg config.Config) (menu.SnapshotPersister, func(), error) {
	noop := func() {}
	switch cfg.Storage.Provider {
	case "local":
		p, err := localpersister.New(localpersister.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, noop, err
		}
		return p, noop, nil
	case "postgres":
		p, err := postgrespersister.New(ctx, postgrespersister.Config{DSN: cfg.Storage.PostgresDSN})
		if err != nil {
			return nil, noop, err
		}
		return p, p.Close, nil
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("create gcs client: %w", err)
		}
		p, err := gcspersister.New(client, gcspersister.Config{
			Bucket: cfg.Storage.GCSBucket,
			Object: cfg.Storage.GCSObject,
		})
		if err != nil {
			return nil, noop, err
		}
		cleanup := func() {
			if closeErr := client.Close(); closeErr != nil {
				zap.L().Warn("gcs client close failed", zap.Error(closeErr))
			}
		}
		return p, cleanup, nil
	case "noop":
		return snapshot.NopPersister{}, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
}
