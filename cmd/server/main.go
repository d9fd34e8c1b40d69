package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/stockroom/internal/config"
	"github.com/JonMunkholm/stockroom/internal/core"
	_ "github.com/JonMunkholm/stockroom/internal/core/entities" // Register all entities
	"github.com/JonMunkholm/stockroom/internal/logging"
	"github.com/JonMunkholm/stockroom/internal/metrics"
	"github.com/JonMunkholm/stockroom/internal/storage"
	"github.com/JonMunkholm/stockroom/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Database.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	mapping, err := core.LoadHeaderMapping(cfg.Import.MappingFile)
	if err != nil {
		return err
	}

	opts := core.Options{
		MutationTimeout:     cfg.Mutation.Timeout,
		ImportTimeout:       cfg.Import.Timeout,
		ImportMaxConcurrent: cfg.Import.MaxConcurrent,
		ImportMaxWait:       cfg.Import.MaxWaitTime,
		HeaderMapping:       mapping,
	}

	var serverOpts []web.Option
	if cfg.Metrics.Enabled {
		m := metrics.New(prometheus.DefaultRegisterer)
		opts.Observer = m
		serverOpts = append(serverOpts, web.WithMetrics(m, promhttp.Handler()))
	}

	service, err := core.NewService(store.Store, opts)
	if err != nil {
		return err
	}

	for _, e := range service.ListEntities() {
		slog.Debug("entity registered", "entity", e.Key, "table", e.Table, "fields", len(e.Fields))
	}
	slog.Info("entities registered", "count", core.EntityCount())

	server := web.NewServer(service, cfg, serverOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let in-flight imports commit or roll back before the store closes
		if status := service.ImportStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			}
		}

		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
