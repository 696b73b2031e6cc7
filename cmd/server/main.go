package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/cvideo/internal/config"
	"github.com/PaulBabatuyi/cvideo/internal/database"
	"github.com/PaulBabatuyi/cvideo/internal/events"
	"github.com/PaulBabatuyi/cvideo/internal/middleware"
	"github.com/PaulBabatuyi/cvideo/internal/observability"
	"github.com/PaulBabatuyi/cvideo/internal/server"
	"github.com/PaulBabatuyi/cvideo/internal/service"
	"github.com/PaulBabatuyi/cvideo/internal/storage"
	"github.com/PaulBabatuyi/cvideo/internal/worker"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "cvideo",
	Short:        "Video upload server",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := observability.InitLogger(cfg.Observability.Dev)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	metrics, err := observability.InitMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	store, err := newStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	var sweeper worker.Sweeper
	if fs, ok := store.(*storage.FilesystemStorage); ok {
		sweeper = fs
	}

	var (
		journal service.Journal = service.NopJournal{}
		history service.HistoryReader
	)
	if cfg.Database.URL != "" {
		db, err := database.NewPostgresDB(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		journal, history = db, db

		version, err := db.SchemaVersion()
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		logger.Info("audit journal enabled", zap.Uint("schema_version", version))
	}

	hub := events.NewHub(logger.Named("events"))
	defer hub.Close()

	videos := service.NewVideoService(service.Config{
		Store:                store,
		Journal:              journal,
		History:              history,
		Events:               hub,
		Metrics:              metrics,
		Logger:               logger.Named("service"),
		Extensions:           cfg.Storage.Extensions,
		MaxConcurrentUploads: cfg.Server.MaxConcurrentUploads,
		UploadQueueTimeout:   cfg.Server.UploadQueueTimeout,
	})

	srv := server.New(server.Config{
		Videos:         videos,
		Events:         hub,
		Logger:         logger.Named("http"),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	// Logging and Metrics sit directly on the mux so they see the matched route.
	handler := middleware.Chain(srv.Handler(),
		middleware.CORS(cfg.CORS.AllowedOrigins),
		middleware.RequestID,
		middleware.Logging(logger.Named("http")),
		middleware.Metrics(metrics),
	)

	if cfg.Observability.Tracing {
		tp, err := observability.InitTracerProvider(os.Stdout, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			observability.ShutdownTracerProvider(shutdownCtx, tp, logger)
		}()
		handler = observability.TraceHandler(handler, tp)
	}

	statsWorker := worker.NewStatsWorker(&worker.WorkerConfig{
		Videos:       videos,
		Metrics:      metrics,
		Logger:       logger.Named("worker"),
		PollInterval: cfg.Worker.PollInterval,
		Sweeper:      sweeper,
	})
	statsWorker.Start(ctx)
	defer statsWorker.Stop()

	metricsServer := observability.StartMetricsServer(cfg.Server.MetricsPort, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server",
			zap.String("addr", cfg.Server.Addr),
			zap.String("storage", cfg.Storage.Type),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Websocket connections are hijacked and not tracked by Shutdown.
	hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
	return nil
}

func newStore(ctx context.Context, cfg config.StorageConfig) (storage.VideoStore, error) {
	switch cfg.Type {
	case config.StorageMemory:
		return storage.NewMemoryStorage(nil), nil
	case config.StorageS3:
		return storage.NewS3Storage(ctx, storage.S3Options{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	default:
		return storage.NewFilesystemStorage(cfg.VideoDir), nil
	}
}
