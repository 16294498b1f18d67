package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/curius/feedsync/internal/db"
	"github.com/curius/feedsync/internal/source"
	"github.com/curius/feedsync/internal/sync"
	"github.com/curius/feedsync/pkg/config"
	"github.com/curius/feedsync/pkg/logging"
	"github.com/curius/feedsync/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Feedsync Reconciler")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Initialize database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Upstream source client
	sourceClient, err := source.New(&cfg.Source)
	if err != nil {
		logger.Fatal("Failed to create source client", zap.Error(err))
	}

	repo := db.NewRepository(database.DB)
	reconciler := sync.NewReconciler(
		sourceClient,
		db.NewUserRepository(repo),
		db.NewFollowRepository(repo),
		db.NewLinkRepository(repo),
		db.NewSavedLinkRepository(repo),
		cfg.Sync.MaxWorkers,
	)

	// Cancel the context on interrupt so an in-flight pass stops launching
	// new users and the loop exits.
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("Shutting down reconciler...")
		cancel()
	}()

	logger.Info("Reconciler running", zap.Duration("interval", cfg.Sync.Interval))

	runOnce(ctx, reconciler, logger)

	ticker := time.NewTicker(cfg.Sync.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Reconciler exited")
			return
		case <-ticker.C:
			runOnce(ctx, reconciler, logger)
		}
	}
}

// runOnce runs a single reconciliation pass. Failures are logged and left for
// the next tick; the loop never dies on an upstream outage.
func runOnce(ctx context.Context, reconciler *sync.Reconciler, logger *zap.Logger) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	report, err := reconciler.Reconcile(ctx)
	if err != nil {
		logger.Error("Reconciliation pass failed", zap.Error(err))
		return
	}

	logger.Info("Reconciliation pass complete",
		zap.Int("processed", report.Processed),
		zap.Int("errors", report.Errors),
		zap.Duration("duration", time.Since(start)))
}
