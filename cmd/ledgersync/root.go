package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/ledgersync/internal/api"
	"github.com/hyperengineering/ledgersync/internal/config"
	"github.com/hyperengineering/ledgersync/internal/enrich"
	"github.com/hyperengineering/ledgersync/internal/provider"
	"github.com/hyperengineering/ledgersync/internal/snapshot"
	"github.com/hyperengineering/ledgersync/internal/store"
	"github.com/hyperengineering/ledgersync/internal/syncer"
	"github.com/hyperengineering/ledgersync/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ledgersync",
	Short: "Ledgersync - incremental transaction sync service",
	RunE:  run,
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// 3. Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", cfg.Log.Level)

	// 4. Initialize store (migrations, WAL mode)
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	// 5. Initialize provider client and sync engine
	client := provider.NewHTTPClient(cfg.Provider)
	engine := syncer.New(db, client, cfg.Sync)
	slog.Info("sync engine initialized",
		"page_size", cfg.Sync.PageSize,
		"concurrency", cfg.Sync.Concurrency,
		"duplicate_detection", cfg.Sync.DuplicateDetection,
	)

	// 6. Initialize snapshot uploader (NoopUploader when unconfigured)
	uploader, err := snapshot.NewUploader(cfg.Snapshot)
	if err != nil {
		return err
	}

	// 7. Initialize HTTP router
	handler := api.NewHandler(db, engine, uploader, cfg.Auth.APIKey, Version)
	router := api.NewRouter(handler)

	// 8. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 9. Background workers
	var wg sync.WaitGroup

	if interval := time.Duration(cfg.Sync.Interval); interval > 0 {
		syncWorker := worker.NewSyncCoordinator(engine, interval)
		startWorker(ctx, &wg, "sync-coordinator", syncWorker.Run)
	}

	if cfg.Enrichment.Enabled {
		var categorizer enrich.Categorizer = enrich.NoopCategorizer{}
		if cfg.Enrichment.APIKey != "" {
			categorizer = enrich.NewOpenAI(cfg.Enrichment.APIKey, cfg.Enrichment.Model)
		}
		categoryWorker := worker.NewCategoryCoordinator(db, categorizer,
			time.Duration(cfg.Enrichment.Interval),
			cfg.Enrichment.MaxAttempts,
			cfg.Enrichment.BatchSize,
		)
		startWorker(ctx, &wg, "category-coordinator", categoryWorker.Run)
	}

	if interval := time.Duration(cfg.Snapshot.Interval); interval > 0 {
		snapshotWorker := worker.NewSnapshotCoordinator(db,
			filepath.Join(filepath.Dir(cfg.Database.Path), "snapshots"),
			interval, uploader)
		startWorker(ctx, &wg, "snapshot-coordinator", snapshotWorker.Run)
	}

	// 10. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		// Any other error indicates an actual server failure that should trigger shutdown.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel() // Trigger shutdown on server failure
		}
	}()

	// 11. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 12. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 12a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 12b. Wait for workers to complete
	wg.Wait()

	// 12c. Close store
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
