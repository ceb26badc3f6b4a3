package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/ledgersync/internal/snapshot"
)

// SnapshotCapableStore represents a store that can write a snapshot copy of
// the database to the given path.
type SnapshotCapableStore interface {
	Snapshot(ctx context.Context, destPath string) error
}

// SnapshotCoordinator generates periodic database snapshots and uploads them
// to S3 when an uploader is configured.
type SnapshotCoordinator struct {
	store    SnapshotCapableStore
	uploader snapshot.Uploader
	dir      string
	interval time.Duration
}

// NewSnapshotCoordinator creates a coordinator writing snapshots under dir.
// The uploader parameter is optional; if nil, no S3 upload is attempted.
func NewSnapshotCoordinator(
	store SnapshotCapableStore,
	dir string,
	interval time.Duration,
	uploader snapshot.Uploader,
) *SnapshotCoordinator {
	return &SnapshotCoordinator{
		store:    store,
		uploader: uploader,
		dir:      dir,
		interval: interval,
	}
}

// SnapshotPath returns the path the coordinator writes snapshots to.
func (c *SnapshotCoordinator) SnapshotPath() string {
	return filepath.Join(c.dir, "snapshot.db")
}

// Run starts the coordinator loop. Generates a snapshot immediately on start,
// then on each interval. Respects context cancellation for graceful shutdown.
func (c *SnapshotCoordinator) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "snapshot-coordinator",
		"interval", c.interval.String(),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Generate a snapshot immediately on start
	c.generateSnapshot(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "snapshot-coordinator",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.generateSnapshot(ctx)
		}
	}
}

// generateSnapshot writes one snapshot and uploads it if configured.
func (c *SnapshotCoordinator) generateSnapshot(ctx context.Context) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		slog.Warn("failed to create snapshot directory",
			"component", "worker",
			"worker", "snapshot-coordinator",
			"error", err,
		)
		return
	}

	path := c.SnapshotPath()
	if err := c.store.Snapshot(ctx, path); err != nil {
		if ctx.Err() != nil {
			return // Graceful shutdown
		}
		slog.Warn("snapshot generation failed",
			"component", "worker",
			"worker", "snapshot-coordinator",
			"error", err,
		)
		return
	}

	slog.Info("snapshot generated",
		"component", "worker",
		"worker", "snapshot-coordinator",
		"path", path,
	)

	// Upload failures are logged but not fatal; the local snapshot remains valid
	if c.uploader != nil {
		if err := c.uploader.Upload(ctx, path); err != nil {
			slog.Warn("snapshot upload to S3 failed",
				"component", "worker",
				"worker", "snapshot-coordinator",
				"error", err,
			)
			return
		}
		slog.Info("snapshot uploaded to S3",
			"component", "worker",
			"worker", "snapshot-coordinator",
		)
	}
}
