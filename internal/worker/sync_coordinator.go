// Package worker contains the background coordinators: periodic sync cycles,
// transaction category enrichment, and snapshot generation. Each coordinator
// runs a ticker loop and stops cleanly on context cancellation.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/ledgersync/internal/types"
)

// SyncRunner runs one sync cycle across all tracked items.
// Implemented by syncer.Syncer.
type SyncRunner interface {
	SyncAll(ctx context.Context) (*types.SyncRunResult, error)
}

// SyncCoordinator triggers periodic sync cycles for all items.
type SyncCoordinator struct {
	runner   SyncRunner
	interval time.Duration
}

// NewSyncCoordinator creates a coordinator with the given runner and interval.
func NewSyncCoordinator(runner SyncRunner, interval time.Duration) *SyncCoordinator {
	return &SyncCoordinator{
		runner:   runner,
		interval: interval,
	}
}

// Run starts the coordinator loop. It syncs immediately on start, then on
// each interval, and blocks until ctx is cancelled.
func (c *SyncCoordinator) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "sync-coordinator",
		"interval", c.interval.String(),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Sync immediately on start so a restart doesn't wait a full interval
	c.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "sync-coordinator",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.runCycle(ctx)
		}
	}
}

// runCycle runs one SyncAll pass and logs the aggregate outcome.
func (c *SyncCoordinator) runCycle(ctx context.Context) {
	run, err := c.runner.SyncAll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return // Graceful shutdown
		}
		slog.Error("sync cycle failed",
			"component", "worker",
			"worker", "sync-coordinator",
			"error", err,
		)
		return
	}

	var added, modified, removed int
	for _, item := range run.Items {
		added += item.Added
		modified += item.Modified
		removed += item.Removed
	}

	slog.Info("sync cycle completed",
		"component", "worker",
		"worker", "sync-coordinator",
		"items", len(run.Items),
		"failures", len(run.Failures),
		"added", added,
		"modified", modified,
		"removed", removed,
	)
}
