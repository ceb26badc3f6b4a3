package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hyperengineering/ledgersync/internal/enrich"
	"github.com/hyperengineering/ledgersync/internal/types"
)

// CategoryStore defines the store operations needed for category enrichment.
// Implemented by SQLiteStore.
type CategoryStore interface {
	GetUncategorized(ctx context.Context, limit int) ([]types.Transaction, error)
	UpdateCategory(ctx context.Context, id, category, categoryDetail string, status types.CategoryStatus) error
}

// CategoryCoordinator assigns categories to uncategorized transactions.
type CategoryCoordinator struct {
	store       CategoryStore
	categorizer enrich.Categorizer
	interval    time.Duration
	maxAttempts int
	batchSize   int

	mu         sync.Mutex
	retryCount map[string]int // transaction ID -> attempt count
}

// NewCategoryCoordinator creates a coordinator for category enrichment.
func NewCategoryCoordinator(
	store CategoryStore,
	categorizer enrich.Categorizer,
	interval time.Duration,
	maxAttempts int,
	batchSize int,
) *CategoryCoordinator {
	return &CategoryCoordinator{
		store:       store,
		categorizer: categorizer,
		interval:    interval,
		maxAttempts: maxAttempts,
		batchSize:   batchSize,
		retryCount:  make(map[string]int),
	}
}

// Run starts the enrichment coordinator loop. It blocks until ctx is
// cancelled. Processing starts immediately so transactions synced before a
// restart are categorized promptly rather than waiting a full interval.
func (c *CategoryCoordinator) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "category-coordinator",
		"interval", c.interval.String(),
		"max_attempts", c.maxAttempts,
		"batch_size", c.batchSize,
		"model", c.categorizer.ModelName(),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.processBatch(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "category-coordinator",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.processBatch(ctx)
		}
	}
}

// processBatch categorizes one batch of uncategorized transactions,
// continuing on individual failures.
func (c *CategoryCoordinator) processBatch(ctx context.Context) {
	txns, err := c.store.GetUncategorized(ctx, c.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return // Graceful shutdown
		}
		slog.Error("failed to get uncategorized transactions",
			"component", "worker",
			"worker", "category-coordinator",
			"error", err,
		)
		return
	}

	if len(txns) == 0 {
		return
	}

	var succeeded int
	for _, txn := range txns {
		if ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		attempts := c.retryCount[txn.ID]
		c.mu.Unlock()

		if attempts >= c.maxAttempts {
			c.markAsFailed(ctx, txn.ID, attempts)
			continue
		}

		category, err := c.categorizer.Categorize(ctx, txn)
		if err != nil {
			slog.Warn("categorization failed, will retry",
				"component", "worker",
				"worker", "category-coordinator",
				"transaction_id", txn.ID,
				"error", err,
			)
			c.mu.Lock()
			c.retryCount[txn.ID]++
			c.mu.Unlock()
			continue
		}

		if err := c.store.UpdateCategory(ctx, txn.ID, category, "", types.CategoryStatusEnriched); err != nil {
			slog.Error("failed to store category",
				"component", "worker",
				"worker", "category-coordinator",
				"transaction_id", txn.ID,
				"error", err,
			)
			c.mu.Lock()
			c.retryCount[txn.ID]++
			c.mu.Unlock()
			continue
		}

		// Success: remove from retry tracking
		c.mu.Lock()
		delete(c.retryCount, txn.ID)
		c.mu.Unlock()
		succeeded++
	}

	if succeeded > 0 {
		slog.Info("categorized transactions",
			"component", "worker",
			"worker", "category-coordinator",
			"processed", succeeded,
		)
	}
}

// markAsFailed marks a transaction as permanently failed after exhausting
// retry attempts, removing it from the uncategorized queue.
func (c *CategoryCoordinator) markAsFailed(ctx context.Context, txnID string, attempts int) {
	if err := c.store.UpdateCategory(ctx, txnID, "", "", types.CategoryStatusFailed); err != nil {
		slog.Error("failed to mark categorization as failed",
			"component", "worker",
			"worker", "category-coordinator",
			"transaction_id", txnID,
			"error", err,
		)
		return
	}

	slog.Warn("categorization permanently failed after max attempts",
		"component", "worker",
		"worker", "category-coordinator",
		"transaction_id", txnID,
		"attempts", attempts,
	)

	c.mu.Lock()
	delete(c.retryCount, txnID)
	c.mu.Unlock()
}
