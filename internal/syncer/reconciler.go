package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hyperengineering/ledgersync/internal/store"
	"github.com/hyperengineering/ledgersync/internal/types"
)

// Reconciler decides, per incoming record, whether to insert, refresh,
// promote, or flag a potential duplicate. One engine serves both policies:
// the duplicate-aware decision table is primary, and a plain provider-ID
// upsert is the cheaper fallback when duplicate detection is disabled.
type Reconciler struct {
	store              store.Store
	duplicateDetection bool
	tolerance          float64
}

// NewReconciler creates a Reconciler.
func NewReconciler(s store.Store, duplicateDetection bool, tolerance float64) *Reconciler {
	return &Reconciler{
		store:              s,
		duplicateDetection: duplicateDetection,
		tolerance:          tolerance,
	}
}

// Outcome reports what happened to one batch of records. Record-level
// failures are isolated: a skipped or failed record never aborts siblings.
type Outcome struct {
	Applied int
	Skipped int
	Failed  int
	Errors  []string
}

// merge folds another outcome into this one.
func (o *Outcome) merge(other Outcome) {
	o.Applied += other.Applied
	o.Skipped += other.Skipped
	o.Failed += other.Failed
	o.Errors = append(o.Errors, other.Errors...)
}

// Reconcile applies one batch of added-or-modified records for an item.
func (r *Reconciler) Reconcile(ctx context.Context, itemID string, records []types.ProviderTransaction) Outcome {
	var out Outcome

	for i := range records {
		record := records[i]

		if err := validateRecord(record); err != nil {
			slog.Warn("skipping malformed record",
				"component", "reconciler",
				"item_id", itemID,
				"error", err,
			)
			out.Skipped++
			continue
		}

		accountID, err := r.store.ResolveAccountID(ctx, record.ProviderAccountID)
		if errors.Is(err, store.ErrAccountNotResolved) {
			slog.Warn("skipping record for unresolved account",
				"component", "reconciler",
				"item_id", itemID,
				"provider_transaction_id", record.ProviderTransactionID,
				"provider_account_id", record.ProviderAccountID,
			)
			out.Skipped++
			continue
		}
		if err != nil {
			out.Failed++
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", record.ProviderTransactionID, err))
			continue
		}

		if err := r.apply(ctx, accountID, record); err != nil {
			slog.Error("record write failed",
				"component", "reconciler",
				"item_id", itemID,
				"provider_transaction_id", record.ProviderTransactionID,
				"error", err,
			)
			out.Failed++
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", record.ProviderTransactionID, err))
			continue
		}
		out.Applied++
	}

	return out
}

// apply issues the single storage mutation for one resolved record.
func (r *Reconciler) apply(ctx context.Context, accountID string, record types.ProviderTransaction) error {
	if !r.duplicateDetection {
		return r.store.UpsertTransaction(ctx, accountID, record)
	}

	// A row already stored under this provider ID means the provider
	// redelivered the transaction (a modification, or a replayed batch after
	// a withheld cursor). Refresh in place; the proximity heuristic below
	// would otherwise self-match and spawn a spurious duplicate flag.
	existing, err := r.store.GetByProviderID(ctx, record.ProviderTransactionID)
	if err == nil {
		return r.store.RefreshTransaction(ctx, existing.ID, record)
	}
	if !errors.Is(err, store.ErrTransactionNotFound) {
		return err
	}

	candidates, err := r.store.FindDuplicateCandidates(ctx, accountID, record.Amount, record.Date, r.tolerance)
	if err != nil {
		return err
	}

	// Decision table, in precedence order.
	if len(candidates) == 0 {
		_, err := r.store.InsertTransaction(ctx, accountID, record, false)
		return err
	}

	if !record.Pending {
		for i := range candidates {
			if candidates[i].Pending {
				// Canonical pending→posted transition: replace, never duplicate.
				return r.store.PromoteTransaction(ctx, candidates[i].ID, record)
			}
		}
	}

	// Candidates exist but none is a pending→posted match: two genuinely
	// distinct transactions may share date and near-amount, so flag for
	// review instead of merging.
	_, err = r.store.InsertTransaction(ctx, accountID, record, true)
	return err
}

// Delete removes the batch's deleted records by provider transaction ID.
// Deleting an unknown ID is a no-op.
func (r *Reconciler) Delete(ctx context.Context, itemID string, removed []types.RemovedTransaction) Outcome {
	var out Outcome

	for _, rec := range removed {
		if rec.ProviderTransactionID == "" {
			out.Skipped++
			continue
		}
		if err := r.store.DeleteByProviderID(ctx, rec.ProviderTransactionID); err != nil {
			slog.Error("record delete failed",
				"component", "reconciler",
				"item_id", itemID,
				"provider_transaction_id", rec.ProviderTransactionID,
				"error", err,
			)
			out.Failed++
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", rec.ProviderTransactionID, err))
			continue
		}
		out.Applied++
	}

	return out
}
