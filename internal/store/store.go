package store

import (
	"context"

	"github.com/hyperengineering/ledgersync/internal/types"
)

// ItemStore persists tracked items and their sync cursors.
type ItemStore interface {
	CreateItem(ctx context.Context, accessToken, institutionName string) (*types.Item, error)
	GetItem(ctx context.Context, id string) (*types.Item, error)
	ListItems(ctx context.Context) ([]types.Item, error)

	// SetCursor advances the item's change-feed cursor. Advancing the cursor
	// acknowledges consumption of all prior changes, so callers must only
	// invoke it after every mutation of the cycle has been applied.
	SetCursor(ctx context.Context, id, cursor string) error
}

// AccountStore persists provider accounts and resolves provider account IDs
// to local account IDs.
type AccountStore interface {
	UpsertAccounts(ctx context.Context, itemID string, accounts []types.ProviderAccount) error
	ResolveAccountID(ctx context.Context, providerAccountID string) (string, error)
	ListAccounts(ctx context.Context, itemID string) ([]types.Account, error)
}

// TransactionStore persists transaction rows and supports the reconciliation
// engine's mutations.
type TransactionStore interface {
	GetByProviderID(ctx context.Context, providerTransactionID string) (*types.Transaction, error)
	FindDuplicateCandidates(ctx context.Context, accountID string, amount float64, date string, tolerance float64) ([]types.Transaction, error)
	InsertTransaction(ctx context.Context, accountID string, record types.ProviderTransaction, potentialDuplicate bool) (*types.Transaction, error)
	PromoteTransaction(ctx context.Context, id string, record types.ProviderTransaction) error
	RefreshTransaction(ctx context.Context, id string, record types.ProviderTransaction) error
	UpsertTransaction(ctx context.Context, accountID string, record types.ProviderTransaction) error
	DeleteByProviderID(ctx context.Context, providerTransactionID string) error
	ListTransactions(ctx context.Context, accountID string, limit int) ([]types.Transaction, error)
	GetUncategorized(ctx context.Context, limit int) ([]types.Transaction, error)
	UpdateCategory(ctx context.Context, id, category, categoryDetail string, status types.CategoryStatus) error
}

// Store defines the full storage contract consumed by the sync engine, the
// workers, and the API layer.
type Store interface {
	ItemStore
	AccountStore
	TransactionStore

	GetStats(ctx context.Context) (*types.StoreStats, error)
	Snapshot(ctx context.Context, destPath string) error
	Close() error
}
