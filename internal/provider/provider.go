// Package provider implements the client for the remote financial data
// provider's change-feed and accounts endpoints.
package provider

import (
	"context"

	"github.com/hyperengineering/ledgersync/internal/types"
)

// SyncPage is one page of the provider's transactions change feed.
type SyncPage struct {
	Added      []types.ProviderTransaction `json:"added"`
	Modified   []types.ProviderTransaction `json:"modified"`
	Removed    []types.RemovedTransaction  `json:"removed"`
	HasMore    bool                        `json:"has_more"`
	NextCursor string                      `json:"next_cursor"`
}

// Client defines the provider operations consumed by the sync engine.
type Client interface {
	// SyncTransactions requests one page of the change feed. A nil cursor
	// means "start from the beginning"; it is omitted from the request body,
	// never sent as an empty string.
	SyncTransactions(ctx context.Context, accessToken string, cursor *string, pageSize int) (*SyncPage, error)

	// GetAccounts returns the current account list for the credential.
	GetAccounts(ctx context.Context, accessToken string) ([]types.ProviderAccount, error)
}
