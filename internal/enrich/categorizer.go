// Package enrich assigns spending categories to synced transactions using an
// LLM behind a narrow, mockable interface.
package enrich

import (
	"context"

	"github.com/hyperengineering/ledgersync/internal/types"
)

// Categorizer defines the interface contract for transaction categorization.
type Categorizer interface {
	Categorize(ctx context.Context, txn types.Transaction) (string, error)
	ModelName() string
}

// Categories is the closed taxonomy the model must choose from. Responses
// outside this set are rejected rather than stored.
var Categories = []string{
	"GROCERIES",
	"DINING",
	"TRANSPORT",
	"SHOPPING",
	"ENTERTAINMENT",
	"TRAVEL",
	"UTILITIES",
	"RENT",
	"HEALTH",
	"INCOME",
	"TRANSFER",
	"FEES",
	"OTHER",
}

// NoopCategorizer satisfies Categorizer without calling any API. Used when no
// OpenAI credential is configured; every transaction maps to OTHER.
type NoopCategorizer struct{}

func (NoopCategorizer) Categorize(ctx context.Context, txn types.Transaction) (string, error) {
	return "OTHER", nil
}

func (NoopCategorizer) ModelName() string { return "noop" }
