package types

import (
	"encoding/json"
	"time"
)

// CategoryStatus indicates how a transaction's category was assigned.
type CategoryStatus string

const (
	CategoryStatusUncategorized CategoryStatus = "UNCATEGORIZED"
	CategoryStatusProvider      CategoryStatus = "PROVIDER"
	CategoryStatusEnriched      CategoryStatus = "ENRICHED"
	CategoryStatusFailed        CategoryStatus = "FAILED"
)

// Item represents one linked provider connection for a financial institution.
// The cursor is nil until the first successful sync cycle completes.
type Item struct {
	ID              string    `json:"id"`
	AccessToken     string    `json:"-"`
	InstitutionName string    `json:"institution_name,omitempty"`
	Cursor          *string   `json:"cursor,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Account is a financial account belonging to an Item.
type Account struct {
	ID                string    `json:"id"`
	ItemID            string    `json:"item_id"`
	ProviderAccountID string    `json:"provider_account_id"`
	Name              string    `json:"name"`
	OfficialName      string    `json:"official_name,omitempty"`
	Type              string    `json:"type,omitempty"`
	Subtype           string    `json:"subtype,omitempty"`
	Mask              string    `json:"mask,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Transaction is the unit of reconciliation. At most one row exists per
// provider transaction ID; potential-duplicate rows are additional entries,
// never replacements.
type Transaction struct {
	ID                      string         `json:"id"`
	AccountID               string         `json:"account_id"`
	ProviderTransactionID   string         `json:"provider_transaction_id"`
	Category                string         `json:"category,omitempty"`
	CategoryDetail          string         `json:"category_detail,omitempty"`
	CategoryStatus          CategoryStatus `json:"category_status"`
	Type                    string         `json:"type,omitempty"`
	Name                    string         `json:"name"`
	MerchantName            string         `json:"merchant_name,omitempty"`
	Amount                  float64        `json:"amount"`
	ISOCurrencyCode         string         `json:"iso_currency_code,omitempty"`
	UnofficialCurrencyCode  string         `json:"unofficial_currency_code,omitempty"`
	Date                    string         `json:"date"` // YYYY-MM-DD
	Pending                 bool           `json:"pending"`
	AccountOwner            string         `json:"account_owner,omitempty"`
	PotentialDuplicate      bool           `json:"potential_duplicate"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

// ChangeSet is one cycle's aggregated change-feed output. It exists only for
// the duration of a fetch-reconcile cycle and is never persisted.
//
// Cursor holds the value reached by the fetch loop. When the loop aborts on a
// page failure it is rolled back to the value the cycle started from, so a
// caller persisting it never acknowledges pages that were not fully fetched.
type ChangeSet struct {
	Added       []ProviderTransaction `json:"added"`
	Modified    []ProviderTransaction `json:"modified"`
	Removed     []RemovedTransaction  `json:"removed"`
	Cursor      *string               `json:"cursor,omitempty"`
	AccessToken string                `json:"-"`
}

// ProviderTransaction is a transaction record as delivered by the remote
// change feed.
type ProviderTransaction struct {
	ProviderTransactionID  string  `json:"transaction_id"`
	ProviderAccountID      string  `json:"account_id"`
	Category               string  `json:"category,omitempty"`
	CategoryDetail         string  `json:"category_detail,omitempty"`
	Type                   string  `json:"transaction_type,omitempty"`
	Name                   string  `json:"name"`
	MerchantName           string  `json:"merchant_name,omitempty"`
	Amount                 float64 `json:"amount"`
	ISOCurrencyCode        string  `json:"iso_currency_code,omitempty"`
	UnofficialCurrencyCode string  `json:"unofficial_currency_code,omitempty"`
	Date                   string  `json:"date"`
	Pending                bool    `json:"pending"`
	AccountOwner           string  `json:"account_owner,omitempty"`
}

// RemovedTransaction identifies a transaction deleted upstream.
type RemovedTransaction struct {
	ProviderTransactionID string `json:"transaction_id"`
}

// ProviderAccount is an account as delivered by the remote accounts endpoint.
type ProviderAccount struct {
	ProviderAccountID string `json:"account_id"`
	Name              string `json:"name"`
	OfficialName      string `json:"official_name,omitempty"`
	Type              string `json:"type,omitempty"`
	Subtype           string `json:"subtype,omitempty"`
	Mask              string `json:"mask,omitempty"`
}

// ItemSyncResult aggregates the outcome of one item's sync cycle.
type ItemSyncResult struct {
	ItemID         string   `json:"item_id"`
	Added          int      `json:"added"`
	Modified       int      `json:"modified"`
	Removed        int      `json:"removed"`
	Skipped        int      `json:"skipped"`
	CursorAdvanced bool     `json:"cursor_advanced"`
	Errors         []string `json:"errors"`
}

// SyncRunResult aggregates per-item results for a multi-item run. A failure
// in one item's cycle never aborts the others; failed items are reported in
// Failures keyed by item ID.
type SyncRunResult struct {
	Items    []ItemSyncResult  `json:"items"`
	Failures map[string]string `json:"failures"`
}

// CreateItemRequest is the API input for registering a new item.
type CreateItemRequest struct {
	AccessToken     string `json:"access_token"`
	InstitutionName string `json:"institution_name,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	ItemCount        int64  `json:"item_count"`
	TransactionCount int64  `json:"transaction_count"`
}

// StoreStats holds aggregate store statistics.
type StoreStats struct {
	ItemCount          int64 `json:"item_count"`
	AccountCount       int64 `json:"account_count"`
	TransactionCount   int64 `json:"transaction_count"`
	PendingCount       int64 `json:"pending_count"`
	DuplicateFlagCount int64 `json:"duplicate_flag_count"`
	UncategorizedCount int64 `json:"uncategorized_count"`
}

// MarshalJSON ensures nil slices in ItemSyncResult marshal as [] not null.
func (r ItemSyncResult) MarshalJSON() ([]byte, error) {
	if r.Errors == nil {
		r.Errors = []string{}
	}
	type Alias ItemSyncResult
	return json.Marshal(Alias(r))
}

// MarshalJSON ensures nil fields in SyncRunResult marshal as empty containers.
func (r SyncRunResult) MarshalJSON() ([]byte, error) {
	if r.Items == nil {
		r.Items = []ItemSyncResult{}
	}
	if r.Failures == nil {
		r.Failures = map[string]string{}
	}
	type Alias SyncRunResult
	return json.Marshal(Alias(r))
}

// MarshalJSON ensures nil slices in ChangeSet marshal as [] not null.
func (c ChangeSet) MarshalJSON() ([]byte, error) {
	if c.Added == nil {
		c.Added = []ProviderTransaction{}
	}
	if c.Modified == nil {
		c.Modified = []ProviderTransaction{}
	}
	if c.Removed == nil {
		c.Removed = []RemovedTransaction{}
	}
	type Alias ChangeSet
	return json.Marshal(Alias(c))
}
