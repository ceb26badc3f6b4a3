package ledgersync

import "time"

// Item is a linked provider connection as returned by the API.
type Item struct {
	ID              string    `json:"id"`
	InstitutionName string    `json:"institution_name,omitempty"`
	Cursor          *string   `json:"cursor,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Account is a financial account belonging to an item.
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

// Transaction is a synced transaction row.
type Transaction struct {
	ID                    string    `json:"id"`
	AccountID             string    `json:"account_id"`
	ProviderTransactionID string    `json:"provider_transaction_id"`
	Category              string    `json:"category,omitempty"`
	CategoryDetail        string    `json:"category_detail,omitempty"`
	CategoryStatus        string    `json:"category_status"`
	Name                  string    `json:"name"`
	MerchantName          string    `json:"merchant_name,omitempty"`
	Amount                float64   `json:"amount"`
	ISOCurrencyCode       string    `json:"iso_currency_code,omitempty"`
	Date                  string    `json:"date"`
	Pending               bool      `json:"pending"`
	PotentialDuplicate    bool      `json:"potential_duplicate"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// CreateItemRequest registers a new item.
type CreateItemRequest struct {
	AccessToken     string `json:"access_token"`
	InstitutionName string `json:"institution_name,omitempty"`
}

// ItemSyncResult is one item's sync cycle outcome.
type ItemSyncResult struct {
	ItemID         string   `json:"item_id"`
	Added          int      `json:"added"`
	Modified       int      `json:"modified"`
	Removed        int      `json:"removed"`
	Skipped        int      `json:"skipped"`
	CursorAdvanced bool     `json:"cursor_advanced"`
	Errors         []string `json:"errors"`
}

// SyncRunResult aggregates a multi-item sync run.
type SyncRunResult struct {
	Items    []ItemSyncResult  `json:"items"`
	Failures map[string]string `json:"failures"`
}

// Health is the service health response.
type Health struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	ItemCount        int64  `json:"item_count"`
	TransactionCount int64  `json:"transaction_count"`
}

// SnapshotURL is a pre-signed snapshot download location.
type SnapshotURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
