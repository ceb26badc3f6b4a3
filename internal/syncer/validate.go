package syncer

import (
	"fmt"
	"math"
	"time"

	"github.com/hyperengineering/ledgersync/internal/types"
)

// MalformedRecordError indicates a provider record that fails boundary
// validation. The record is skipped; it never aborts the batch.
type MalformedRecordError struct {
	ProviderTransactionID string
	Field                 string
	Reason                string
}

func (e *MalformedRecordError) Error() string {
	id := e.ProviderTransactionID
	if id == "" {
		id = "<missing id>"
	}
	return fmt.Sprintf("malformed record %s: %s %s", id, e.Field, e.Reason)
}

// validateRecord checks required fields of an incoming provider transaction.
// The provider schema makes transaction_id, account_id, amount, and date
// required; everything else is optional display metadata.
func validateRecord(record types.ProviderTransaction) error {
	if record.ProviderTransactionID == "" {
		return &MalformedRecordError{Field: "transaction_id", Reason: "is required"}
	}
	if record.ProviderAccountID == "" {
		return &MalformedRecordError{
			ProviderTransactionID: record.ProviderTransactionID,
			Field:                 "account_id",
			Reason:                "is required",
		}
	}
	if math.IsNaN(record.Amount) || math.IsInf(record.Amount, 0) {
		return &MalformedRecordError{
			ProviderTransactionID: record.ProviderTransactionID,
			Field:                 "amount",
			Reason:                "must be a finite number",
		}
	}
	if record.Date == "" {
		return &MalformedRecordError{
			ProviderTransactionID: record.ProviderTransactionID,
			Field:                 "date",
			Reason:                "is required",
		}
	}
	if _, err := time.Parse("2006-01-02", record.Date); err != nil {
		return &MalformedRecordError{
			ProviderTransactionID: record.ProviderTransactionID,
			Field:                 "date",
			Reason:                "must be YYYY-MM-DD",
		}
	}
	return nil
}
