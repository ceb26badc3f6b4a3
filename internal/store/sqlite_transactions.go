package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/ledgersync/internal/types"
	"github.com/oklog/ulid/v2"
)

const transactionColumns = `id, account_id, provider_transaction_id, category, category_detail,
	category_status, type, name, merchant_name, amount, iso_currency_code,
	unofficial_currency_code, date, pending, account_owner, potential_duplicate,
	created_at, updated_at`

// categoryStatusFor derives the initial category status of an incoming record.
func categoryStatusFor(record types.ProviderTransaction) types.CategoryStatus {
	if record.Category != "" {
		return types.CategoryStatusProvider
	}
	return types.CategoryStatusUncategorized
}

// GetByProviderID returns the transaction with the given provider transaction
// ID, or ErrTransactionNotFound.
func (s *SQLiteStore) GetByProviderID(ctx context.Context, providerTransactionID string) (*types.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE provider_transaction_id = ?`,
		providerTransactionID)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return txn, nil
}

// FindDuplicateCandidates returns transactions on the account with the same
// date and an amount within tolerance of the given amount. The provider may
// briefly represent one real-world transaction as a pending hold and a posted
// settlement with slightly different amounts, so equality is too strict here.
func (s *SQLiteStore) FindDuplicateCandidates(ctx context.Context, accountID string, amount float64, date string, tolerance float64) ([]types.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = ? AND date = ? AND ABS(amount - ?) <= ?
		ORDER BY created_at ASC, id ASC
	`, accountID, date, amount, tolerance)
	if err != nil {
		return nil, fmt.Errorf("find duplicate candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]types.Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, *txn)
	}
	return candidates, rows.Err()
}

// InsertTransaction inserts a new row for the incoming record.
func (s *SQLiteStore) InsertTransaction(ctx context.Context, accountID string, record types.ProviderTransaction, potentialDuplicate bool) (*types.Transaction, error) {
	now := time.Now().UTC()
	txn := &types.Transaction{
		ID:                     ulid.Make().String(),
		AccountID:              accountID,
		ProviderTransactionID:  record.ProviderTransactionID,
		Category:               record.Category,
		CategoryDetail:         record.CategoryDetail,
		CategoryStatus:         categoryStatusFor(record),
		Type:                   record.Type,
		Name:                   record.Name,
		MerchantName:           record.MerchantName,
		Amount:                 record.Amount,
		ISOCurrencyCode:        record.ISOCurrencyCode,
		UnofficialCurrencyCode: record.UnofficialCurrencyCode,
		Date:                   record.Date,
		Pending:                record.Pending,
		AccountOwner:           record.AccountOwner,
		PotentialDuplicate:     potentialDuplicate,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, txn.ID, txn.AccountID, txn.ProviderTransactionID, txn.Category, txn.CategoryDetail,
		string(txn.CategoryStatus), txn.Type, txn.Name, txn.MerchantName, txn.Amount,
		txn.ISOCurrencyCode, txn.UnofficialCurrencyCode, txn.Date, boolToInt(txn.Pending),
		txn.AccountOwner, boolToInt(txn.PotentialDuplicate), formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	return txn, nil
}

// PromoteTransaction updates a pending row in place to its posted
// counterpart. The row adopts the incoming record's provider transaction ID
// and mutable fields; pending and potential_duplicate are cleared. This is
// the canonical pending→posted transition and must replace, not duplicate.
func (s *SQLiteStore) PromoteTransaction(ctx context.Context, id string, record types.ProviderTransaction) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET
			provider_transaction_id = ?,
			category = ?,
			category_detail = ?,
			category_status = ?,
			type = ?,
			name = ?,
			merchant_name = ?,
			amount = ?,
			iso_currency_code = ?,
			unofficial_currency_code = ?,
			account_owner = ?,
			pending = 0,
			potential_duplicate = 0,
			updated_at = ?
		WHERE id = ?
	`, record.ProviderTransactionID, record.Category, record.CategoryDetail,
		string(categoryStatusFor(record)), record.Type, record.Name, record.MerchantName,
		record.Amount, record.ISOCurrencyCode, record.UnofficialCurrencyCode,
		record.AccountOwner, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("promote transaction: %w", err)
	}
	return requireAffected(result)
}

// RefreshTransaction overwrites a row's mutable fields from the incoming
// record, keyed by local ID. Used when the provider redelivers a transaction
// already stored under the same provider transaction ID.
func (s *SQLiteStore) RefreshTransaction(ctx context.Context, id string, record types.ProviderTransaction) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET
			category = ?,
			category_detail = ?,
			category_status = ?,
			type = ?,
			name = ?,
			merchant_name = ?,
			amount = ?,
			iso_currency_code = ?,
			unofficial_currency_code = ?,
			date = ?,
			pending = ?,
			account_owner = ?,
			updated_at = ?
		WHERE id = ?
	`, record.Category, record.CategoryDetail, string(categoryStatusFor(record)),
		record.Type, record.Name, record.MerchantName, record.Amount,
		record.ISOCurrencyCode, record.UnofficialCurrencyCode, record.Date,
		boolToInt(record.Pending), record.AccountOwner, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("refresh transaction: %w", err)
	}
	return requireAffected(result)
}

// UpsertTransaction inserts the record or overwrites all mutable fields of
// the existing row keyed by provider transaction ID. This is the idempotent
// fallback used when duplicate detection is disabled; it performs no
// pending→posted reconciliation.
func (s *SQLiteStore) UpsertTransaction(ctx context.Context, accountID string, record types.ProviderTransaction) error {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(provider_transaction_id) DO UPDATE SET
			account_id = excluded.account_id,
			category = excluded.category,
			category_detail = excluded.category_detail,
			category_status = excluded.category_status,
			type = excluded.type,
			name = excluded.name,
			merchant_name = excluded.merchant_name,
			amount = excluded.amount,
			iso_currency_code = excluded.iso_currency_code,
			unofficial_currency_code = excluded.unofficial_currency_code,
			date = excluded.date,
			pending = excluded.pending,
			account_owner = excluded.account_owner,
			updated_at = excluded.updated_at
	`, ulid.Make().String(), accountID, record.ProviderTransactionID, record.Category,
		record.CategoryDetail, string(categoryStatusFor(record)), record.Type, record.Name,
		record.MerchantName, record.Amount, record.ISOCurrencyCode,
		record.UnofficialCurrencyCode, record.Date, boolToInt(record.Pending),
		record.AccountOwner, now, now)
	if err != nil {
		return fmt.Errorf("upsert transaction: %w", err)
	}
	return nil
}

// DeleteByProviderID deletes the transaction with the given provider
// transaction ID. Deleting a non-existent ID is a no-op, not an error.
func (s *SQLiteStore) DeleteByProviderID(ctx context.Context, providerTransactionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE provider_transaction_id = ?`, providerTransactionID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the account's transactions, most recent first.
func (s *SQLiteStore) ListTransactions(ctx context.Context, accountID string, limit int) ([]types.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE account_id = ?
		ORDER BY date DESC, id DESC
		LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]types.Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}

// GetUncategorized returns posted transactions awaiting category enrichment.
// Pending transactions are excluded; they may still be promoted and their
// final name/amount can change.
func (s *SQLiteStore) GetUncategorized(ctx context.Context, limit int) ([]types.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE category_status = ? AND pending = 0
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, string(types.CategoryStatusUncategorized), limit)
	if err != nil {
		return nil, fmt.Errorf("get uncategorized: %w", err)
	}
	defer rows.Close()

	txns := make([]types.Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}

// UpdateCategory writes an enrichment result (or failure marker) for a row.
func (s *SQLiteStore) UpdateCategory(ctx context.Context, id, category, categoryDetail string, status types.CategoryStatus) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET category = ?, category_detail = ?, category_status = ?, updated_at = ?
		WHERE id = ?
	`, category, categoryDetail, string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireAffected(result)
}

// requireAffected converts a zero-row UPDATE into ErrTransactionNotFound.
func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// scanTransaction scans a row into a Transaction.
func scanTransaction(scanner interface{ Scan(...any) error }) (*types.Transaction, error) {
	var txn types.Transaction
	var status string
	var pending, duplicate int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&txn.ID,
		&txn.AccountID,
		&txn.ProviderTransactionID,
		&txn.Category,
		&txn.CategoryDetail,
		&status,
		&txn.Type,
		&txn.Name,
		&txn.MerchantName,
		&txn.Amount,
		&txn.ISOCurrencyCode,
		&txn.UnofficialCurrencyCode,
		&txn.Date,
		&pending,
		&txn.AccountOwner,
		&duplicate,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.CategoryStatus = types.CategoryStatus(status)
	txn.Pending = pending != 0
	txn.PotentialDuplicate = duplicate != 0
	txn.CreatedAt = parseTime(createdAt)
	txn.UpdatedAt = parseTime(updatedAt)
	return &txn, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
