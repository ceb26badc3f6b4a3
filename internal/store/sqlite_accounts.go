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

const upsertAccountSQL = `
	INSERT INTO accounts (id, item_id, provider_account_id, name, official_name, type, subtype, mask, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(provider_account_id) DO UPDATE SET
		name = excluded.name,
		official_name = excluded.official_name,
		type = excluded.type,
		subtype = excluded.subtype,
		mask = excluded.mask,
		updated_at = excluded.updated_at`

// UpsertAccounts inserts or refreshes the item's accounts atomically.
// Existing rows keep their local ID and created_at.
func (s *SQLiteStore) UpsertAccounts(ctx context.Context, itemID string, accounts []types.ProviderAccount) error {
	if len(accounts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	for i := range accounts {
		a := &accounts[i]
		_, err := tx.ExecContext(ctx, upsertAccountSQL,
			ulid.Make().String(), itemID, a.ProviderAccountID,
			a.Name, a.OfficialName, a.Type, a.Subtype, a.Mask, now, now)
		if err != nil {
			return fmt.Errorf("upsert account %s: %w", a.ProviderAccountID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ResolveAccountID maps a provider account ID to the local account ID.
// Returns ErrAccountNotResolved when the account is not yet known locally.
func (s *SQLiteStore) ResolveAccountID(ctx context.Context, providerAccountID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM accounts WHERE provider_account_id = ?`, providerAccountID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrAccountNotResolved
	}
	if err != nil {
		return "", fmt.Errorf("resolve account: %w", err)
	}
	return id, nil
}

// ListAccounts returns the item's accounts in creation order.
func (s *SQLiteStore) ListAccounts(ctx context.Context, itemID string) ([]types.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, provider_account_id, name, official_name, type, subtype, mask, created_at, updated_at
		FROM accounts WHERE item_id = ? ORDER BY created_at ASC, id ASC
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]types.Account, 0)
	for rows.Next() {
		var a types.Account
		var createdAt, updatedAt string
		if err := rows.Scan(&a.ID, &a.ItemID, &a.ProviderAccountID, &a.Name,
			&a.OfficialName, &a.Type, &a.Subtype, &a.Mask, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.CreatedAt = parseTime(createdAt)
		a.UpdatedAt = parseTime(updatedAt)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
