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

// CreateItem registers a new tracked item with a nil cursor.
func (s *SQLiteStore) CreateItem(ctx context.Context, accessToken, institutionName string) (*types.Item, error) {
	now := time.Now().UTC()
	item := &types.Item{
		ID:              ulid.Make().String(),
		AccessToken:     accessToken,
		InstitutionName: institutionName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, access_token, institution_name, cursor, created_at, updated_at)
		VALUES (?, ?, ?, NULL, ?, ?)
	`, item.ID, item.AccessToken, item.InstitutionName, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	return item, nil
}

// GetItem returns the item with the given ID, or ErrItemNotFound.
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*types.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, access_token, institution_name, cursor, created_at, updated_at
		FROM items WHERE id = ?
	`, id)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ListItems returns all tracked items in creation order.
func (s *SQLiteStore) ListItems(ctx context.Context) ([]types.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, access_token, institution_name, cursor, created_at, updated_at
		FROM items ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]types.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// SetCursor persists the item's new change-feed cursor.
func (s *SQLiteStore) SetCursor(ctx context.Context, id, cursor string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE items SET cursor = ?, updated_at = ? WHERE id = ?
	`, cursor, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set cursor rows affected: %w", err)
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// scanItem scans a row into an Item, handling the nullable cursor.
func scanItem(scanner interface{ Scan(...any) error }) (*types.Item, error) {
	var item types.Item
	var cursor sql.NullString
	var createdAt, updatedAt string

	if err := scanner.Scan(&item.ID, &item.AccessToken, &item.InstitutionName,
		&cursor, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if cursor.Valid {
		item.Cursor = &cursor.String
	}
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	return &item, nil
}
