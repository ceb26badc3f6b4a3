package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hyperengineering/ledgersync/internal/provider"
	"github.com/hyperengineering/ledgersync/internal/store"
	"github.com/hyperengineering/ledgersync/internal/types"
)

// Fetcher pulls the provider change feed page by page until exhaustion.
type Fetcher struct {
	items    store.ItemStore
	client   provider.Client
	pageSize int
}

// NewFetcher creates a Fetcher.
func NewFetcher(items store.ItemStore, client provider.Client, pageSize int) *Fetcher {
	return &Fetcher{
		items:    items,
		client:   client,
		pageSize: pageSize,
	}
}

// FetchChangeSet accumulates the item's added/modified/removed records across
// pages, in page-arrival order, until the feed reports no more data.
//
// On a page failure the accumulated cursor advance is discarded: the returned
// change-set carries the item's original cursor alongside whatever records
// were already accumulated, and the page error is returned. Callers must
// treat a failed fetch's records as advisory only: the next cycle re-fetches
// from the last durable cursor, so committing them risks nothing but
// re-processing.
func (f *Fetcher) FetchChangeSet(ctx context.Context, itemID string) (*types.ChangeSet, error) {
	item, err := f.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	cs := &types.ChangeSet{
		AccessToken: item.AccessToken,
		Cursor:      item.Cursor,
	}

	cursor := item.Cursor
	pages := 0
	for {
		page, err := f.client.SyncTransactions(ctx, item.AccessToken, cursor, f.pageSize)
		if err != nil {
			// Roll back to the pre-cycle cursor; records stay advisory.
			cs.Cursor = item.Cursor
			slog.Warn("change feed page failed, cursor rolled back",
				"component", "syncer",
				"item_id", itemID,
				"pages_fetched", pages,
				"error", err,
			)
			return cs, fmt.Errorf("fetch page %d: %w", pages+1, err)
		}

		cs.Added = append(cs.Added, page.Added...)
		cs.Modified = append(cs.Modified, page.Modified...)
		cs.Removed = append(cs.Removed, page.Removed...)

		next := page.NextCursor
		cursor = &next
		cs.Cursor = cursor
		pages++

		if !page.HasMore {
			break
		}
	}

	slog.Debug("change set fetched",
		"component", "syncer",
		"item_id", itemID,
		"pages", pages,
		"added", len(cs.Added),
		"modified", len(cs.Modified),
		"removed", len(cs.Removed),
	)
	return cs, nil
}
