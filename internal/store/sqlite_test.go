package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperengineering/ledgersync/internal/types"
)

// newTestStore creates a SQLiteStore backed by a temp file with migrations applied.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledgersync.db"))
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedAccount creates an item with one account and returns the local account ID.
func seedAccount(t *testing.T, s *SQLiteStore, providerAccountID string) string {
	t.Helper()
	ctx := context.Background()

	item, err := s.CreateItem(ctx, "access-token", "Test Bank")
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if err := s.UpsertAccounts(ctx, item.ID, []types.ProviderAccount{
		{ProviderAccountID: providerAccountID, Name: "Checking"},
	}); err != nil {
		t.Fatalf("upsert accounts: %v", err)
	}
	accountID, err := s.ResolveAccountID(ctx, providerAccountID)
	if err != nil {
		t.Fatalf("resolve account: %v", err)
	}
	return accountID
}

func record(id string, amount float64, date string, pending bool) types.ProviderTransaction {
	return types.ProviderTransaction{
		ProviderTransactionID: id,
		ProviderAccountID:     "prov-acct-1",
		Name:                  "COFFEE SHOP",
		Amount:                amount,
		ISOCurrencyCode:       "USD",
		Date:                  date,
		Pending:               pending,
	}
}

// --- Items ---

func TestCreateItem_NilCursor(t *testing.T) {
	// Given: A fresh store
	s := newTestStore(t)
	ctx := context.Background()

	// When: An item is created
	item, err := s.CreateItem(ctx, "access-token", "Test Bank")
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	// Then: It round-trips with a nil cursor (first sync starts from the beginning)
	got, err := s.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Cursor != nil {
		t.Errorf("expected nil cursor on new item, got %q", *got.Cursor)
	}
	if got.AccessToken != "access-token" {
		t.Errorf("unexpected access token: %q", got.AccessToken)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetItem(context.Background(), "no-such-item")
	if !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestSetCursor_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item, err := s.CreateItem(ctx, "access-token", "")
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	if err := s.SetCursor(ctx, item.ID, "cursor-2"); err != nil {
		t.Fatalf("set cursor: %v", err)
	}

	got, err := s.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Cursor == nil || *got.Cursor != "cursor-2" {
		t.Errorf("expected cursor-2, got %v", got.Cursor)
	}
}

func TestSetCursor_UnknownItem(t *testing.T) {
	s := newTestStore(t)

	err := s.SetCursor(context.Background(), "no-such-item", "c1")
	if !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

// --- Accounts ---

func TestUpsertAccounts_RefreshKeepsLocalID(t *testing.T) {
	// Given: An existing account
	s := newTestStore(t)
	ctx := context.Background()
	accountID := seedAccount(t, s, "prov-acct-1")

	item, err := s.ListItems(ctx)
	if err != nil || len(item) != 1 {
		t.Fatalf("list items: %v (%d items)", err, len(item))
	}

	// When: The same provider account is upserted with new metadata
	err = s.UpsertAccounts(ctx, item[0].ID, []types.ProviderAccount{
		{ProviderAccountID: "prov-acct-1", Name: "Renamed Checking"},
	})
	if err != nil {
		t.Fatalf("upsert accounts: %v", err)
	}

	// Then: The local ID is stable and the metadata refreshed
	resolved, err := s.ResolveAccountID(ctx, "prov-acct-1")
	if err != nil {
		t.Fatalf("resolve account: %v", err)
	}
	if resolved != accountID {
		t.Errorf("local account ID changed on upsert: %s != %s", resolved, accountID)
	}

	accounts, err := s.ListAccounts(ctx, item[0].ID)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Name != "Renamed Checking" {
		t.Errorf("unexpected accounts after upsert: %+v", accounts)
	}
}

func TestResolveAccountID_Unknown(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ResolveAccountID(context.Background(), "unknown")
	if !errors.Is(err, ErrAccountNotResolved) {
		t.Errorf("expected ErrAccountNotResolved, got %v", err)
	}
}

// --- Transactions ---

func TestInsertAndGetByProviderID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	accountID := seedAccount(t, s, "prov-acct-1")

	_, err := s.InsertTransaction(ctx, accountID, record("txn-1", 10.00, "2024-01-05", true), false)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetByProviderID(ctx, "txn-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount != 10.00 || !got.Pending || got.PotentialDuplicate {
		t.Errorf("unexpected row: %+v", got)
	}
	if got.CategoryStatus != types.CategoryStatusUncategorized {
		t.Errorf("expected UNCATEGORIZED for empty category, got %s", got.CategoryStatus)
	}
}

func TestFindDuplicateCandidates_ToleranceAndDate(t *testing.T) {
	// Given: A stored transaction of 10.00 on 2024-01-05
	s := newTestStore(t)
	ctx := context.Background()
	accountID := seedAccount(t, s, "prov-acct-1")

	if _, err := s.InsertTransaction(ctx, accountID, record("txn-1", 10.00, "2024-01-05", true), false); err != nil {
		t.Fatalf("insert: %v", err)
	}

	cases := []struct {
		name   string
		amount float64
		date   string
		want   int
	}{
		{"exact match", 10.00, "2024-01-05", 1},
		{"within tolerance", 10.50, "2024-01-05", 1},
		{"at tolerance boundary", 11.00, "2024-01-05", 1},
		{"beyond tolerance", 11.01, "2024-01-05", 0},
		{"different date", 10.00, "2024-01-06", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.FindDuplicateCandidates(ctx, accountID, tc.amount, tc.date, 1.00)
			if err != nil {
				t.Fatalf("find candidates: %v", err)
			}
			if len(got) != tc.want {
				t.Errorf("expected %d candidates, got %d", tc.want, len(got))
			}
		})
	}
}

func TestPromoteTransaction_ReplacesInPlace(t *testing.T) {
	// Given: A pending row
	s := newTestStore(t)
	ctx := context.Background()
	accountID := seedAccount(t, s, "prov-acct-1")

	pending, err := s.InsertTransaction(ctx, accountID, record("txn-pending", 10.00, "2024-01-05", true), false)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	// When: Promoted to its posted counterpart
	posted := record("txn-posted", 10.50, "2024-01-05", false)
	if err := s.PromoteTransaction(ctx, pending.ID, posted); err != nil {
		t.Fatalf("promote: %v", err)
	}

	// Then: The row adopts the posted identity; no second row exists
	got, err := s.GetByProviderID(ctx, "txn-posted")
	if err != nil {
		t.Fatalf("get promoted: %v", err)
	}
	if got.ID != pending.ID {
		t.Errorf("promotion created a new row: %s != %s", got.ID, pending.ID)
	}
	if got.Pending || got.PotentialDuplicate {
		t.Errorf("promotion must clear pending and duplicate flags: %+v", got)
	}
	if got.Amount != 10.50 {
		t.Errorf("expected amount 10.50, got %v", got.Amount)
	}
	if _, err := s.GetByProviderID(ctx, "txn-pending"); !errors.Is(err, ErrTransactionNotFound) {
		t.Errorf("old provider ID should be gone, got %v", err)
	}
}

func TestUpsertTransaction_ReplayYieldsSingleRow(t *testing.T) {
	// Given: An upserted record
	s := newTestStore(t)
	ctx := context.Background()
	accountID := seedAccount(t, s, "prov-acct-1")

	rec := record("txn-1", 10.00, "2024-01-05", false)
	if err := s.UpsertTransaction(ctx, accountID, rec); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// When: The same record is replayed with a changed amount
	rec.Amount = 12.34
	if err := s.UpsertTransaction(ctx, accountID, rec); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	// Then: One row exists with the latest fields
	txns, err := s.ListTransactions(ctx, accountID, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("expected 1 row after replay, got %d", len(txns))
	}
	if txns[0].Amount != 12.34 {
		t.Errorf("expected refreshed amount, got %v", txns[0].Amount)
	}
}

func TestDeleteByProviderID_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	accountID := seedAccount(t, s, "prov-acct-1")

	if _, err := s.InsertTransaction(ctx, accountID, record("txn-1", 10.00, "2024-01-05", false), false); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.DeleteByProviderID(ctx, "txn-1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	// Deleting again is a no-op, not an error
	if err := s.DeleteByProviderID(ctx, "txn-1"); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
	// Deleting an ID that never existed is also fine
	if err := s.DeleteByProviderID(ctx, "never-existed"); err != nil {
		t.Errorf("delete of unknown ID should be a no-op, got %v", err)
	}
}

func TestGetUncategorized_ExcludesPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	accountID := seedAccount(t, s, "prov-acct-1")

	if _, err := s.InsertTransaction(ctx, accountID, record("txn-posted", 10.00, "2024-01-05", false), false); err != nil {
		t.Fatalf("insert posted: %v", err)
	}
	if _, err := s.InsertTransaction(ctx, accountID, record("txn-pending", 20.00, "2024-01-05", true), false); err != nil {
		t.Fatalf("insert pending: %v", err)
	}
	categorized := record("txn-categorized", 30.00, "2024-01-05", false)
	categorized.Category = "FOOD_AND_DRINK"
	if _, err := s.InsertTransaction(ctx, accountID, categorized, false); err != nil {
		t.Fatalf("insert categorized: %v", err)
	}

	got, err := s.GetUncategorized(ctx, 10)
	if err != nil {
		t.Fatalf("get uncategorized: %v", err)
	}
	if len(got) != 1 || got[0].ProviderTransactionID != "txn-posted" {
		t.Errorf("expected only the posted uncategorized row, got %+v", got)
	}
}

func TestUpdateCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	accountID := seedAccount(t, s, "prov-acct-1")

	txn, err := s.InsertTransaction(ctx, accountID, record("txn-1", 10.00, "2024-01-05", false), false)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.UpdateCategory(ctx, txn.ID, "FOOD_AND_DRINK", "Coffee", types.CategoryStatusEnriched); err != nil {
		t.Fatalf("update category: %v", err)
	}

	got, err := s.GetByProviderID(ctx, "txn-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Category != "FOOD_AND_DRINK" || got.CategoryStatus != types.CategoryStatusEnriched {
		t.Errorf("unexpected category state: %+v", got)
	}
}

func TestGetStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	accountID := seedAccount(t, s, "prov-acct-1")

	if _, err := s.InsertTransaction(ctx, accountID, record("txn-1", 10.00, "2024-01-05", true), false); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.InsertTransaction(ctx, accountID, record("txn-2", 10.40, "2024-01-05", false), true); err != nil {
		t.Fatalf("insert duplicate-flagged: %v", err)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ItemCount != 1 || stats.AccountCount != 1 || stats.TransactionCount != 2 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.PendingCount != 1 || stats.DuplicateFlagCount != 1 {
		t.Errorf("unexpected flag counts: %+v", stats)
	}
}

func TestSnapshot_ProducesReadableCopy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	accountID := seedAccount(t, s, "prov-acct-1")
	if _, err := s.InsertTransaction(ctx, accountID, record("txn-1", 10.00, "2024-01-05", false), false); err != nil {
		t.Fatalf("insert: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "snapshot.db")
	if err := s.Snapshot(ctx, dest); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// The snapshot opens as a regular store with the data present
	copy, err := NewSQLiteStore(dest)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	defer copy.Close()

	stats, err := copy.GetStats(ctx)
	if err != nil {
		t.Fatalf("snapshot stats: %v", err)
	}
	if stats.TransactionCount != 1 {
		t.Errorf("expected 1 transaction in snapshot, got %d", stats.TransactionCount)
	}
}
