package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyperengineering/ledgersync/internal/types"
)

// mockCategoryStore serves a fixed uncategorized queue and records updates.
type mockCategoryStore struct {
	queue   []types.Transaction
	listErr error

	updates   []categoryUpdate
	updateErr error
}

type categoryUpdate struct {
	id       string
	category string
	status   types.CategoryStatus
}

func (m *mockCategoryStore) GetUncategorized(ctx context.Context, limit int) ([]types.Transaction, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(m.queue) > limit {
		return m.queue[:limit], nil
	}
	return m.queue, nil
}

func (m *mockCategoryStore) UpdateCategory(ctx context.Context, id, category, categoryDetail string, status types.CategoryStatus) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, categoryUpdate{id: id, category: category, status: status})

	// Drop from the queue the way the real store's status filter would
	for i := range m.queue {
		if m.queue[i].ID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
	return nil
}

// mockCategorizer fails a configurable number of times before succeeding.
type mockCategorizer struct {
	category  string
	failTimes int
	calls     int
}

func (m *mockCategorizer) Categorize(ctx context.Context, txn types.Transaction) (string, error) {
	m.calls++
	if m.calls <= m.failTimes {
		return "", errors.New("model unavailable")
	}
	return m.category, nil
}

func (m *mockCategorizer) ModelName() string { return "mock" }

func uncategorized(ids ...string) []types.Transaction {
	txns := make([]types.Transaction, 0, len(ids))
	for _, id := range ids {
		txns = append(txns, types.Transaction{ID: id, Name: "MERCHANT " + id})
	}
	return txns
}

func newCategoryCoordinator(store CategoryStore, cat *mockCategorizer, maxAttempts int) *CategoryCoordinator {
	return NewCategoryCoordinator(store, cat, time.Minute, maxAttempts, 25)
}

func TestCategoryCoordinator_CategorizesBatch(t *testing.T) {
	store := &mockCategoryStore{queue: uncategorized("t1", "t2")}
	cat := &mockCategorizer{category: "GROCERIES"}

	c := newCategoryCoordinator(store, cat, 3)
	c.processBatch(context.Background())

	if len(store.updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(store.updates))
	}
	for _, u := range store.updates {
		if u.category != "GROCERIES" || u.status != types.CategoryStatusEnriched {
			t.Errorf("unexpected update: %+v", u)
		}
	}
}

func TestCategoryCoordinator_RetriesThenMarksFailed(t *testing.T) {
	store := &mockCategoryStore{queue: uncategorized("t1")}
	cat := &mockCategorizer{failTimes: 100}

	c := newCategoryCoordinator(store, cat, 3)

	// Three failing passes exhaust the attempts; the fourth marks FAILED
	for i := 0; i < 4; i++ {
		c.processBatch(context.Background())
	}

	if len(store.updates) != 1 {
		t.Fatalf("expected one terminal update, got %d", len(store.updates))
	}
	if store.updates[0].status != types.CategoryStatusFailed {
		t.Errorf("expected FAILED status, got %s", store.updates[0].status)
	}
	if _, tracked := c.retryCount["t1"]; tracked {
		t.Error("retry tracking must be cleared after terminal failure")
	}
}

func TestCategoryCoordinator_SuccessClearsRetryCount(t *testing.T) {
	store := &mockCategoryStore{queue: uncategorized("t1")}
	cat := &mockCategorizer{category: "DINING", failTimes: 2}

	c := newCategoryCoordinator(store, cat, 5)
	for i := 0; i < 3; i++ {
		c.processBatch(context.Background())
	}

	if len(store.updates) != 1 || store.updates[0].status != types.CategoryStatusEnriched {
		t.Fatalf("expected eventual success, got %+v", store.updates)
	}
	if _, tracked := c.retryCount["t1"]; tracked {
		t.Error("retry tracking must be cleared after success")
	}
}

func TestCategoryCoordinator_ListErrorIsNonFatal(t *testing.T) {
	store := &mockCategoryStore{listErr: errors.New("db locked")}
	c := newCategoryCoordinator(store, &mockCategorizer{category: "OTHER"}, 3)

	// Must not panic or update anything
	c.processBatch(context.Background())
	if len(store.updates) != 0 {
		t.Errorf("no updates expected, got %+v", store.updates)
	}
}

func TestCategoryCoordinator_RunStopsOnCancel(t *testing.T) {
	store := &mockCategoryStore{}
	c := NewCategoryCoordinator(store, &mockCategorizer{category: "OTHER"}, 10*time.Millisecond, 3, 25)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not stop on context cancellation")
	}
}
