package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestItemSyncResult_MarshalNilErrors(t *testing.T) {
	// Given: A result with no errors recorded
	r := ItemSyncResult{ItemID: "item-1", Added: 3}

	// When: Marshalled to JSON
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	// Then: errors is [] not null
	if strings.Contains(string(data), `"errors":null`) {
		t.Errorf("expected empty array for errors, got: %s", data)
	}
	if !strings.Contains(string(data), `"errors":[]`) {
		t.Errorf("expected \"errors\":[], got: %s", data)
	}
}

func TestSyncRunResult_MarshalNilContainers(t *testing.T) {
	// Given: A zero-value run result
	r := SyncRunResult{}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	if strings.Contains(string(data), "null") {
		t.Errorf("expected no null containers, got: %s", data)
	}
}

func TestChangeSet_MarshalNilSlices(t *testing.T) {
	// Given: An empty change-set
	cs := ChangeSet{}

	data, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	for _, field := range []string{`"added":[]`, `"modified":[]`, `"removed":[]`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("expected %s in output, got: %s", field, data)
		}
	}
}

func TestChangeSet_OmitsNilCursor(t *testing.T) {
	// Given: A change-set with no cursor (first sync)
	cs := ChangeSet{}

	data, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	// Then: cursor is omitted entirely, never the empty string
	if strings.Contains(string(data), "cursor") {
		t.Errorf("expected cursor omitted, got: %s", data)
	}
}

func TestItem_AccessTokenNeverMarshalled(t *testing.T) {
	// Given: An item carrying its access token
	it := Item{ID: "item-1", AccessToken: "access-sandbox-secret"}

	data, err := json.Marshal(it)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	if strings.Contains(string(data), "access-sandbox-secret") {
		t.Errorf("access token leaked into JSON: %s", data)
	}
}
