// Package ledgersync is a thin HTTP client for the ledgersync API.
package ledgersync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// APIError is a non-2xx response decoded from the service's RFC 7807 body.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledgersync: %d %s: %s", e.Status, e.Title, e.Detail)
}

// Client calls the ledgersync HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client for the service at baseURL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Health checks service health. No authentication required.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateItem registers a new provider connection.
func (c *Client) CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error) {
	var out Item
	if err := c.do(ctx, http.MethodPost, "/api/v1/items", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListItems returns all tracked items.
func (c *Client) ListItems(ctx context.Context) ([]Item, error) {
	var out []Item
	if err := c.do(ctx, http.MethodGet, "/api/v1/items", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetItem returns one item by ID.
func (c *Client) GetItem(ctx context.Context, itemID string) (*Item, error) {
	var out Item
	if err := c.do(ctx, http.MethodGet, "/api/v1/items/"+url.PathEscape(itemID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAccounts returns the item's accounts.
func (c *Client) ListAccounts(ctx context.Context, itemID string) ([]Account, error) {
	var out []Account
	if err := c.do(ctx, http.MethodGet, "/api/v1/items/"+url.PathEscape(itemID)+"/accounts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTransactions returns up to limit of the item's transactions.
// A non-positive limit uses the server default.
func (c *Client) ListTransactions(ctx context.Context, itemID string, limit int) ([]Transaction, error) {
	path := "/api/v1/items/" + url.PathEscape(itemID) + "/transactions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var out []Transaction
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SyncItem triggers one sync cycle for the item and returns its outcome.
func (c *Client) SyncItem(ctx context.Context, itemID string) (*ItemSyncResult, error) {
	var out ItemSyncResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/items/"+url.PathEscape(itemID)+"/sync", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncAll triggers a sync cycle for every tracked item.
func (c *Client) SyncAll(ctx context.Context) (*SyncRunResult, error) {
	var out SyncRunResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/sync", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Snapshot returns a pre-signed URL for the latest database snapshot.
func (c *Client) Snapshot(ctx context.Context) (*SnapshotURL, error) {
	var out SnapshotURL
	if err := c.do(ctx, http.MethodGet, "/api/v1/snapshot", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends an authenticated JSON request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
