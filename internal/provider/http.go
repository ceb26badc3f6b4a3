package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperengineering/ledgersync/internal/config"
	"github.com/hyperengineering/ledgersync/internal/types"
	"github.com/sethvargo/go-retry"
)

// Compile-time interface check
var _ Client = (*HTTPClient)(nil)

// HTTPClient talks JSON over HTTPS to the provider API.
type HTTPClient struct {
	baseURL    string
	clientID   string
	secret     string
	maxRetries uint64
	client     *http.Client
}

// NewHTTPClient creates a provider client from configuration.
func NewHTTPClient(cfg config.ProviderConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		clientID:   cfg.ClientID,
		secret:     cfg.Secret,
		maxRetries: uint64(cfg.MaxRetries),
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout),
		},
	}
}

// syncRequest is the wire shape of a change-feed page request. Cursor is a
// pointer so a first sync omits the field entirely instead of sending "".
type syncRequest struct {
	ClientID    string  `json:"client_id"`
	Secret      string  `json:"secret"`
	AccessToken string  `json:"access_token"`
	Cursor      *string `json:"cursor,omitempty"`
	Count       int     `json:"count"`
}

type accountsRequest struct {
	ClientID    string `json:"client_id"`
	Secret      string `json:"secret"`
	AccessToken string `json:"access_token"`
}

type accountsResponse struct {
	Accounts []types.ProviderAccount `json:"accounts"`
}

// SyncTransactions requests one page of the transactions change feed.
func (c *HTTPClient) SyncTransactions(ctx context.Context, accessToken string, cursor *string, pageSize int) (*SyncPage, error) {
	req := syncRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		AccessToken: accessToken,
		Cursor:      cursor,
		Count:       pageSize,
	}

	var page SyncPage
	if err := c.post(ctx, "/transactions/sync", req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetAccounts returns the current account list for the credential.
func (c *HTTPClient) GetAccounts(ctx context.Context, accessToken string) ([]types.ProviderAccount, error) {
	req := accountsRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		AccessToken: accessToken,
	}

	var resp accountsResponse
	if err := c.post(ctx, "/accounts/get", req, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// post sends a JSON request and decodes the response, retrying transient
// failures with exponential backoff.
func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.doOnce(ctx, path, payload, out)
		if err != nil && IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// doOnce performs a single request attempt.
func (c *HTTPClient) doOnce(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("call %s: %w", path, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		// Bound the body read; provider error payloads are small
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   path,
			Message:    string(bytes.TrimSpace(msg)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
