package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/ledgersync/internal/provider"
	"github.com/hyperengineering/ledgersync/internal/snapshot"
	"github.com/hyperengineering/ledgersync/internal/store"
	"github.com/hyperengineering/ledgersync/internal/types"
)

// Syncer defines the sync operations exposed over the API.
// Implemented by syncer.Syncer.
type Syncer interface {
	SyncItem(ctx context.Context, itemID string) (*types.ItemSyncResult, error)
	SyncAll(ctx context.Context) (*types.SyncRunResult, error)
}

// Handler implements the API handlers
type Handler struct {
	store    store.Store
	syncer   Syncer
	uploader snapshot.Uploader
	apiKey   string
	version  string
}

// NewHandler creates a new Handler with store.Store interface
func NewHandler(s store.Store, sy Syncer, uploader snapshot.Uploader, apiKey, version string) *Handler {
	return &Handler{
		store:    s,
		syncer:   sy,
		uploader: uploader,
		apiKey:   apiKey,
		version:  version,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:           "healthy",
		Version:          h.version,
		ItemCount:        stats.ItemCount,
		TransactionCount: stats.TransactionCount,
	})
}

// CreateItem handles POST /api/v1/items
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req types.CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if strings.TrimSpace(req.AccessToken) == "" {
		WriteProblem(w, r, http.StatusUnprocessableEntity, "access_token is required")
		return
	}

	item, err := h.store.CreateItem(r.Context(), req.AccessToken, req.InstitutionName)
	if err != nil {
		slog.Error("create item failed", "error", err)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// ListItems handles GET /api/v1/items
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListItems(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if items == nil {
		items = []types.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// GetItem handles GET /api/v1/items/{id}
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// SyncItem handles POST /api/v1/items/{id}/sync
func (h *Handler) SyncItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	result, err := h.syncer.SyncItem(r.Context(), itemID)
	if err != nil {
		slog.Error("sync failed", "item_id", itemID, "error", err)
		mapSyncError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SyncAll handles POST /api/v1/sync
func (h *Handler) SyncAll(w http.ResponseWriter, r *http.Request) {
	run, err := h.syncer.SyncAll(r.Context())
	if err != nil {
		slog.Error("sync run failed", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// mapSyncError distinguishes unknown items and upstream provider failures
// from internal errors.
func mapSyncError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *provider.APIError
	switch {
	case errors.Is(err, store.ErrItemNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Item not found")
	case errors.Is(err, provider.ErrRateLimited), errors.As(err, &apiErr):
		WriteProblem(w, r, http.StatusBadGateway, "Provider request failed")
	default:
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}

// ListAccounts handles GET /api/v1/items/{id}/accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	if _, err := h.store.GetItem(r.Context(), itemID); err != nil {
		MapStoreError(w, r, err)
		return
	}

	accounts, err := h.store.ListAccounts(r.Context(), itemID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []types.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

// ListTransactions handles GET /api/v1/items/{id}/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			WriteProblem(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	if _, err := h.store.GetItem(r.Context(), itemID); err != nil {
		MapStoreError(w, r, err)
		return
	}

	accounts, err := h.store.ListAccounts(r.Context(), itemID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	txns := []types.Transaction{}
	for _, account := range accounts {
		if len(txns) >= limit {
			break
		}
		batch, err := h.store.ListTransactions(r.Context(), account.ID, limit-len(txns))
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		txns = append(txns, batch...)
	}
	writeJSON(w, http.StatusOK, txns)
}

// SnapshotURL handles GET /api/v1/snapshot
func (h *Handler) SnapshotURL(w http.ResponseWriter, r *http.Request) {
	url, expiry, err := h.uploader.PresignedURL(r.Context())
	if err != nil {
		if errors.Is(err, snapshot.ErrNotConfigured) {
			WriteProblem(w, r, http.StatusServiceUnavailable, "Snapshot storage not configured")
			return
		}
		slog.Error("presigned url failed", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"url":        url,
		"expires_at": expiry.UTC().Format(time.RFC3339),
	})
}
