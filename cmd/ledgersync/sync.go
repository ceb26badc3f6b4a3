package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/ledgersync/internal/config"
	"github.com/hyperengineering/ledgersync/internal/provider"
	"github.com/hyperengineering/ledgersync/internal/store"
	"github.com/hyperengineering/ledgersync/internal/syncer"
)

var syncItemID string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle and exit",
	Long:  "Fetch and reconcile pending changes for all items (or one item with --item), then exit.",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncItemID, "item", "", "Sync only the given item ID")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	client := provider.NewHTTPClient(cfg.Provider)
	engine := syncer.New(db, client, cfg.Sync)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var result any
	if syncItemID != "" {
		result, err = engine.SyncItem(ctx, syncItemID)
	} else {
		result, err = engine.SyncAll(ctx)
	}
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
