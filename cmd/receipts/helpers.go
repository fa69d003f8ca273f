package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/receipt-review/internal/batch"
	"github.com/Veraticus/receipt-review/internal/config"
	"github.com/Veraticus/receipt-review/internal/engine"
	"github.com/Veraticus/receipt-review/internal/extract"
	"github.com/Veraticus/receipt-review/internal/model"
	"github.com/Veraticus/receipt-review/internal/storage"
	"github.com/spf13/viper"
)

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

func newSaver(store *storage.SQLiteStorage, cfg *config.Config, progress engine.ProgressFunc) *engine.Saver {
	return engine.NewSaverWithConfig(store, engine.Config{
		Workers:  cfg.SaveWorkers,
		Retry:    cfg.Retry,
		Progress: progress,
	})
}

func newSession() *batch.Session {
	return batch.NewSession(batch.WithLogger(slog.Default().With("component", "batch")))
}

// loadResults reads extraction results from path. Statement files are
// recognised by extension unless asOFX forces it.
func loadResults(ctx context.Context, path string, asOFX bool) ([]model.ExtractionResult, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx", ".qfx":
		asOFX = true
	}
	if !asOFX {
		return extract.LoadFile(ctx, path)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return extract.NewOFXParser().Parse(ctx, f)
}
