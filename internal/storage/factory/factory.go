// Package factory builds the archive backend selected by
// configuration.
package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/apexrush/simulation/internal/config"
	"github.com/apexrush/simulation/internal/database"
	"github.com/apexrush/simulation/internal/storage"
	"github.com/apexrush/simulation/internal/storage/gormdb"
	"github.com/apexrush/simulation/internal/storage/memory"
)

// NewBackend creates a storage backend based on configuration.
func NewBackend(cfg config.StorageConfig, log zerolog.Logger) (storage.Backend, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(cfg.Memory), nil

	case "sqlite":
		mgr := database.NewManager(log)
		db, err := mgr.GetSqliteDB("")
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite archive: %w", err)
		}
		mgr.DB = db
		mgr.IsValid = true
		mgr.ShouldSaveLocal = true
		mgr.SqliteFilePath = cfg.SQLite.Path
		return gormdb.New(mgr, gormdb.Config{DumpInterval: cfg.SQLite.DumpInterval}), nil

	case "postgres":
		mgr := database.NewManager(log)
		if err := mgr.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect archive database: %w", err)
		}
		if mgr.ShouldSaveLocal {
			// Postgres was unreachable and the manager fell back to
			// in-memory SQLite; give it somewhere to dump.
			mgr.SqliteFilePath = cfg.SQLite.Path
		}
		return gormdb.New(mgr, gormdb.Config{DumpInterval: cfg.SQLite.DumpInterval}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
