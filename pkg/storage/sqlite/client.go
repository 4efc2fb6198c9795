// Package sqlite opens a SQLite database file as a document repository.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lumenqi/lumen-core/pkg/storage/sqlstore"
)

// Config contains configuration for the SQLite backend.
type Config struct {
	// DBPath is the database file. Its directory is created when missing.
	DBPath string

	// Table defaults to sqlstore.DefaultTable.
	Table string
}

// NewClient opens the database with WAL journaling and creates the
// document table.
func NewClient(ctx context.Context, cfg *Config) (*sqlstore.Client, error) {
	if cfg == nil || cfg.DBPath == "" {
		return nil, fmt.Errorf("NewSQLiteClient: database path is required")
	}
	if dir := filepath.Dir(cfg.DBPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	client, err := sqlstore.New(ctx, db, sqlstore.SQLite, cfg.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return client, nil
}
