// Package postgres opens a PostgreSQL database as a document repository.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/lumenqi/lumen-core/pkg/storage/sqlstore"
)

// Config contains configuration for the PostgreSQL backend.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string

	// SSLMode defaults to "disable".
	SSLMode string

	// Table defaults to sqlstore.DefaultTable.
	Table string
}

// DSN returns the lib/pq connection string for cfg.
func (cfg *Config) DSN() string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)
}

// NewClient connects and creates the document table.
func NewClient(ctx context.Context, cfg *Config) (*sqlstore.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("NewPostgresClient: config is nil")
	}
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	client, err := sqlstore.New(ctx, db, sqlstore.Postgres, cfg.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return client, nil
}
