// Package mysql opens a MySQL-compatible database (MySQL, MariaDB,
// OceanBase in MySQL mode) as a document repository.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/lumenqi/lumen-core/pkg/storage/sqlstore"
)

// Config contains configuration for the MySQL backend.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string

	// Table defaults to sqlstore.DefaultTable.
	Table string
}

// DSN returns the go-sql-driver connection string for cfg.
func (cfg *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
}

// NewClient connects and creates the document table.
func NewClient(ctx context.Context, cfg *Config) (*sqlstore.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("NewMySQLClient: config is nil")
	}
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	client, err := sqlstore.New(ctx, db, sqlstore.MySQL, cfg.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return client, nil
}
