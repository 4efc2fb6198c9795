// Package sqlstore implements storage.Repository on a single SQL table with
// one row per document. The sqlite, postgres and mysql packages open the
// database and pick the matching Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/lumenqi/lumen-core/pkg/storage"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "lumen_documents"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Dialect holds the statements that differ between databases. Each
// statement is a format string taking the table name.
type Dialect struct {
	Name string

	// CreateTable creates the table when it does not exist.
	CreateTable string

	// Upsert inserts or replaces a row; its parameters are
	// (name, data, updated_at).
	Upsert string

	// Select reads the data of one row; its parameter is the name.
	Select string
}

var (
	SQLite = Dialect{
		Name: "sqlite3",
		CreateTable: `CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		Upsert: `INSERT INTO %s (name, data, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		Select: `SELECT data FROM %s WHERE name = ?`,
	}

	Postgres = Dialect{
		Name: "postgres",
		CreateTable: `CREATE TABLE IF NOT EXISTS %s (
			name VARCHAR(64) PRIMARY KEY,
			data BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		Upsert: `INSERT INTO %s (name, data, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		Select: `SELECT data FROM %s WHERE name = $1`,
	}

	MySQL = Dialect{
		Name: "mysql",
		CreateTable: `CREATE TABLE IF NOT EXISTS %s (
			name VARCHAR(64) PRIMARY KEY,
			data LONGBLOB NOT NULL,
			updated_at DATETIME(6) NOT NULL
		)`,
		Upsert: `INSERT INTO %s (name, data, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = VALUES(updated_at)`,
		Select: `SELECT data FROM %s WHERE name = ?`,
	}
)

// Client implements storage.Repository over database/sql.
type Client struct {
	db      *sql.DB
	dialect Dialect
	table   string
	now     func() time.Time
}

// New wraps an open database and creates the document table. The client
// owns db and closes it on Close.
func New(ctx context.Context, db *sql.DB, dialect Dialect, table string) (*Client, error) {
	if db == nil {
		return nil, errors.New("sqlstore: db is nil")
	}
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("sqlstore: invalid table name %q", table)
	}

	c := &Client{db: db, dialect: dialect, table: table, now: time.Now}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(dialect.CreateTable, table)); err != nil {
		return nil, fmt.Errorf("initTables: %w", err)
	}
	return c, nil
}

// Dialect returns the dialect in use.
func (c *Client) Dialect() Dialect {
	return c.dialect
}

// Load reads one document row.
func (c *Client) Load(ctx context.Context, doc storage.Document) ([]byte, error) {
	if err := storage.Validate(doc); err != nil {
		return nil, err
	}
	var data []byte
	err := c.db.QueryRowContext(ctx, fmt.Sprintf(c.dialect.Select, c.table), string(doc)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return data, nil
}

// Save upserts one document row.
func (c *Client) Save(ctx context.Context, doc storage.Document, data []byte) error {
	if err := storage.Validate(doc); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx, fmt.Sprintf(c.dialect.Upsert, c.table), string(doc), data, c.now().UTC())
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *Client) Close() error {
	return c.db.Close()
}
