// Package file stores documents as JSON files in a directory.
//
// Each save writes a temporary file and renames it over the document, so a
// crash never leaves a half-written document behind.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/lumenqi/lumen-core/pkg/storage"
)

// Client implements storage.Repository on the local file system.
type Client struct {
	dir string
	mu  sync.Mutex
}

// Config contains configuration for the file backend.
type Config struct {
	// Dir is created when missing.
	Dir string
}

// NewClient creates a file repository rooted at cfg.Dir.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.Dir == "" {
		return nil, errors.New("NewFileClient: directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("NewFileClient: %w", err)
	}
	return &Client{dir: cfg.Dir}, nil
}

func (c *Client) path(doc storage.Document) string {
	return filepath.Join(c.dir, string(doc)+".json")
}

// Load reads a document file.
func (c *Client) Load(ctx context.Context, doc storage.Document) ([]byte, error) {
	if err := storage.Validate(doc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.path(doc))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return data, nil
}

// Save atomically replaces a document file.
func (c *Client) Save(ctx context.Context, doc storage.Document, data []byte) error {
	if err := storage.Validate(doc); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tmp, err := os.CreateTemp(c.dir, string(doc)+".*.tmp")
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("Save: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("Save: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("Save: close: %w", err)
	}
	if err := os.Rename(tmpName, c.path(doc)); err != nil {
		return fmt.Errorf("Save: rename: %w", err)
	}
	return nil
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}
