// Package storage persists the companion's state as named JSON documents.
//
// The companion keeps its working set in memory and writes whole documents
// after each mutation batch, so a backend only needs to load and save
// opaque blobs by name. Backends live in the sub-packages: file, sqlstore
// (with sqlite, postgres and mysql constructors), badgerstore and redisstore.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Document names a persisted document.
type Document string

const (
	DocMemories Document = "memories"
	DocPatterns Document = "patterns"
	DocTraits   Document = "traits"
	DocAutonomy Document = "autonomy"
)

// Documents lists every document the companion persists.
var Documents = []Document{DocMemories, DocPatterns, DocTraits, DocAutonomy}

var (
	// ErrNotFound is returned by Load when a document was never saved.
	ErrNotFound = errors.New("document not found")

	// ErrUnknownDocument is returned for names outside Documents.
	ErrUnknownDocument = errors.New("unknown document")
)

// Repository loads and saves documents.
type Repository interface {
	// Load returns the stored bytes of doc, or ErrNotFound.
	Load(ctx context.Context, doc Document) ([]byte, error)

	// Save replaces the stored bytes of doc.
	Save(ctx context.Context, doc Document, data []byte) error

	// Close releases the backend.
	Close() error
}

// Validate returns ErrUnknownDocument for names outside Documents.
func Validate(doc Document) error {
	for _, d := range Documents {
		if d == doc {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownDocument, doc)
}

// LoadJSON loads doc and decodes it into v. It returns ErrNotFound unchanged
// so callers can fall back to defaults.
func LoadJSON(ctx context.Context, repo Repository, doc Document, v any) error {
	data, err := repo.Load(ctx, doc)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("LoadJSON %s: %w", doc, err)
	}
	return nil
}

// SaveJSON encodes v and saves it as doc.
func SaveJSON(ctx context.Context, repo Repository, doc Document, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("SaveJSON %s: %w", doc, err)
	}
	return repo.Save(ctx, doc, data)
}
