// Package badgerstore keeps documents in an embedded BadgerDB.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/lumenqi/lumen-core/pkg/storage"
)

const keyPrefix = "lumen/doc/"

// Config contains configuration for the Badger backend.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in memory. Useful for tests.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the garbage ratio that triggers a rewrite.
	// Default: 0.5
	GCDiscardRatio float64

	Logger *zap.Logger
}

// DefaultConfig returns a persistent configuration with GC every five
// minutes.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true, GCInterval: 5 * time.Minute, GCDiscardRatio: 0.5}
}

// InMemoryConfig returns a configuration without disk persistence or GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Client implements storage.Repository on BadgerDB.
type Client struct {
	db     *badger.DB
	logger *zap.Logger

	gcInterval time.Duration
	gcRatio    float64
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// Open opens the database and starts value log GC when configured.
func Open(cfg Config) (*Client, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for persistent database")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerstore: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logger.Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}

	c := &Client{
		db:         db,
		logger:     logger.With(zap.String("component", "badgerstore")),
		gcInterval: cfg.GCInterval,
		gcRatio:    cfg.GCDiscardRatio,
	}
	if c.gcRatio <= 0 || c.gcRatio >= 1 {
		c.gcRatio = 0.5
	}
	if c.gcInterval > 0 && !cfg.InMemory {
		c.stopCh = make(chan struct{})
		c.doneCh = make(chan struct{})
		go c.runGC()
	}
	return c, nil
}

// Load reads a document.
func (c *Client) Load(ctx context.Context, doc storage.Document) ([]byte, error) {
	if err := storage.Validate(doc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + string(doc)))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return data, nil
}

// Save writes a document.
func (c *Client) Save(ctx context.Context, doc storage.Document, data []byte) error {
	if err := storage.Validate(doc); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+string(doc)), data)
	})
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// Close stops GC and closes the database.
func (c *Client) Close() error {
	if c.stopCh != nil {
		close(c.stopCh)
		<-c.doneCh
	}
	return c.db.Close()
}

func (c *Client) runGC() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			// ErrNoRewrite means there was nothing to collect.
			if err := c.db.RunValueLogGC(c.gcRatio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				c.logger.Warn("value log GC failed", zap.Error(err))
			}
		}
	}
}

type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}
