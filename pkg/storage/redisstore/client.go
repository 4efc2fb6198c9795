// Package redisstore keeps documents as Redis string keys.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lumenqi/lumen-core/pkg/storage"
)

// DefaultKeyPrefix namespaces the document keys.
const DefaultKeyPrefix = "lumen:"

// Config contains configuration for the Redis backend.
type Config struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix defaults to DefaultKeyPrefix.
	KeyPrefix string
}

// Client implements storage.Repository on Redis.
type Client struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewClient connects to Redis and verifies the connection with PING.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil || cfg.Addr == "" {
		return nil, errors.New("NewRedisClient: address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("NewRedisClient: %w", err)
	}
	return NewFromClient(rdb, cfg.KeyPrefix), nil
}

// NewFromClient wraps an existing Redis client. The client is closed on
// Close.
func NewFromClient(rdb redis.UniversalClient, prefix string) *Client {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Client{rdb: rdb, prefix: prefix}
}

func (c *Client) key(doc storage.Document) string {
	return c.prefix + string(doc)
}

// Load reads a document.
func (c *Client) Load(ctx context.Context, doc storage.Document) ([]byte, error) {
	if err := storage.Validate(doc); err != nil {
		return nil, err
	}
	data, err := c.rdb.Get(ctx, c.key(doc)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return data, nil
}

// Save writes a document without expiry.
func (c *Client) Save(ctx context.Context, doc storage.Document, data []byte) error {
	if err := storage.Validate(doc); err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.key(doc), data, 0).Err(); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (c *Client) Close() error {
	return c.rdb.Close()
}
