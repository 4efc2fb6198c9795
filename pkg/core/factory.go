package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lumenqi/lumen-core/pkg/llm"
	"github.com/lumenqi/lumen-core/pkg/llm/anthropic"
	"github.com/lumenqi/lumen-core/pkg/llm/deepseek"
	"github.com/lumenqi/lumen-core/pkg/llm/ollama"
	"github.com/lumenqi/lumen-core/pkg/llm/openai"
	"github.com/lumenqi/lumen-core/pkg/storage"
	"github.com/lumenqi/lumen-core/pkg/storage/badgerstore"
	"github.com/lumenqi/lumen-core/pkg/storage/file"
	"github.com/lumenqi/lumen-core/pkg/storage/mysql"
	"github.com/lumenqi/lumen-core/pkg/storage/postgres"
	"github.com/lumenqi/lumen-core/pkg/storage/redisstore"
	"github.com/lumenqi/lumen-core/pkg/storage/sqlite"
)

// NewHostedProvider creates the hosted model client for cfg. It returns
// nil without error when the source is disabled.
func NewHostedProvider(cfg LLMConfig) (llm.Provider, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		client, err := openai.NewClient(&openai.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
		if err != nil {
			return nil, NewCoreError("NewHostedProvider", err)
		}
		return client, nil
	case ProviderDeepSeek:
		client, err := deepseek.NewClient(&deepseek.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
		if err != nil {
			return nil, NewCoreError("NewHostedProvider", err)
		}
		return client, nil
	case ProviderAnthropic:
		client, err := anthropic.NewClient(&anthropic.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
		if err != nil {
			return nil, NewCoreError("NewHostedProvider", err)
		}
		return client, nil
	default:
		return nil, NewCoreError("NewHostedProvider", fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider))
	}
}

// NewLocalProvider creates the local model client for cfg. It returns nil
// without error when the source is disabled.
func NewLocalProvider(cfg LLMConfig) (llm.Provider, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	switch cfg.Provider {
	case ProviderOllama:
		client, err := ollama.NewClient(&ollama.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
		if err != nil {
			return nil, NewCoreError("NewLocalProvider", err)
		}
		return client, nil
	default:
		return nil, NewCoreError("NewLocalProvider", fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider))
	}
}

// NewRepository opens the storage backend named by cfg.Provider.
func NewRepository(ctx context.Context, cfg StorageConfig, logger *zap.Logger) (storage.Repository, error) {
	var (
		repo storage.Repository
		err  error
	)
	switch cfg.Provider {
	case ProviderFile:
		repo, err = file.NewClient(&file.Config{Dir: cfg.File.Dir})
	case ProviderSQLite:
		repo, err = sqlite.NewClient(ctx, &sqlite.Config{DBPath: cfg.SQLite.Path, Table: cfg.SQLite.Table})
	case ProviderPostgres:
		pg := cfg.Postgres
		repo, err = postgres.NewClient(ctx, &postgres.Config{
			Host:     pg.Host,
			Port:     pg.Port,
			User:     pg.User,
			Password: pg.Password,
			DBName:   pg.DBName,
			SSLMode:  pg.SSLMode,
			Table:    pg.Table,
		})
	case ProviderMySQL:
		my := cfg.MySQL
		repo, err = mysql.NewClient(ctx, &mysql.Config{
			Host:     my.Host,
			Port:     my.Port,
			User:     my.User,
			Password: my.Password,
			DBName:   my.DBName,
			Table:    my.Table,
		})
	case ProviderBadger:
		bc := badgerstore.DefaultConfig(cfg.Badger.Path)
		if cfg.Badger.InMemory {
			bc = badgerstore.InMemoryConfig()
		}
		bc.Logger = logger
		repo, err = badgerstore.Open(bc)
	case ProviderRedis:
		repo, err = redisstore.NewClient(ctx, &redisstore.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	default:
		return nil, NewCoreError("NewRepository", fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider))
	}
	if err != nil {
		return nil, NewCoreError("NewRepository", fmt.Errorf("%w: %v", ErrStorageOperation, err))
	}
	return repo, nil
}

func durationOr(d Duration, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return time.Duration(d)
}
