package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/lumenqi/lumen-core/pkg/evolution"
	"github.com/lumenqi/lumen-core/pkg/llm/anthropic"
	"github.com/lumenqi/lumen-core/pkg/llm/deepseek"
	"github.com/lumenqi/lumen-core/pkg/llm/ollama"
	"github.com/lumenqi/lumen-core/pkg/llm/openai"
	"github.com/lumenqi/lumen-core/pkg/metrics"
)

// Provider names accepted in LLMConfig.Provider and StorageConfig.Provider.
const (
	ProviderNone = "none"

	ProviderOpenAI    = "openai"
	ProviderDeepSeek  = "deepseek"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"

	ProviderFile     = "file"
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
	ProviderMySQL    = "mysql"
	ProviderBadger   = "badger"
	ProviderRedis    = "redis"
)

// Config contains the complete configuration of a Companion.
//
// Example:
//
//	config := core.DefaultConfig()
//	config.HostedLLM = core.LLMConfig{
//	    Provider: "openai",
//	    APIKey:   "sk-...",
//	}
//	config.Storage.Provider = "sqlite"
//	config.Storage.SQLite.Path = "./lumen.db"
type Config struct {
	// HostedLLM is the hosted model source. Provider "none" disables it.
	HostedLLM LLMConfig `json:"hosted_llm"`

	// LocalLLM is the local model source. Provider "none" disables it.
	LocalLLM LLMConfig `json:"local_llm"`

	// Storage selects and configures the persistence backend.
	Storage StorageConfig `json:"storage"`

	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Evolution    EvolutionConfig    `json:"evolution"`
	Memory       MemoryConfig       `json:"memory"`
	Log          LogConfig          `json:"log"`
	Metrics      MetricsConfig      `json:"metrics"`
}

// LLMConfig contains configuration for one model source.
//
// Hosted providers: openai, deepseek, anthropic. Local providers: ollama.
type LLMConfig struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key,omitempty"`
	Model    string `json:"model,omitempty"`

	// BaseURL uses the provider default if empty.
	BaseURL string `json:"base_url,omitempty"`
}

// Enabled reports whether the source should be built.
func (c LLMConfig) Enabled() bool {
	return c.Provider != "" && c.Provider != ProviderNone
}

// StorageConfig selects a backend. Only the section matching Provider is
// read.
type StorageConfig struct {
	// Provider is one of file, sqlite, postgres, mysql, badger, redis.
	Provider string `json:"provider"`

	File     FileStoreConfig `json:"file"`
	SQLite   SQLiteConfig    `json:"sqlite"`
	Postgres PostgresConfig  `json:"postgres"`
	MySQL    MySQLConfig     `json:"mysql"`
	Badger   BadgerConfig    `json:"badger"`
	Redis    RedisConfig     `json:"redis"`
}

// FileStoreConfig configures the JSON file backend.
type FileStoreConfig struct {
	Dir string `json:"dir"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	Path  string `json:"path"`
	Table string `json:"table,omitempty"`
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password,omitempty"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode,omitempty"`
	Table    string `json:"table,omitempty"`
}

// MySQLConfig configures the MySQL backend.
type MySQLConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password,omitempty"`
	DBName   string `json:"db_name"`
	Table    string `json:"table,omitempty"`
}

// BadgerConfig configures the embedded Badger backend.
type BadgerConfig struct {
	Path     string `json:"path"`
	InMemory bool   `json:"in_memory,omitempty"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr      string `json:"addr"`
	Password  string `json:"password,omitempty"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix,omitempty"`
}

// OrchestratorConfig tunes query answering.
type OrchestratorConfig struct {
	// SourceTimeout bounds each source call.
	SourceTimeout Duration `json:"source_timeout"`

	// HistoryLimit is how many recent turns are sent to model sources.
	HistoryLimit int `json:"history_limit"`
}

// EvolutionConfig tunes the evolution scheduler.
type EvolutionConfig struct {
	Interval   Duration `json:"interval"`
	WindowSize int      `json:"window_size"`
}

// MemoryConfig tunes the memory store.
type MemoryConfig struct {
	// DecayWindow is how long a weak memory may go unaccessed before the
	// evolution cycle removes it.
	DecayWindow Duration `json:"decay_window"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level"`

	// Format is json or console.
	Format string `json:"format"`

	// OutputPaths defaults to stderr.
	OutputPaths []string `json:"output_paths,omitempty"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Namespace string `json:"namespace"`
}

// Duration is a time.Duration that reads and writes JSON as a Go duration
// string such as "5m". Plain numbers are read as nanoseconds.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("duration must be a string or integer: %s", data)
		}
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns a configuration with an OpenAI hosted source, an
// Ollama local source and file storage under ./lumen-data.
func DefaultConfig() *Config {
	return &Config{
		HostedLLM: LLMConfig{Provider: ProviderOpenAI, Model: openai.DefaultModel},
		LocalLLM:  LLMConfig{Provider: ProviderOllama, Model: ollama.DefaultModel, BaseURL: ollama.DefaultBaseURL},
		Storage: StorageConfig{
			Provider: ProviderFile,
			File:     FileStoreConfig{Dir: "./lumen-data"},
			SQLite:   SQLiteConfig{Path: "./lumen.db"},
			Postgres: PostgresConfig{Host: "localhost", Port: 5432, User: "postgres", DBName: "lumen", SSLMode: "disable"},
			MySQL:    MySQLConfig{Host: "localhost", Port: 3306, User: "root", DBName: "lumen"},
			Badger:   BadgerConfig{Path: "./lumen-badger"},
			Redis:    RedisConfig{Addr: "localhost:6379"},
		},
		Orchestrator: OrchestratorConfig{SourceTimeout: Duration(30 * time.Second), HistoryLimit: 10},
		Evolution:    EvolutionConfig{Interval: Duration(evolution.DefaultInterval), WindowSize: evolution.DefaultWindowSize},
		Memory:       MemoryConfig{DecayWindow: Duration(30 * 24 * time.Hour)},
		Log:          LogConfig{Level: "info", Format: "json"},
		Metrics:      MetricsConfig{Namespace: metrics.DefaultNamespace},
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// A .env file found by FindEnvFile is loaded first; variables already set
// in the environment win. Recognized variables:
//   - HOSTED_LLM_PROVIDER, HOSTED_LLM_API_KEY, HOSTED_LLM_MODEL, HOSTED_LLM_BASE_URL
//   - LOCAL_LLM_PROVIDER, LOCAL_LLM_MODEL, LOCAL_LLM_BASE_URL
//   - DATABASE_PROVIDER and the backend's own variables (FILE_STORE_DIR,
//     SQLITE_PATH, POSTGRES_*, MYSQL_*, BADGER_PATH, REDIS_*)
//   - EVOLUTION_INTERVAL, AUTONOMY_WINDOW_SIZE, MEMORY_DECAY_WINDOW
//   - SOURCE_TIMEOUT, HISTORY_LIMIT
//   - LOG_LEVEL, LOG_FORMAT, METRICS_NAMESPACE
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	if envPath, found := FindEnvFile(); found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()
	p := &envParser{}

	hosted := getEnvOrDefault("HOSTED_LLM_PROVIDER", ProviderOpenAI)
	cfg.HostedLLM = LLMConfig{
		Provider: hosted,
		APIKey:   os.Getenv("HOSTED_LLM_API_KEY"),
		Model:    getEnvOrDefault("HOSTED_LLM_MODEL", defaultModel(hosted)),
		BaseURL:  getEnvOrDefault("HOSTED_LLM_BASE_URL", defaultBaseURL(hosted)),
	}
	local := getEnvOrDefault("LOCAL_LLM_PROVIDER", ProviderOllama)
	cfg.LocalLLM = LLMConfig{
		Provider: local,
		APIKey:   os.Getenv("LOCAL_LLM_API_KEY"),
		Model:    getEnvOrDefault("LOCAL_LLM_MODEL", defaultModel(local)),
		BaseURL:  getEnvOrDefault("LOCAL_LLM_BASE_URL", defaultBaseURL(local)),
	}

	st := &cfg.Storage
	st.Provider = getEnvOrDefault("DATABASE_PROVIDER", ProviderFile)
	switch st.Provider {
	case ProviderFile:
		st.File.Dir = getEnvOrDefault("FILE_STORE_DIR", st.File.Dir)
	case ProviderSQLite:
		st.SQLite.Path = getEnvOrDefault("SQLITE_PATH", st.SQLite.Path)
		st.SQLite.Table = os.Getenv("SQLITE_TABLE")
	case ProviderPostgres:
		st.Postgres = PostgresConfig{
			Host:     getEnvOrDefault("POSTGRES_HOST", st.Postgres.Host),
			Port:     p.int("POSTGRES_PORT", st.Postgres.Port),
			User:     getEnvOrDefault("POSTGRES_USER", st.Postgres.User),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   getEnvOrDefault("POSTGRES_DATABASE", st.Postgres.DBName),
			SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", st.Postgres.SSLMode),
			Table:    os.Getenv("POSTGRES_TABLE"),
		}
	case ProviderMySQL:
		st.MySQL = MySQLConfig{
			Host:     getEnvOrDefault("MYSQL_HOST", st.MySQL.Host),
			Port:     p.int("MYSQL_PORT", st.MySQL.Port),
			User:     getEnvOrDefault("MYSQL_USER", st.MySQL.User),
			Password: os.Getenv("MYSQL_PASSWORD"),
			DBName:   getEnvOrDefault("MYSQL_DATABASE", st.MySQL.DBName),
			Table:    os.Getenv("MYSQL_TABLE"),
		}
	case ProviderBadger:
		st.Badger.Path = getEnvOrDefault("BADGER_PATH", st.Badger.Path)
	case ProviderRedis:
		st.Redis = RedisConfig{
			Addr:      getEnvOrDefault("REDIS_ADDR", st.Redis.Addr),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        p.int("REDIS_DB", st.Redis.DB),
			KeyPrefix: os.Getenv("REDIS_KEY_PREFIX"),
		}
	}

	cfg.Orchestrator.SourceTimeout = p.duration("SOURCE_TIMEOUT", cfg.Orchestrator.SourceTimeout)
	cfg.Orchestrator.HistoryLimit = p.int("HISTORY_LIMIT", cfg.Orchestrator.HistoryLimit)
	cfg.Evolution.Interval = p.duration("EVOLUTION_INTERVAL", cfg.Evolution.Interval)
	cfg.Evolution.WindowSize = p.int("AUTONOMY_WINDOW_SIZE", cfg.Evolution.WindowSize)
	cfg.Memory.DecayWindow = p.duration("MEMORY_DECAY_WINDOW", cfg.Memory.DecayWindow)
	cfg.Log.Level = getEnvOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnvOrDefault("LOG_FORMAT", cfg.Log.Format)
	cfg.Metrics.Namespace = getEnvOrDefault("METRICS_NAMESPACE", cfg.Metrics.Namespace)

	if p.err != nil {
		return nil, NewCoreError("LoadConfigFromEnv", p.err)
	}
	return cfg, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file. Fields missing
// from the file keep their DefaultConfig values.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewCoreError("LoadConfigFromJSON", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, NewCoreError("LoadConfigFromJSON", err)
	}

	return config, nil
}

// Validate checks provider names and numeric ranges.
func (c *Config) Validate() error {
	switch c.HostedLLM.Provider {
	case "", ProviderNone, ProviderOpenAI, ProviderDeepSeek, ProviderAnthropic:
	default:
		return NewCoreError("Validate", fmt.Errorf("%w: hosted llm %q", ErrUnsupportedProvider, c.HostedLLM.Provider))
	}
	switch c.LocalLLM.Provider {
	case "", ProviderNone, ProviderOllama:
	default:
		return NewCoreError("Validate", fmt.Errorf("%w: local llm %q", ErrUnsupportedProvider, c.LocalLLM.Provider))
	}
	switch c.Storage.Provider {
	case ProviderFile, ProviderSQLite, ProviderPostgres, ProviderMySQL, ProviderBadger, ProviderRedis:
	case "":
		return NewCoreError("Validate", fmt.Errorf("%w: storage provider is required", ErrInvalidConfig))
	default:
		return NewCoreError("Validate", fmt.Errorf("%w: storage %q", ErrUnsupportedProvider, c.Storage.Provider))
	}
	if c.Orchestrator.SourceTimeout < 0 || c.Evolution.Interval < 0 || c.Memory.DecayWindow < 0 {
		return NewCoreError("Validate", fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig))
	}
	if c.Evolution.WindowSize < 0 || c.Orchestrator.HistoryLimit < 0 {
		return NewCoreError("Validate", fmt.Errorf("%w: sizes must not be negative", ErrInvalidConfig))
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return NewCoreError("Validate", fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.Log.Format))
	}
	return nil
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return openai.DefaultModel
	case ProviderDeepSeek:
		return deepseek.DefaultModel
	case ProviderAnthropic:
		return anthropic.DefaultModel
	case ProviderOllama:
		return ollama.DefaultModel
	default:
		return ""
	}
}

func defaultBaseURL(provider string) string {
	switch provider {
	case ProviderDeepSeek:
		return deepseek.DefaultBaseURL
	case ProviderAnthropic:
		return anthropic.DefaultBaseURL
	case ProviderOllama:
		return ollama.DefaultBaseURL
	default:
		return ""
	}
}

// envParser keeps the first parse error so LoadConfigFromEnv can report it
// once.
type envParser struct {
	err error
}

func (p *envParser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
		}
		return def
	}
	return n
}

func (p *envParser) duration(key string, def Duration) Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidConfig, key, v)
		}
		return def
	}
	return Duration(d)
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
