package core

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lumenqi/lumen-core/pkg/llm"
	"github.com/lumenqi/lumen-core/pkg/orchestrator"
	"github.com/lumenqi/lumen-core/pkg/storage"
)

// Option customizes a Companion beyond its Config.
//
// Options are applied using the functional options pattern; anything not
// set is built from the Config.
type Option func(*options)

type options struct {
	hosted    llm.Provider
	hostedSet bool
	local     llm.Provider
	localSet  bool
	repo      storage.Repository
	registry  *prometheus.Registry
	logger    *zap.Logger
	rand      orchestrator.Rand
	node      *snowflake.Node
	now       func() time.Time
}

// WithHostedProvider replaces the configured hosted model. Nil disables the
// hosted source.
//
// Example:
//
//	companion, _ := core.New(cfg, core.WithHostedProvider(myProvider))
func WithHostedProvider(p llm.Provider) Option {
	return func(o *options) {
		o.hosted = p
		o.hostedSet = true
	}
}

// WithLocalProvider replaces the configured local model. Nil disables the
// local source.
func WithLocalProvider(p llm.Provider) Option {
	return func(o *options) {
		o.local = p
		o.localSet = true
	}
}

// WithRepository replaces the configured storage backend. The companion
// closes it on Close.
func WithRepository(repo storage.Repository) Option {
	return func(o *options) {
		o.repo = repo
	}
}

// WithRegistry registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithLogger replaces the logger built from Config.Log.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRand makes the self-knowledge phrasing deterministic.
func WithRand(r orchestrator.Rand) Option {
	return func(o *options) {
		o.rand = r
	}
}

// WithNode sets the snowflake node used for memory and pattern IDs.
func WithNode(node *snowflake.Node) Option {
	return func(o *options) {
		o.node = node
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
