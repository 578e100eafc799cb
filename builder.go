package authflow

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// Builder wires an Orchestrator. A Builder is single-use: configure it, call
// Build once, then discard it.
type Builder struct {
	config Config
	redis  *redis.Client

	provider  Provider
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the challenge session store.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithProvider sets the identity provider transport.
func (b *Builder) WithProvider(p Provider) *Builder {
	b.provider = p
	return b
}

// WithAuditSink attaches an audit sink; without one, audit events are
// dropped.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the provider round-trip histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and assembles the Orchestrator in the
// anonymous state. Call Resume afterwards to reconcile persisted flow state.
func (b *Builder) Build() (*Orchestrator, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.provider == nil {
		return nil, errors.New("identity provider required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gateway, err := NewGateway(b.provider, cfg.Issuer)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		config:  cfg,
		gateway: gateway,
		flows:   newFlowStore(b.redis, cfg.Store.RedisPrefix),
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		state:   State{Kind: StateAnonymous},
	}

	b.built = true
	return o, nil
}
