package authgate

import (
	"errors"

	"github.com/rlvait/authgate/internal/audit"
	"github.com/rlvait/authgate/password"
	"github.com/rlvait/authgate/token"
)

// Builder assembles an [Engine]. Configure it during initialization and call
// [Builder.Build] exactly once.
type Builder struct {
	config Config
	store  Store

	auditSink audit.Sink
	warn      func(format string, args ...any)

	built bool
}

// New returns a Builder preloaded with the library defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration. The config is copied; later
// mutation of cfg by the caller has no effect.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the credential store backing the engine. Required.
func (b *Builder) WithStore(store Store) *Builder {
	b.store = store
	return b
}

// WithAuditSink sets the destination for audit events. Setting a sink does
// not enable auditing; Config.Audit.Enabled controls that.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process metrics counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Authenticate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithWarnFunc sets the receiver for non-fatal operational notices. Printf
// semantics; typically logrus Warnf or log.Printf.
func (b *Builder) WithWarnFunc(fn func(format string, args ...any)) *Builder {
	b.warn = fn
	return b
}

// Build validates the configuration, constructs the subsystems, and returns a
// ready Engine. A Builder can build at most one Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(token.Config{
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cfg.Token.PrivateKey,
		PublicKey:     cfg.Token.PublicKey,
		Issuer:        cfg.Token.Issuer,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:  cfg,
		store:   b.store,
		hasher:  hasher,
		codec:   codec,
		metrics: NewMetrics(cfg.Metrics),
		warn:    b.warn,
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true
	return engine, nil
}
