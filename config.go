package authgate

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the explicit engine configuration. It is constructed once at
// process start and injected through the [Builder]; no engine code reads
// ambient globals.
type Config struct {
	Token    TokenConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// TokenConfig controls token signing and lifetimes.
type TokenConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// SigningMethod is "hs256" (default) or "ed25519".
	SigningMethod string
	// PrivateKey is the hs256 secret or the ed25519 private key.
	PrivateKey []byte
	// PublicKey is required for ed25519 only.
	PublicKey []byte
	Issuer    string
	Leeway    time.Duration
}

// PasswordConfig holds the Argon2id work factors.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// UpgradeOnLogin re-hashes passwords stored with weaker parameters on the
	// next successful login.
	UpgradeOnLogin bool
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the library defaults. The token signing key is the
// one field with no usable default and must be filled in.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "authgate",
			Leeway:        30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = append([]byte(nil), cfg.Token.PrivateKey...)
	out.Token.PublicKey = append([]byte(nil), cfg.Token.PublicKey...)
	return out
}

// Validate rejects configurations the subpackage constructors would refuse,
// so misconfiguration fails at Build rather than on the first request.
func (c Config) Validate() error {
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("access TTL must be shorter than refresh TTL")
	}
	if len(c.Token.PrivateKey) == 0 {
		return errors.New("token signing key required")
	}
	if c.Token.SigningMethod != "hs256" && c.Token.SigningMethod != "ed25519" {
		return errors.New("unsupported token signing method")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive when audit is enabled")
	}
	return nil
}

type engineEnv struct {
	SigningSecret      string        `env:"AUTHGATE_SIGNING_SECRET"`
	AccessTTL          time.Duration `env:"AUTHGATE_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL         time.Duration `env:"AUTHGATE_REFRESH_TTL" envDefault:"168h"`
	TokenIssuer        string        `env:"AUTHGATE_TOKEN_ISSUER" envDefault:"authgate"`
	ArgonMemoryKB      uint32        `env:"AUTHGATE_ARGON2_MEMORY_KB" envDefault:"65536"`
	ArgonTime          uint32        `env:"AUTHGATE_ARGON2_TIME" envDefault:"3"`
	ArgonParallelism   uint8         `env:"AUTHGATE_ARGON2_PARALLELISM" envDefault:"2"`
	AuditEnabled       bool          `env:"AUTHGATE_AUDIT_ENABLED" envDefault:"false"`
	AuditBufferSize    int           `env:"AUTHGATE_AUDIT_BUFFER" envDefault:"256"`
	MetricsEnabled     bool          `env:"AUTHGATE_METRICS_ENABLED" envDefault:"true"`
	LatencyHistograms  bool          `env:"AUTHGATE_METRICS_LATENCY" envDefault:"false"`
}

// ConfigFromEnv builds a Config from AUTHGATE_* environment variables on top
// of the library defaults. The signing secret has no default and must be set.
func ConfigFromEnv() (Config, error) {
	var raw engineEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, err
	}
	if raw.SigningSecret == "" {
		return Config{}, errors.New("AUTHGATE_SIGNING_SECRET is required")
	}

	cfg := defaultConfig()
	cfg.Token.AccessTTL = raw.AccessTTL
	cfg.Token.RefreshTTL = raw.RefreshTTL
	cfg.Token.Issuer = raw.TokenIssuer
	cfg.Token.PrivateKey = []byte(raw.SigningSecret)
	cfg.Password.Memory = raw.ArgonMemoryKB
	cfg.Password.Time = raw.ArgonTime
	cfg.Password.Parallelism = raw.ArgonParallelism
	cfg.Audit.Enabled = raw.AuditEnabled
	cfg.Audit.BufferSize = raw.AuditBufferSize
	cfg.Metrics.Enabled = raw.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = raw.LatencyHistograms

	return cfg, cfg.Validate()
}
