package goSession

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration. Start from [DefaultConfig]
// and override fields, or load YAML with [LoadConfig].
type Config struct {
	Session   SessionConfig   `yaml:"session"`
	Backend   BackendConfig   `yaml:"backend"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Token     TokenConfig     `yaml:"token"`
	Audit     AuditConfig     `yaml:"audit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Chains    ChainConfig     `yaml:"chains"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls record layout and lifetime.
type SessionConfig struct {
	// Prefix namespaces primary keys ("<prefix>:<id>") and address index
	// sets ("<prefix>a:<address>").
	Prefix string `yaml:"prefix"`
	// TTL is restarted by every create, read and update.
	TTL              time.Duration `yaml:"ttl"`
	MaxMetadataBytes int           `yaml:"max_metadata_bytes"`
}

/*
====================================
BACKEND CONFIG
====================================
*/

// BackendConfig bounds every Redis call. Addr, Password and DB are only read
// by callers that build the client from config, such as cmd/gosessiond.
type BackendConfig struct {
	Addr             string        `yaml:"addr"`
	Password         string        `yaml:"password"`
	DB               int           `yaml:"db"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
}

/*
====================================
RECONCILE CONFIG
====================================
*/

// ReconcileConfig controls the background sweep. Interval is also the
// staleness bound for address index entries.
type ReconcileConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig throttles CreateSession per address and per client IP.
type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled"`
	MaxCreates      int           `yaml:"max_creates"`
	Window          time.Duration `yaml:"window"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	PerIP           bool          `yaml:"per_ip"`
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig enables signed session tokens. Secret feeds hs256; Ed25519
// keys can only be set programmatically.
type TokenConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TTL           time.Duration `yaml:"ttl"`
	SigningMethod string        `yaml:"signing_method"`
	Secret        string        `yaml:"secret"`
	PrivateKey    []byte        `yaml:"-"`
	PublicKey     []byte        `yaml:"-"`
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	Leeway        time.Duration `yaml:"leeway"`
	KeyID         string        `yaml:"key_id"`
}

/*
====================================
AUDIT / METRICS / ANALYTICS
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig toggles in-process counters and the store latency histogram.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// AnalyticsConfig controls daily counters and the periodic rollup.
type AnalyticsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Prefix namespaces counter keys. It must not collide with the session
	// key space.
	Prefix         string        `yaml:"prefix"`
	Retention      time.Duration `yaml:"retention"`
	RollupInterval time.Duration `yaml:"rollup_interval"`
}

// ChainConfig holds the chain allow-list. Empty means
// [DefaultSupportedChains].
type ChainConfig struct {
	Supported []int64 `yaml:"supported"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			Prefix:           "ws",
			TTL:              24 * time.Hour,
			MaxMetadataBytes: 10 * 1024,
		},
		Backend: BackendConfig{
			Addr:             "127.0.0.1:6379",
			OperationTimeout: 500 * time.Millisecond,
			MaxRetries:       2,
			RetryBackoff:     25 * time.Millisecond,
		},
		Reconcile: ReconcileConfig{
			Enabled:  true,
			Interval: 2 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			MaxCreates:      10,
			Window:          time.Minute,
			CleanupInterval: 5 * time.Minute,
			PerIP:           true,
		},
		Token: TokenConfig{
			Enabled:       false,
			TTL:           24 * time.Hour,
			SigningMethod: string(jwt.MethodHS256),
			Leeway:        30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Analytics: AnalyticsConfig{
			Enabled:        false,
			Prefix:         "wsc",
			Retention:      90 * 24 * time.Hour,
			RollupInterval: 5 * time.Minute,
		},
		Chains: ChainConfig{
			Supported: slices.Clone(DefaultSupportedChains),
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	out.Chains.Supported = slices.Clone(cfg.Chains.Supported)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
LOADING
====================================
*/

// LoadConfig reads a YAML file over [DefaultConfig] and validates the result.
// Durations use Go syntax ("90s", "24h").
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig is [LoadConfig] on an in-memory document. Unknown keys are
// rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	// Session
	if err := validatePrefix("Session Prefix", c.Session.Prefix); err != nil {
		return err
	}
	if c.Session.TTL < time.Second {
		return errors.New("Session TTL must be >= 1s")
	}
	if c.Session.MaxMetadataBytes <= 0 {
		return errors.New("Session MaxMetadataBytes must be > 0")
	}

	// Backend
	if c.Backend.OperationTimeout <= 0 {
		return errors.New("Backend OperationTimeout must be > 0")
	}
	if c.Backend.MaxRetries < 0 || c.Backend.MaxRetries > 10 {
		return errors.New("Backend MaxRetries must be between 0 and 10")
	}
	if c.Backend.RetryBackoff < 0 {
		return errors.New("Backend RetryBackoff must be >= 0")
	}

	// Reconcile
	if c.Reconcile.Enabled {
		if c.Reconcile.Interval < time.Second {
			return errors.New("Reconcile Interval must be >= 1s when enabled")
		}
		if c.Reconcile.Interval >= c.Session.TTL {
			return errors.New("Reconcile Interval must be shorter than Session TTL")
		}
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxCreates <= 0 {
			return errors.New("RateLimit MaxCreates must be > 0 when enabled")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0 when enabled")
		}
		if c.RateLimit.CleanupInterval < 0 {
			return errors.New("RateLimit CleanupInterval must be >= 0")
		}
	}

	// Token
	if c.Token.Enabled {
		if c.Token.TTL <= 0 {
			return errors.New("Token TTL must be > 0 when enabled")
		}
		switch jwt.SigningMethod(c.Token.SigningMethod) {
		case jwt.MethodHS256:
			if len(c.Token.Secret) < 32 && len(c.Token.PrivateKey) < 32 {
				return errors.New("Token hs256 requires a secret of at least 32 bytes")
			}
		case jwt.MethodEd25519:
			if len(c.Token.PrivateKey) == 0 || len(c.Token.PublicKey) == 0 {
				return errors.New("Token ed25519 requires PrivateKey and PublicKey")
			}
		default:
			return errors.New("Token SigningMethod must be 'hs256' or 'ed25519'")
		}
		if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
			return errors.New("Token Leeway must be between 0 and 2m")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Analytics
	if c.Analytics.Enabled {
		if err := validatePrefix("Analytics Prefix", c.Analytics.Prefix); err != nil {
			return err
		}
		if c.Analytics.Prefix == c.Session.Prefix || c.Analytics.Prefix == c.Session.Prefix+"a" {
			return errors.New("Analytics Prefix collides with the session key space")
		}
		if c.Analytics.Retention < 24*time.Hour {
			return errors.New("Analytics Retention must be >= 24h")
		}
		if c.Analytics.RollupInterval < 0 {
			return errors.New("Analytics RollupInterval must be >= 0")
		}
	}

	// Chains
	for _, id := range c.Chains.Supported {
		if id <= 0 {
			return errors.New("Chains Supported entries must be > 0")
		}
	}

	return nil
}

func validatePrefix(name, prefix string) error {
	if prefix == "" {
		return fmt.Errorf("%s must not be empty", name)
	}
	if strings.ContainsAny(prefix, ":*?[]\\ ") {
		return fmt.Errorf("%s must not contain ':', whitespace or glob characters", name)
	}
	return nil
}
