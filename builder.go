package goSession

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/analytics"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Service].
//
// Configure it during initialization, call Build once, and discard it.
type Builder struct {
	config  Config
	redis   redis.UniversalClient
	backend kv.Backend

	logger    *slog.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The config is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client. Any go-redis client works: single node,
// cluster or failover.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithBackend sets a backend directly and takes precedence over WithRedis.
func (b *Builder) WithBackend(backend kv.Backend) *Builder {
	b.backend = backend
	return b
}

// WithLogger sets the structured logger passed to every component.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the sink that receives lifecycle events and enables
// the audit dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the store latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the time source used for session timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration, wires every component and starts the
// background loops that are enabled. Call [Service.Close] to stop them.
//
// Build fails when the configuration is invalid, when no Redis client or
// backend was supplied, or when the Builder was already used.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend := b.backend
	if backend == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or backend required")
		}
		backend = kv.NewRedisBackend(b.redis, kv.Options{
			OperationTimeout: cfg.Backend.OperationTimeout,
			MaxRetries:       cfg.Backend.MaxRetries,
			RetryBackoff:     cfg.Backend.RetryBackoff,
		})
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- SESSION STORE --------
	store := session.NewStore(backend, session.Config{
		Prefix:           cfg.Session.Prefix,
		TTL:              cfg.Session.TTL,
		MaxMetadataBytes: cfg.Session.MaxMetadataBytes,
		Logger:           logger,
	})

	svc := &Service{
		config:  cfg,
		backend: backend,
		store:   store,
		chains:  newChainSet(cfg.Chains.Supported),
		logger:  logger,
		now:     now,
		metrics: NewMetrics(cfg.Metrics),
	}

	// -------- RATE LIMITER --------
	if cfg.RateLimit.Enabled {
		svc.limiter = rate.New(rate.Config{
			Limit:           cfg.RateLimit.MaxCreates,
			Window:          cfg.RateLimit.Window,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		})
		svc.limiter.StartCleanupRoutine()
	}

	// -------- TOKENS --------
	if cfg.Token.Enabled {
		key := cloneBytes(cfg.Token.PrivateKey)
		if jwt.SigningMethod(cfg.Token.SigningMethod) == jwt.MethodHS256 && cfg.Token.Secret != "" {
			key = []byte(cfg.Token.Secret)
		}
		jm, err := jwt.NewManager(jwt.Config{
			TTL:           cfg.Token.TTL,
			SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
			PrivateKey:    key,
			PublicKey:     cloneBytes(cfg.Token.PublicKey),
			Issuer:        cfg.Token.Issuer,
			Audience:      cfg.Token.Audience,
			Leeway:        cfg.Token.Leeway,
			KeyID:         cfg.Token.KeyID,
		})
		if err != nil {
			svc.limiter.Close()
			return nil, err
		}
		svc.tokens = jm
	}

	// -------- AUDIT --------
	svc.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Coalesce:   []string{auditEventRateLimitTriggered, auditEventTokenRejected},
	}, b.auditSink)

	// -------- ANALYTICS --------
	if cfg.Analytics.Enabled {
		svc.counters = analytics.NewCounters(backend, analytics.Config{
			Prefix:    cfg.Analytics.Prefix,
			Retention: cfg.Analytics.Retention,
		})
		if cfg.Analytics.RollupInterval > 0 {
			svc.roller = analytics.NewRoller(store, cfg.Analytics.RollupInterval, 0, logger, func(snap analytics.Snapshot) {
				svc.metrics.Set(MetricSessionsActive, int64(snap.ActiveSessions))
			})
			svc.roller.Start()
		}
	}

	// -------- RECONCILER --------
	if cfg.Reconcile.Enabled {
		svc.reconciler = session.NewReconciler(store, cfg.Reconcile.Interval, svc.recordReconcile)
		svc.reconciler.Start()
	}

	b.built = true

	return svc, nil
}
