package goWarden

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goWarden/internal/events"
	"github.com/MrEthical07/goWarden/internal/logging"
	"github.com/MrEthical07/goWarden/internal/metrics"
	"github.com/MrEthical07/goWarden/internal/rate"
	"github.com/MrEthical07/goWarden/jwt"
	"github.com/MrEthical07/goWarden/password"
	"github.com/MrEthical07/goWarden/permission"
	"github.com/MrEthical07/goWarden/refresh"
	"github.com/MrEthical07/goWarden/trail"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	catalog      *permission.Catalog
	userProvider UserProvider
	roleProvider RoleProvider
	refreshStore refresh.Store
	trailStore   trail.Store
	serializer   trail.Serializer
	eventSink    EventSink
	logger       *zap.Logger
	clock        func() time.Time

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for throttling and, unless another store
// is given, refresh records.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCatalog replaces the default permission catalog.
func (b *Builder) WithCatalog(c *permission.Catalog) *Builder {
	b.catalog = c
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

func (b *Builder) WithRoleProvider(rp RoleProvider) *Builder {
	b.roleProvider = rp
	return b
}

// WithRefreshStore overrides where refresh records live.
func (b *Builder) WithRefreshStore(s refresh.Store) *Builder {
	b.refreshStore = s
	return b
}

// WithTrailStore sets the audit trail store. Without one, entries are
// kept in memory.
func (b *Builder) WithTrailStore(s trail.Store) *Builder {
	b.trailStore = s
	return b
}

// WithTrailSerializer overrides how old and new values are encoded.
func (b *Builder) WithTrailSerializer(s trail.Serializer) *Builder {
	b.serializer = s
	return b
}

// WithEventSink sets where security events go. The default writes them
// to the engine logger.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides time.Now. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if b.roleProvider == nil {
		return nil, errors.New("role provider required")
	}
	if cfg.Security.EnableRateLimit && b.redis == nil {
		return nil, errors.New("rate limiting requires redis client")
	}

	log := logging.OrNop(b.logger).Named("warden")
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	e := &Engine{
		config: cfg,
		log:    log,
		now:    clock,
		users:  b.userProvider,
		roles:  b.roleProvider,
		metrics: metrics.New(metrics.Config{
			Enabled:       cfg.Metrics.Enabled,
			EnableLatency: cfg.Metrics.EnableLatencyHistograms,
		}),
	}

	// -------- TOKENS --------
	verify := make(map[string][]byte, len(cfg.JWT.VerifyKeys))
	for kid, k := range cfg.JWT.VerifyKeys {
		verify[kid] = k
	}
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:  cfg.JWT.AccessTTL,
		Key:        cfg.JWT.Key,
		KeyID:      cfg.JWT.KeyID,
		VerifyKeys: verify,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		Leeway:     cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}
	e.jwt = jm

	store := b.refreshStore
	switch {
	case store != nil:
	case b.redis != nil:
		store = refresh.NewRedisStore(b.redis, cfg.Refresh.RedisPrefix, refresh.Options{RevokeOnReuse: cfg.Refresh.RevokeOnReuse})
	case cfg.Security.ProductionMode:
		return nil, errors.New("ProductionMode requires a shared refresh store")
	default:
		store = refresh.NewMemoryStore(refresh.Options{RevokeOnReuse: cfg.Refresh.RevokeOnReuse})
	}
	e.refresh = store

	argon, err := password.NewArgon2(cfg.Password.Hasher())
	if err != nil {
		return nil, fmt.Errorf("password: %w", err)
	}
	e.passwords = password.NewVerifier(argon)

	if cfg.Security.EnableRateLimit {
		e.limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:        cfg.Security.EnableIPThrottle,
			EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
			MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
			MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
			RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
		})
	}

	// -------- PERMISSIONS --------
	catalog := b.catalog
	if catalog == nil {
		catalog = permission.DefaultCatalog()
	}
	registry, err := permission.NewRegistryFromCatalog(catalog, cfg.Permission.MaxBits)
	if err != nil {
		return nil, fmt.Errorf("permission registry: %w", err)
	}
	registry.Freeze()
	e.catalog = catalog
	e.registry = registry

	cache, err := permission.NewCache(registry, e.resolver(), cfg.Permission.CacheTTL,
		permission.WithObserver(e.observeCache),
		permission.WithUnknownClaims(func(ownerID string, unknown []string) {
			e.log.Warn("unknown permission claims ignored",
				logging.UserID(ownerID), zap.Strings("claims", unknown))
		}),
		permission.WithNow(clock),
	)
	if err != nil {
		return nil, err
	}
	e.cache = cache
	e.authorizer = permission.NewAuthorizer(cache)

	// -------- AUDIT --------
	ts := b.trailStore
	if ts == nil {
		ts = trail.NewMemoryStore()
	}
	opts := []trail.Option{
		trail.WithClock(trail.ClockFunc(clock)),
		trail.WithLogger(log.Named("trail")),
		trail.WithObserver(func(written, failed int) {
			e.metrics.Add(MetricAuditEntryWritten, uint64(written))
			e.metrics.Add(MetricAuditCaptureFailed, uint64(failed))
		}),
	}
	if b.serializer != nil {
		opts = append(opts, trail.WithSerializer(b.serializer))
	}
	e.recorder = trail.NewRecorder(ts, opts...)

	// -------- SECURITY EVENTS --------
	sink := b.eventSink
	if sink == nil {
		sink = events.NewZapSink(log)
	}
	e.events = events.NewDispatcher(events.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop: func(ev events.Event) {
			e.log.Debug("security event dropped", zap.String("event_type", ev.Type))
		},
	}, sink)

	e.flows = e.buildFlowDeps()

	b.built = true
	log.Info("engine ready",
		zap.Stringer("validation_mode", cfg.ValidationMode),
		zap.Int("permissions", registry.Count()),
		zap.Bool("rate_limit", e.limiter != nil))
	return e, nil
}
