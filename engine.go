package goWarden

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goWarden/internal/events"
	"github.com/MrEthical07/goWarden/internal/flows"
	"github.com/MrEthical07/goWarden/internal/logging"
	"github.com/MrEthical07/goWarden/internal/metrics"
	"github.com/MrEthical07/goWarden/internal/rate"
	"github.com/MrEthical07/goWarden/jwt"
	"github.com/MrEthical07/goWarden/password"
	"github.com/MrEthical07/goWarden/permission"
	"github.com/MrEthical07/goWarden/refresh"
	"github.com/MrEthical07/goWarden/trail"
	"go.uber.org/zap"
)

// Engine issues and refreshes tokens, answers permission checks and
// records entity changes. It is safe for concurrent use once built.
type Engine struct {
	config Config
	log    *zap.Logger
	now    func() time.Time

	jwt       *jwt.Manager
	refresh   refresh.Store
	passwords *password.Verifier
	limiter   *rate.Limiter

	catalog    *permission.Catalog
	registry   *permission.Registry
	cache      *permission.Cache
	authorizer *permission.Authorizer

	recorder *trail.Recorder
	events   *events.Dispatcher
	metrics  *metrics.Metrics

	users UserProvider
	roles RoleProvider
	flows flows.Deps
}

// Close flushes pending security events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.events != nil {
		e.events.Close()
	}
	_ = e.log.Sync()
}

// EventsDropped returns how many security events were discarded because
// the buffer was full.
func (e *Engine) EventsDropped() uint64 {
	if e == nil || e.events == nil {
		return 0
	}
	return e.events.Dropped()
}

// MetricsSnapshot returns the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Catalog returns the permission catalog the engine was built with.
func (e *Engine) Catalog() *permission.Catalog { return e.catalog }

// HashPassword hashes plain with the configured Argon2id parameters, for
// storing new credentials through the UserProvider's own store.
func (e *Engine) HashPassword(plain string) (string, error) {
	if e == nil || e.passwords == nil {
		return "", ErrEngineNotReady
	}
	return e.passwords.Hash(plain)
}

// Logger returns the engine logger.
func (e *Engine) Logger() *zap.Logger { return e.log }

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emit(ctx context.Context, eventType string, success bool, userID, reason string, metadata map[string]string) {
	if e == nil || e.events == nil {
		return
	}
	e.events.Emit(ctx, events.Event{
		Timestamp: e.now().UTC(),
		Type:      eventType,
		UserID:    userID,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Error:     reason,
		Metadata:  metadata,
	})
}

func (e *Engine) logger(ctx context.Context) *zap.Logger {
	return logging.From(ctx, e.log)
}

// transient wraps a backend failure so callers can test it with
// IsTransient while the cause stays visible to logs.
func transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransient, op, err)
}

func (e *Engine) observeCache(ev permission.CacheEvent, _ string) {
	switch ev {
	case permission.CacheHit:
		e.metricInc(MetricPermissionCacheHit)
	case permission.CacheMiss:
		e.metricInc(MetricPermissionCacheMiss)
	case permission.CacheInvalidated:
		e.metricInc(MetricPermissionCacheInvalidated)
	case permission.CacheDiscarded:
		e.metricInc(MetricPermissionCacheDiscarded)
	}
}

// resolver reads role claims through the role provider and reports unknown
// users the way the permission cache expects.
func (e *Engine) resolver() permission.Resolver {
	inner := permission.FromRoles(e.roles)
	return permission.ResolverFunc(func(ctx context.Context, ownerID string) ([]string, error) {
		claims, err := inner.Claims(ctx, ownerID)
		if errors.Is(err, ErrUserNotFound) {
			return nil, permission.ErrOwnerNotFound
		}
		return claims, err
	})
}

func principalOf(u UserRecord) flows.Principal {
	return flows.Principal{
		UserID:         u.ID,
		Email:          u.Email,
		PasswordHash:   u.PasswordHash,
		Active:         u.Active,
		EmailConfirmed: u.EmailConfirmed,
	}
}

func (e *Engine) lookupByEmail(ctx context.Context, email string) (flows.Principal, error) {
	u, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		return flows.Principal{}, err
	}
	return principalOf(u), nil
}

func (e *Engine) lookupByID(ctx context.Context, userID string) (flows.Principal, error) {
	u, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return flows.Principal{}, err
	}
	return principalOf(u), nil
}

// mint signs an access token for the user and prepares, but does not
// store, the matching refresh record.
func (e *Engine) mint(ctx context.Context, p flows.Principal) (flows.Minted, error) {
	u, err := e.users.GetUserByID(ctx, p.UserID)
	if err != nil {
		return flows.Minted{}, err
	}
	roles, err := e.roles.UserRoles(ctx, p.UserID)
	if err != nil {
		return flows.Minted{}, err
	}

	now := e.now()
	access, accessExp, err := e.jwt.CreateAccess(now, jwt.Subject{
		UserID:    u.ID,
		Email:     u.Email,
		FullName:  u.FullName(),
		GivenName: u.FirstName,
		Surname:   u.LastName,
		IPAddress: ClientIPFromContext(ctx),
		ImageURL:  u.ImageURL,
		Phone:     u.PhoneNumber,
		Roles:     roles,
	})
	if err != nil {
		return flows.Minted{}, err
	}

	secret, err := refresh.NewSecret()
	if err != nil {
		return flows.Minted{}, err
	}
	rec := refresh.Record{
		OwnerID:   u.ID,
		TokenHash: refresh.Hash(secret),
		IssuedAt:  now,
		ExpiresAt: now.Add(e.config.Refresh.TTL),
	}
	return flows.Minted{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     secret,
		RefreshExpiresAt: rec.ExpiresAt,
		Record:           rec,
	}, nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	login := flows.LoginDeps{
		RequireConfirmedEmail: e.config.Security.RequireConfirmedEmail,
		LookupUser:            e.lookupByEmail,
		UserNotFound:          ErrUserNotFound,
		VerifyPassword:        e.passwords.Verify,
		Mint:                  e.mint,
		Store:                 e.refresh,
		Warn: func(msg string, err error) {
			e.log.Warn(msg, logging.Err(err))
		},
	}
	if e.config.Password.UpgradeOnLogin {
		login.NeedsUpgrade = e.passwords.NeedsUpgrade
		login.UpgradeHash = func(ctx context.Context, userID, plain string) error {
			h, err := e.passwords.Hash(plain)
			if err != nil {
				return err
			}
			return e.users.UpdatePasswordHash(ctx, userID, h)
		}
	}

	refreshDeps := flows.RefreshDeps{
		ParseExpired: func(token string) (string, error) {
			claims, err := e.jwt.ParseExpired(token)
			if err != nil {
				return "", err
			}
			return claims.Subject().UserID, nil
		},
		LookupUser:   e.lookupByID,
		UserNotFound: ErrUserNotFound,
		Mint:         e.mint,
		Store:        e.refresh,
		Now:          e.now,
		Warn: func(msg string, err error) {
			e.log.Warn(msg, logging.Err(err))
		},
	}

	if e.limiter != nil {
		login.CheckRate = e.limiter.CheckLogin
		login.RecordFailure = func(ctx context.Context, email, ip string) error {
			err := e.limiter.IncrementLogin(ctx, email, ip)
			if errors.Is(err, rate.ErrRateLimited) {
				return nil
			}
			return err
		}
		login.ResetRate = e.limiter.ResetLogin
		refreshDeps.CheckRate = e.limiter.CheckRefresh
	}

	return flows.Deps{
		Login:   login,
		Refresh: refreshDeps,
		Validate: flows.ValidateDeps{
			ParseAccess: func(token string) (*jwt.IdentityClaims, error) {
				return e.jwt.ParseAccess(token, e.now())
			},
			Strict:       e.config.ValidationMode == ModeStrict,
			LookupUser:   e.lookupByID,
			UserNotFound: ErrUserNotFound,
		},
	}
}
