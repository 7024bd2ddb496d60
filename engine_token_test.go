package goWarden

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goWarden/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestIssueTokenSuccess(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addUser(t, "u1", "alice@example.com", permission.RoleBasic)

	pair, err := env.engine.IssueToken(context.Background(), Credentials{Email: " alice@example.com ", Password: testPassword}, "10.0.0.1")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if !pair.RefreshExpiresAt.After(pair.AccessExpiresAt) {
		t.Fatalf("refresh expiry %v should be after access expiry %v", pair.RefreshExpiresAt, pair.AccessExpiresAt)
	}

	id, err := env.engine.ValidateAccess(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if id.UserID != "u1" || id.Email != "alice@example.com" || id.IPAddress != "10.0.0.1" {
		t.Fatalf("unexpected identity %+v", id)
	}
	if id.FullName != "Test U1" {
		t.Fatalf("expected full name claim, got %q", id.FullName)
	}
	if len(id.Roles) != 1 || id.Roles[0] != permission.RoleBasic {
		t.Fatalf("expected Basic role claim, got %v", id.Roles)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected one login success, got %d", snap.Counters[MetricLoginSuccess])
	}
}

func TestIssueTokenRejectsUniformly(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.Security.RequireConfirmedEmail = true
	})
	env.addUser(t, "u1", "alice@example.com")
	inactive := env.addUser(t, "u2", "bob@example.com")
	inactive.Active = false
	env.dir.add(inactive)
	unconfirmed := env.addUser(t, "u3", "carol@example.com")
	unconfirmed.EmailConfirmed = false
	env.dir.add(unconfirmed)

	cases := map[string]Credentials{
		"unknown user":   {Email: "nobody@example.com", Password: testPassword},
		"wrong password": {Email: "alice@example.com", Password: "wrong-password-123"},
		"empty password": {Email: "alice@example.com"},
		"empty email":    {Password: testPassword},
		"inactive":       {Email: "bob@example.com", Password: testPassword},
		"unconfirmed":    {Email: "carol@example.com", Password: testPassword},
		"short password": {Email: "alice@example.com", Password: "x"},
	}
	for name, creds := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.engine.IssueToken(context.Background(), creds, "")
			if !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
			if errors.Is(err, ErrUserNotFound) {
				t.Fatal("unauthenticated error must not reveal the reason")
			}
		})
	}
}

func TestIssueTokenReplacesPreviousRefresh(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addUser(t, "u1", "alice@example.com")
	ctx := context.Background()
	creds := Credentials{Email: "alice@example.com", Password: testPassword}

	first, err := env.engine.IssueToken(ctx, creds, "")
	if err != nil {
		t.Fatalf("first IssueToken: %v", err)
	}
	if _, err := env.engine.IssueToken(ctx, creds, ""); err != nil {
		t.Fatalf("second IssueToken: %v", err)
	}

	_, err = env.engine.RefreshToken(ctx, RefreshRequest{AccessToken: first.AccessToken, RefreshToken: first.RefreshToken}, "")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected first refresh token to be dead, got %v", err)
	}
}

func TestIssueTokenTransientOnLookupFailure(t *testing.T) {
	env := newTestEnv(t, func(_ *Config, b *Builder) {
		b.WithUserProvider(failingUsers{})
	})
	_, err := env.engine.IssueToken(context.Background(), Credentials{Email: "a@example.com", Password: testPassword}, "")
	if !IsTransient(err) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if IsUnauthenticated(err) {
		t.Fatal("backend failure must not look like bad credentials")
	}
}

type failingUsers struct{}

func (failingUsers) GetUserByEmail(context.Context, string) (UserRecord, error) {
	return UserRecord{}, errBackend
}
func (failingUsers) GetUserByID(context.Context, string) (UserRecord, error) {
	return UserRecord{}, errBackend
}
func (failingUsers) UpdatePasswordHash(context.Context, string, string) error { return errBackend }
func (failingUsers) SetActive(context.Context, string, bool) error            { return errBackend }

func TestRefreshTokenRotates(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addUser(t, "u1", "alice@example.com")
	ctx := context.Background()

	pair, err := env.engine.IssueToken(ctx, Credentials{Email: "alice@example.com", Password: testPassword}, "")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	next, err := env.engine.RefreshToken(ctx, RefreshRequest{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, "")
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token must change on every refresh")
	}

	_, err = env.engine.RefreshToken(ctx, RefreshRequest{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, "")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected reused token to fail, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRefreshReuseDetected]; got != 1 {
		t.Fatalf("expected one reuse detection, got %d", got)
	}

	if _, err := env.engine.RefreshToken(ctx, RefreshRequest{AccessToken: next.AccessToken, RefreshToken: next.RefreshToken}, ""); err != nil {
		t.Fatalf("latest pair should still refresh: %v", err)
	}
}

func TestRefreshTokenAcceptsExpiredAccessToken(t *testing.T) {
	clock := time.Now()
	env := newTestEnv(t, func(_ *Config, b *Builder) {
		b.WithClock(func() time.Time { return clock })
	})
	env.addUser(t, "u1", "alice@example.com")
	ctx := context.Background()

	pair, err := env.engine.IssueToken(ctx, Credentials{Email: "alice@example.com", Password: testPassword}, "")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	clock = clock.Add(env.cfg.JWT.AccessTTL + time.Minute)
	if _, err := env.engine.ValidateAccess(ctx, pair.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected expired access token to be rejected, got %v", err)
	}
	if _, err := env.engine.RefreshToken(ctx, RefreshRequest{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, ""); err != nil {
		t.Fatalf("refresh with expired access token: %v", err)
	}
}

func TestRefreshTokenRejects(t *testing.T) {
	clock := time.Now()
	env := newTestEnv(t, func(_ *Config, b *Builder) {
		b.WithClock(func() time.Time { return clock })
	})
	env.addUser(t, "u1", "alice@example.com")
	ctx := context.Background()

	pair, err := env.engine.IssueToken(ctx, Credentials{Email: "alice@example.com", Password: testPassword}, "")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	other := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.JWT.Key = Secret("ffffffffffffffffffffffffffffffff")
	})
	other.addUser(t, "u1", "alice@example.com")
	foreign, err := other.engine.IssueToken(ctx, Credentials{Email: "alice@example.com", Password: testPassword}, "")
	if err != nil {
		t.Fatalf("foreign IssueToken: %v", err)
	}

	cases := map[string]RefreshRequest{
		"malformed refresh":  {AccessToken: pair.AccessToken, RefreshToken: "not base64!"},
		"unknown refresh":    {AccessToken: pair.AccessToken, RefreshToken: foreign.RefreshToken},
		"foreign signature":  {AccessToken: foreign.AccessToken, RefreshToken: pair.RefreshToken},
		"garbage access":     {AccessToken: "a.b.c", RefreshToken: pair.RefreshToken},
		"empty access token": {RefreshToken: pair.RefreshToken},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := env.engine.RefreshToken(ctx, req, ""); !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}

	clock = clock.Add(env.cfg.Refresh.TTL + time.Second)
	if _, err := env.engine.RefreshToken(ctx, RefreshRequest{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected expired refresh record to fail, got %v", err)
	}
}

func TestRefreshTokenInactiveUserRevoked(t *testing.T) {
	env := newTestEnv(t, nil)
	u := env.addUser(t, "u1", "alice@example.com")
	ctx := context.Background()

	pair, err := env.engine.IssueToken(ctx, Credentials{Email: "alice@example.com", Password: testPassword}, "")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	u.Active = false
	env.dir.add(u)

	if _, err := env.engine.RefreshToken(ctx, RefreshRequest{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected inactive user refresh to fail, got %v", err)
	}
	if _, err := env.engine.refresh.Get(ctx, "u1"); err == nil {
		t.Fatal("expected refresh record to be deleted")
	}
}

func TestValidateAccessStrictMode(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.ValidationMode = ModeStrict
	})
	u := env.addUser(t, "u1", "alice@example.com")
	ctx := context.Background()

	pair, err := env.engine.IssueToken(ctx, Credentials{Email: "alice@example.com", Password: testPassword}, "")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := env.engine.ValidateAccess(ctx, pair.AccessToken); err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}

	u.Active = false
	env.dir.add(u)
	if _, err := env.engine.ValidateAccess(ctx, pair.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("strict mode should reject inactive user, got %v", err)
	}
}

func TestValidateAccessModeOverridesConfig(t *testing.T) {
	env := newTestEnv(t, nil)
	u := env.addUser(t, "u1", "alice@example.com")
	ctx := context.Background()

	pair, err := env.engine.IssueToken(ctx, Credentials{Email: "alice@example.com", Password: testPassword}, "")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	u.Active = false
	env.dir.add(u)

	// The engine is configured for jwt_only, so the signature alone passes.
	if _, err := env.engine.ValidateAccess(ctx, pair.AccessToken); err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if _, err := env.engine.ValidateAccessMode(ctx, pair.AccessToken, ModeJWTOnly); err != nil {
		t.Fatalf("ValidateAccessMode jwt_only: %v", err)
	}
	if _, err := env.engine.ValidateAccessMode(ctx, pair.AccessToken, ModeStrict); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("strict override should reject inactive user, got %v", err)
	}
}

func TestLogoutRevokesRefresh(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addUser(t, "u1", "alice@example.com")
	ctx := context.Background()

	pair, err := env.engine.IssueToken(ctx, Credentials{Email: "alice@example.com", Password: testPassword}, "")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if err := env.engine.Logout(ctx, "u1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := env.engine.RefreshToken(ctx, RefreshRequest{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected refresh after logout to fail, got %v", err)
	}
}

func TestIssueTokenRateLimited(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	env := newTestEnv(t, func(cfg *Config, b *Builder) {
		cfg.Security.EnableRateLimit = true
		cfg.Security.MaxLoginAttempts = 3
		b.WithRedis(rdb)
	})
	env.addUser(t, "u1", "alice@example.com")
	ctx := context.Background()

	bad := Credentials{Email: "alice@example.com", Password: "wrong-password-123"}
	for i := 0; i < 3; i++ {
		_, err := env.engine.IssueToken(ctx, bad, "10.0.0.1")
		if !errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrRateLimited) {
			t.Fatalf("attempt %d: expected plain ErrUnauthenticated, got %v", i, err)
		}
	}

	_, err = env.engine.IssueToken(ctx, Credentials{Email: "alice@example.com", Password: testPassword}, "10.0.0.1")
	if !errors.Is(err, ErrUnauthenticated) || !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected throttled login, got %v", err)
	}

	mr.FastForward(env.cfg.Security.LoginCooldownDuration + time.Second)
	if _, err := env.engine.IssueToken(ctx, Credentials{Email: "alice@example.com", Password: testPassword}, "10.0.0.1"); err != nil {
		t.Fatalf("expected login after cooldown, got %v", err)
	}
}

func TestHashPasswordRoundTripsThroughLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	hash, err := env.engine.HashPassword("another-password-456")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	env.dir.add(UserRecord{ID: "u9", Email: "nine@example.com", PasswordHash: hash, Active: true, EmailConfirmed: true}, permission.RoleBasic)

	if _, err := env.engine.IssueToken(context.Background(), Credentials{Email: "nine@example.com", Password: "another-password-456"}, ""); err != nil {
		t.Fatalf("IssueToken with engine hash: %v", err)
	}
}
