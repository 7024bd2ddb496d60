package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(t *testing.T, mutate func(*Config)) *Manager {
	t.Helper()
	cfg := Config{AccessTTL: 5 * time.Minute, Key: testKey}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestNewManagerRejectsShortKey(t *testing.T) {
	if _, err := NewManager(Config{AccessTTL: time.Minute, Key: []byte("short")}); err == nil {
		t.Fatal("expected short key to be rejected")
	}
}

func TestCreateAndParseAccessRoundTrip(t *testing.T) {
	m := newTestManager(t, nil)
	now := time.Now()

	token, exp, err := m.CreateAccess(now, Subject{
		UserID:    "u1",
		Email:     "a@example.com",
		FullName:  "Ada Lovelace",
		GivenName: "Ada",
		Surname:   "Lovelace",
		IPAddress: "10.0.0.1",
		Roles:     []string{"Admin"},
	})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if !exp.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := m.ParseAccess(token, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	sub := claims.Subject()
	if sub.UserID != "u1" || sub.Email != "a@example.com" || sub.IPAddress != "10.0.0.1" {
		t.Fatalf("unexpected subject %+v", sub)
	}
	if len(sub.Roles) != 1 || sub.Roles[0] != "Admin" {
		t.Fatalf("unexpected roles %v", sub.Roles)
	}
}

func TestParseAccessRejectsExpired(t *testing.T) {
	m := newTestManager(t, nil)
	now := time.Now()
	token, _, err := m.CreateAccess(now, Subject{UserID: "u1"})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	if _, err := m.ParseAccess(token, now.Add(10*time.Minute)); !errors.Is(err, gjwt.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseExpiredAcceptsExpiredToken(t *testing.T) {
	m := newTestManager(t, nil)
	token, _, err := m.CreateAccess(time.Now().Add(-time.Hour), Subject{UserID: "u1"})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	claims, err := m.ParseExpired(token)
	if err != nil {
		t.Fatalf("parse expired: %v", err)
	}
	if claims.Subject().UserID != "u1" {
		t.Fatalf("unexpected subject %q", claims.Subject().UserID)
	}
}

func TestParseExpiredRejectsTamperedSignature(t *testing.T) {
	m := newTestManager(t, nil)
	token, _, err := m.CreateAccess(time.Now(), Subject{UserID: "u1"})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	other := newTestManager(t, func(c *Config) { c.Key = []byte("ffffffffffffffffffffffffffffffff") })
	if _, err := other.ParseExpired(token); err == nil {
		t.Fatal("expected signature mismatch to fail")
	}

	parts := strings.Split(token, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))
	if _, err := m.ParseExpired(strings.Join(parts, ".")); err == nil {
		t.Fatal("expected tampered signature to fail")
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	m := newTestManager(t, nil)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	claims := IdentityClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	edToken, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.ParseExpired(edToken); err == nil {
		t.Fatal("expected EdDSA token to be rejected")
	}

	hs512, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.ParseAccess(hs512, time.Now()); err == nil {
		t.Fatal("expected HS512 token to be rejected")
	}

	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := m.ParseExpired(none); err == nil {
		t.Fatal("expected alg=none token to be rejected")
	}
}

func TestParseIssuerAndAudience(t *testing.T) {
	m := newTestManager(t, func(c *Config) {
		c.Issuer = "warden"
		c.Audience = "api"
	})
	other := newTestManager(t, func(c *Config) {
		c.Issuer = "other"
		c.Audience = "api"
	})

	token, _, err := other.CreateAccess(time.Now(), Subject{UserID: "u1"})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(token, time.Now()); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
	if _, err := m.ParseExpired(token); !errors.Is(err, gjwt.ErrTokenInvalidIssuer) {
		t.Fatalf("expected ErrTokenInvalidIssuer, got %v", err)
	}
}

func TestParseRejectsMissingSubject(t *testing.T) {
	m := newTestManager(t, nil)
	claims := IdentityClaims{RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.ParseExpired(token); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
	if _, _, err := m.CreateAccess(time.Now(), Subject{}); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject on create, got %v", err)
	}
}

func TestVerifyKeysRotation(t *testing.T) {
	oldKey := []byte("oldoldoldoldoldoldoldoldoldoldol")
	signer := newTestManager(t, func(c *Config) {
		c.Key = oldKey
		c.KeyID = "k1"
	})
	verifier := newTestManager(t, func(c *Config) {
		c.KeyID = "k2"
		c.VerifyKeys = map[string][]byte{"k1": oldKey, "k2": testKey}
	})

	token, _, err := signer.CreateAccess(time.Now(), Subject{UserID: "u1"})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := verifier.ParseAccess(token, time.Now()); err != nil {
		t.Fatalf("expected rotated key to verify: %v", err)
	}
}
