package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minKeyBytes = 32

var (
	// ErrAlgorithm is returned when a token is signed with anything other
	// than HS256.
	ErrAlgorithm = errors.New("unexpected signing algorithm")
	// ErrMissingSubject is returned when a verified token has no subject.
	ErrMissingSubject = errors.New("token subject missing")
)

// Config holds access-token settings. Only HMAC-SHA256 is supported.
type Config struct {
	AccessTTL    time.Duration
	Key          []byte
	Issuer       string
	Audience     string
	Leeway       time.Duration
	RequireIAT   bool
	MaxFutureIAT time.Duration
	KeyID        string
	// VerifyKeys maps kid -> key and, when set, replaces Key for verification.
	VerifyKeys map[string][]byte
}

// Manager issues and verifies HS256 access tokens.
type Manager struct {
	config Config
}

// Subject carries the identity attributes embedded in an access token.
type Subject struct {
	UserID    string
	Email     string
	FullName  string
	GivenName string
	Surname   string
	IPAddress string
	ImageURL  string
	Phone     string
	Roles     []string
}

// IdentityClaims is the access-token payload.
type IdentityClaims struct {
	Email     string   `json:"email,omitempty"`
	FullName  string   `json:"fullName,omitempty"`
	GivenName string   `json:"given_name,omitempty"`
	Surname   string   `json:"family_name,omitempty"`
	IPAddress string   `json:"ipAddress,omitempty"`
	ImageURL  string   `json:"image_url,omitempty"`
	Phone     string   `json:"phone_number,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Subject converts claims back into a Subject.
func (c *IdentityClaims) Subject() Subject {
	return Subject{
		UserID:    c.RegisteredClaims.Subject,
		Email:     c.Email,
		FullName:  c.FullName,
		GivenName: c.GivenName,
		Surname:   c.Surname,
		IPAddress: c.IPAddress,
		ImageURL:  c.ImageURL,
		Phone:     c.Phone,
		Roles:     append([]string(nil), c.Roles...),
	}
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if len(cfg.Key) < minKeyBytes {
		return nil, fmt.Errorf("hs256 key must be at least %d bytes", minKeyBytes)
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	for kid, key := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		if len(key) < minKeyBytes {
			return nil, fmt.Errorf("verify key for kid %q is too short", kid)
		}
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	cfg.Key = append([]byte(nil), cfg.Key...)
	return &Manager{config: cfg}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (j *Manager) AccessTTL() time.Duration { return j.config.AccessTTL }

// CreateAccess signs an access token for sub issued at now. It returns the
// token and its expiry.
func (j *Manager) CreateAccess(now time.Time, sub Subject) (string, time.Time, error) {
	if sub.UserID == "" {
		return "", time.Time{}, ErrMissingSubject
	}

	expires := now.Add(j.config.AccessTTL)
	claims := IdentityClaims{
		Email:     sub.Email,
		FullName:  sub.FullName,
		GivenName: sub.GivenName,
		Surname:   sub.Surname,
		IPAddress: sub.IPAddress,
		ImageURL:  sub.ImageURL,
		Phone:     sub.Phone,
		Roles:     sub.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.UserID,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	signed, err := token.SignedString(j.config.Key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// ParseAccess verifies tokenStr at now, including expiry.
func (j *Manager) ParseAccess(tokenStr string, now time.Time) (*IdentityClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.RequireIAT {
		options = append(options, jwt.WithIssuedAt())
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	claims, err := j.parse(tokenStr, options)
	if err != nil {
		return nil, err
	}
	if claims.IssuedAt != nil && j.config.MaxFutureIAT > 0 {
		if claims.IssuedAt.Time.After(now.Add(j.config.MaxFutureIAT)) {
			return nil, errors.New("token iat too far in the future")
		}
	}
	return claims, nil
}

// ParseExpired verifies the signature and algorithm of tokenStr but skips
// every time-based check. It is used to recover the identity from an
// expired access token during refresh. Issuer and audience are still
// enforced.
func (j *Manager) ParseExpired(tokenStr string) (*IdentityClaims, error) {
	claims, err := j.parse(tokenStr, []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	})
	if err != nil {
		return nil, err
	}
	if j.config.Issuer != "" && claims.Issuer != j.config.Issuer {
		return nil, jwt.ErrTokenInvalidIssuer
	}
	if j.config.Audience != "" && !containsAudience(claims.Audience, j.config.Audience) {
		return nil, jwt.ErrTokenInvalidAudience
	}
	return claims, nil
}

func (j *Manager) parse(tokenStr string, options []jwt.ParserOption) (*IdentityClaims, error) {
	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &IdentityClaims{}, j.keyFunc)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.RegisteredClaims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

func (j *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("%w: %s", ErrAlgorithm, t.Method.Alg())
	}

	if len(j.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := j.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return key, nil
	}

	if j.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != j.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return j.config.Key, nil
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
