package goWarden

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goWarden/password"
	"gopkg.in/yaml.v3"
)

// ValidationMode selects how much work ValidateAccess does.
type ValidationMode int

const (
	// ModeJWTOnly trusts a valid signature and expiry.
	ModeJWTOnly ValidationMode = iota
	// ModeStrict also confirms the subject still exists and is active.
	ModeStrict
)

func (m ValidationMode) String() string {
	if m == ModeStrict {
		return "strict"
	}
	return "jwt_only"
}

// UnmarshalYAML accepts "jwt_only" or "strict".
func (m *ValidationMode) UnmarshalYAML(n *yaml.Node) error {
	mode, err := parseValidationMode(n.Value)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

func parseValidationMode(v string) (ValidationMode, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "jwt_only", "jwtonly":
		return ModeJWTOnly, nil
	case "strict":
		return ModeStrict, nil
	}
	return 0, errors.New("invalid ValidationMode")
}

// Secret is key material. Text values are used as raw bytes unless they
// carry a "base64:" prefix. It never prints its content.
type Secret []byte

func (s Secret) String() string { return "[redacted]" }

// UnmarshalYAML decodes a secret from a scalar.
func (s *Secret) UnmarshalYAML(n *yaml.Node) error {
	v, err := parseSecret(n.Value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func parseSecret(v string) (Secret, error) {
	if rest, ok := strings.CutPrefix(v, "base64:"); ok {
		b, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return nil, errors.New("secret has invalid base64 payload")
		}
		return Secret(b), nil
	}
	return Secret(v), nil
}

// Config is the complete engine configuration.
type Config struct {
	JWT            JWTConfig        `yaml:"jwt"`
	Refresh        RefreshConfig    `yaml:"refresh"`
	Password       PasswordConfig   `yaml:"password"`
	Security       SecurityConfig   `yaml:"security"`
	Permission     PermissionConfig `yaml:"permission"`
	Roles          RolesConfig      `yaml:"roles"`
	Audit          AuditConfig      `yaml:"audit"`
	Trail          TrailConfig      `yaml:"trail"`
	Metrics        MetricsConfig    `yaml:"metrics"`
	Logging        LoggingConfig    `yaml:"logging"`
	Database       DatabaseConfig   `yaml:"database"`
	Redis          RedisConfig      `yaml:"redis"`
	ValidationMode ValidationMode   `yaml:"validation_mode"`
}

// JWTConfig configures access tokens. Only HS256 is supported.
type JWTConfig struct {
	AccessTTL  time.Duration     `yaml:"access_ttl"`
	Key        Secret            `yaml:"key"`
	KeyID      string            `yaml:"key_id"`
	VerifyKeys map[string]Secret `yaml:"verify_keys"`
	Issuer     string            `yaml:"issuer"`
	Audience   string            `yaml:"audience"`
	Leeway     time.Duration     `yaml:"leeway"`
}

// RefreshConfig configures refresh records.
type RefreshConfig struct {
	TTL time.Duration `yaml:"ttl"`
	// RedisPrefix namespaces refresh records when the Redis store is used.
	RedisPrefix string `yaml:"redis_prefix"`
	// RevokeOnReuse deletes the live record when a superseded token is
	// presented.
	RevokeOnReuse bool `yaml:"revoke_on_reuse"`
}

// PasswordConfig holds Argon2id parameters.
type PasswordConfig struct {
	Memory         uint32 `yaml:"memory_kb"`
	Time           uint32 `yaml:"time"`
	Parallelism    uint8  `yaml:"parallelism"`
	SaltLength     uint32 `yaml:"salt_length"`
	KeyLength      uint32 `yaml:"key_length"`
	MinLength      int    `yaml:"min_length"`
	MaxLength      int    `yaml:"max_length"`
	UpgradeOnLogin bool   `yaml:"upgrade_on_login"`
}

// Hasher returns the Argon2id parameters.
func (p PasswordConfig) Hasher() password.Config {
	return password.Config{
		Memory:      p.Memory,
		Time:        p.Time,
		Parallelism: p.Parallelism,
		SaltLength:  p.SaltLength,
		KeyLength:   p.KeyLength,
		MinLength:   p.MinLength,
		MaxLength:   p.MaxLength,
	}
}

// SecurityConfig covers login policy and throttling.
type SecurityConfig struct {
	ProductionMode          bool          `yaml:"production_mode"`
	RequireConfirmedEmail   bool          `yaml:"require_confirmed_email"`
	EnableRateLimit         bool          `yaml:"enable_rate_limit"`
	EnableIPThrottle        bool          `yaml:"enable_ip_throttle"`
	EnableRefreshThrottle   bool          `yaml:"enable_refresh_throttle"`
	MaxLoginAttempts        int           `yaml:"max_login_attempts"`
	LoginCooldownDuration   time.Duration `yaml:"login_cooldown"`
	MaxRefreshAttempts      int           `yaml:"max_refresh_attempts"`
	RefreshCooldownDuration time.Duration `yaml:"refresh_cooldown"`
}

// PermissionConfig configures the permission cache.
type PermissionConfig struct {
	MaxBits  int           `yaml:"max_bits"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// RolesConfig names the built-in roles and the root administrator.
type RolesConfig struct {
	Admin string `yaml:"admin"`
	Basic string `yaml:"basic"`
	// RootAdminEmail is the account that can never lose the admin role.
	RootAdminEmail string `yaml:"root_admin_email"`
}

// AuditConfig configures the asynchronous security event dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// TrailConfig configures the change trail.
type TrailConfig struct {
	RecentLimit int `yaml:"recent_limit"`
}

// MetricsConfig toggles in-process metrics.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// LoggingConfig configures the zap logger built by LoadConfig callers.
type LoggingConfig struct {
	Env         string `yaml:"env"`
	Level       string `yaml:"level"`
	ServiceName string `yaml:"service_name"`
}

// DatabaseConfig configures the Postgres pool.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig configures the Redis client.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DefaultConfig returns the baseline configuration. The signing key is
// left empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: 15 * time.Minute,
			Issuer:    "goWarden",
		},
		Refresh: RefreshConfig{
			TTL:         7 * 24 * time.Hour,
			RedisPrefix: "wr",
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Security: SecurityConfig{
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			MaxRefreshAttempts:      20,
			RefreshCooldownDuration: time.Minute,
		},
		Permission: PermissionConfig{
			MaxBits:  64,
			CacheTTL: 10 * time.Minute,
		},
		Roles: RolesConfig{
			Admin: "Admin",
			Basic: "Basic",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Trail: TrailConfig{
			RecentLimit: 250,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Env:   "prod",
			Level: "info",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		ValidationMode: ModeJWTOnly,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Key = cloneBytes(cfg.JWT.Key)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string]Secret, len(cfg.JWT.VerifyKeys))
		for kid, k := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(k)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks internal consistency.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.AccessTTL > time.Hour {
		return errors.New("JWT AccessTTL must be <= 1h")
	}
	if len(c.JWT.Key) < 32 {
		return errors.New("JWT Key must be at least 32 bytes")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.Refresh.TTL < time.Hour {
		return errors.New("Refresh TTL must be >= 1h")
	}
	if c.Refresh.TTL <= c.JWT.AccessTTL {
		return errors.New("Refresh TTL must exceed JWT AccessTTL")
	}

	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 0 || c.Password.MaxLength < 0 ||
		(c.Password.MaxLength > 0 && c.Password.MinLength > c.Password.MaxLength) {
		return errors.New("Password MinLength/MaxLength must be >= 0 and ordered")
	}

	if c.Security.EnableRateLimit {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("MaxLoginAttempts must be > 0")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("LoginCooldownDuration must be > 0")
		}
		if c.Security.EnableRefreshThrottle {
			if c.Security.MaxRefreshAttempts <= 0 {
				return errors.New("MaxRefreshAttempts must be > 0 when refresh throttle is enabled")
			}
			if c.Security.RefreshCooldownDuration <= 0 {
				return errors.New("RefreshCooldownDuration must be > 0 when refresh throttle is enabled")
			}
		}
	}

	if c.Permission.MaxBits <= 0 || c.Permission.MaxBits%64 != 0 || c.Permission.MaxBits > 512 {
		return errors.New("Permission MaxBits must be 64, 128, 256 or 512")
	}
	if c.Permission.CacheTTL < 0 {
		return errors.New("Permission CacheTTL must be >= 0")
	}
	if strings.TrimSpace(c.Roles.Admin) == "" || strings.TrimSpace(c.Roles.Basic) == "" {
		return errors.New("Roles Admin and Basic are required")
	}
	if c.Roles.Admin == c.Roles.Basic {
		return errors.New("Roles Admin and Basic must differ")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Trail.RecentLimit < 0 {
		return errors.New("Trail RecentLimit must be >= 0")
	}
	if c.ValidationMode != ModeJWTOnly && c.ValidationMode != ModeStrict {
		return errors.New("invalid ValidationMode")
	}

	if c.Security.ProductionMode {
		if c.JWT.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires JWT AccessTTL <= 15m")
		}
		if c.Refresh.TTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires Refresh TTL <= 30d")
		}
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password KeyLength >= 32")
		}
		if !c.Security.EnableRateLimit {
			return errors.New("ProductionMode requires rate limiting")
		}
	}
	return nil
}
