package goWarden

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WARDEN_"

// LoadConfig reads a YAML file over the defaults, then applies WARDEN_*
// environment overrides. An empty path skips the file. The result is not
// validated; Build does that.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads the given .env files into the process environment
// without overriding variables that are already set. Missing files are
// skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}

	if v, ok := lookup(EnvPrefix + "JWT_KEY"); ok {
		key, err := parseSecret(v)
		if err != nil {
			return fmt.Errorf("%sJWT_KEY: %w", EnvPrefix, err)
		}
		cfg.JWT.Key = key
	}
	str("JWT_ISSUER", &cfg.JWT.Issuer)
	str("JWT_AUDIENCE", &cfg.JWT.Audience)
	str("DATABASE_DSN", &cfg.Database.DSN)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("LOG_ENV", &cfg.Logging.Env)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("ROOT_ADMIN_EMAIL", &cfg.Roles.RootAdminEmail)

	if v, ok := lookup(EnvPrefix + "VALIDATION_MODE"); ok {
		mode, err := parseValidationMode(v)
		if err != nil {
			return fmt.Errorf("%sVALIDATION_MODE: %w", EnvPrefix, err)
		}
		cfg.ValidationMode = mode
	}

	for _, step := range []error{
		dur("JWT_ACCESS_TTL", &cfg.JWT.AccessTTL),
		dur("REFRESH_TTL", &cfg.Refresh.TTL),
		dur("PERMISSION_CACHE_TTL", &cfg.Permission.CacheTTL),
		boolean("PRODUCTION_MODE", &cfg.Security.ProductionMode),
		boolean("RATE_LIMIT", &cfg.Security.EnableRateLimit),
		boolean("REQUIRE_CONFIRMED_EMAIL", &cfg.Security.RequireConfirmedEmail),
	} {
		if step != nil {
			return step
		}
	}
	return nil
}
