package goWarden

import (
	"errors"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintHigh:
		return "HIGH"
	case LintWarn:
		return "WARN"
	default:
		return "INFO"
	}
}

// LintWarning is one advisory finding. Lint findings never stop Build;
// Validate does that.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the list returned by Config.Lint.
type LintResult []LintWarning

// Codes returns the code of every warning in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// BySeverity returns warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins warnings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	msgs := make([]string, len(hits))
	for i, w := range hits {
		msgs[i] = w.Severity.String() + " " + w.Code + ": " + w.Message
	}
	return errors.New("config lint: " + strings.Join(msgs, "; "))
}

// Lint reports settings that are valid but risky.
func (c Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.JWT.Leeway > time.Minute {
		add("leeway_large", LintWarn, "JWT leeway above 1m widens the replay window of expired tokens")
	}
	if c.JWT.AccessTTL > 10*time.Minute {
		add("access_ttl_long", LintInfo, "access tokens cannot be revoked before they expire")
	}
	if c.Refresh.TTL > 30*24*time.Hour {
		add("refresh_ttl_long", LintWarn, "refresh tokens live longer than 30 days")
	}
	if !c.Security.EnableRateLimit {
		sev := LintWarn
		if c.Security.ProductionMode {
			sev = LintHigh
		}
		add("rate_limits_disabled", sev, "login attempts are not throttled")
	} else if !c.Security.EnableIPThrottle {
		add("ip_throttle_disabled", LintInfo, "login failures are only counted per email")
	}
	if !c.Refresh.RevokeOnReuse {
		add("reuse_not_revoked", LintInfo, "a superseded refresh token fails but leaves the live one intact")
	}
	if c.Permission.CacheTTL == 0 {
		add("permission_cache_unbounded", LintWarn, "cached permissions only change on explicit invalidation")
	}
	if strings.TrimSpace(c.Roles.RootAdminEmail) == "" {
		add("root_admin_unset", LintInfo, "no account is protected from losing the admin role")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintWarn, "security events are not emitted")
	}
	if c.ValidationMode == ModeJWTOnly && c.JWT.AccessTTL > 15*time.Minute {
		add("jwtonly_long_access", LintHigh, "deactivated users keep access for the whole access TTL")
	}
	return ws
}
