package goWarden

import (
	"errors"

	"github.com/MrEthical07/goWarden/permission"
	"github.com/MrEthical07/goWarden/trail"
)

var (
	// ErrUnauthenticated covers every credential or token failure. The
	// concrete reason is logged, never returned.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the identity lacks the permission, or could not
	// be resolved for authorization.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is a business-rule violation such as removing the last
	// administrator.
	ErrConflict = errors.New("conflict")
	// ErrTransient means a backing store failed; the whole operation may be
	// retried.
	ErrTransient = errors.New("transient failure")
	// ErrAuditCapture marks per-entity audit capture failures.
	ErrAuditCapture = trail.ErrCaptureFailed
	// ErrRateLimited is joined with ErrUnauthenticated when a caller is
	// throttled.
	ErrRateLimited = errors.New("rate limited")
	// ErrUserNotFound is returned by providers for unknown users.
	ErrUserNotFound = errors.New("user not found")
	// ErrPasswordPolicy means a new password was rejected: too short, too
	// long, or equal to the current one.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrRoleNotFound is returned by providers for unknown roles.
	ErrRoleNotFound   = errors.New("role not found")
	ErrEngineNotReady = errors.New("engine not initialized")
)

// IsUnauthenticated reports whether err should be answered with 401.
func IsUnauthenticated(err error) bool { return errors.Is(err, ErrUnauthenticated) }

// IsForbidden reports whether err is an authorization denial.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden) || errors.Is(err, permission.ErrDenied)
}

// IsTransient reports whether err came from an unavailable store.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }
