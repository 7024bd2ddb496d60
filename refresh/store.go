package refresh

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the owner has no live record.
	ErrNotFound = errors.New("refresh record not found")
	// ErrExpired is returned when the record's expiry has passed.
	ErrExpired = errors.New("refresh record expired")
	// ErrMismatch is returned when the presented token is not the current one.
	ErrMismatch = errors.New("refresh token mismatch")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("refresh store unavailable")
)

// Record is the single live refresh credential for an owner. Only the
// token hash is kept.
type Record struct {
	OwnerID   string
	TokenHash [32]byte
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TTL returns the record lifetime.
func (r Record) TTL() time.Duration {
	return r.ExpiresAt.Sub(r.IssuedAt)
}

// Expired reports whether the record is unusable at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Store persists refresh records. Implementations must make Rotate an
// atomic compare-and-replace: of any number of concurrent Rotate calls
// presenting the same hash, at most one succeeds.
type Store interface {
	// Replace unconditionally overwrites the owner's record.
	Replace(ctx context.Context, rec Record) error
	// Rotate replaces the owner's record with next only if the stored
	// hash equals presented and the record has not expired at now.
	Rotate(ctx context.Context, presented [32]byte, next Record, now time.Time) error
	// Get returns the owner's record.
	Get(ctx context.Context, ownerID string) (Record, error)
	// Delete removes the owner's record. Deleting a missing record is not
	// an error.
	Delete(ctx context.Context, ownerID string) error
}

// Options tunes store behavior shared by all implementations.
type Options struct {
	// RevokeOnReuse deletes the record when a stale token is presented,
	// forcing the owner to log in again.
	RevokeOnReuse bool
}
