// Package goWarden authenticates users with short-lived HS256 access
// tokens and single-use rotating refresh tokens, answers permission checks
// from a per-user cache, and records entity changes into an audit trail
// written in the same transaction as the business data.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Errors
//
// Every failure an Engine method returns matches one of [ErrUnauthenticated],
// [ErrForbidden], [ErrConflict], [ErrTransient] or [ErrAuditCapture] under
// errors.Is. Credential failures never reveal whether the user exists;
// the reason is logged instead.
//
// # Permission cache
//
// A user's permission set is computed on first use from the role store and
// kept until [Engine.InvalidatePermissions]. Invalidation always wins: a
// check that starts after the call returns never sees the old set, even if
// a recompute was in flight.
//
// # Architecture boundaries
//
// The root package is the public surface. Flow orchestration, throttling,
// metrics and security event dispatch live under internal/ and are never
// exported. Storage adapters live in store/ and depend on this package,
// never the other way round.
package goWarden
