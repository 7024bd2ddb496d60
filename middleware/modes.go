package middleware

import (
	"context"
	"net/http"

	goWarden "github.com/MrEthical07/goWarden"
)

// ModeValidator validates with a caller-chosen mode. *goWarden.Engine
// satisfies it.
type ModeValidator interface {
	ValidateAccessMode(ctx context.Context, token string, mode goWarden.ValidationMode) (*goWarden.Identity, error)
}

// Guard is Authenticate with the validation mode fixed for the wrapped
// handler, whatever the engine's configured default.
func Guard(engine ModeValidator, mode goWarden.ValidationMode) func(http.Handler) http.Handler {
	if engine == nil {
		return authenticate(nil)
	}
	return authenticate(func(ctx context.Context, token string) (*goWarden.Identity, error) {
		return engine.ValidateAccessMode(ctx, token, mode)
	})
}

// RequireJWTOnly trusts signature and expiry alone for the wrapped handler.
func RequireJWTOnly(engine ModeValidator) func(http.Handler) http.Handler {
	return Guard(engine, goWarden.ModeJWTOnly)
}

// RequireStrict also confirms the user still exists and is active, for
// routes such as role changes where a deactivated account must stop at once.
func RequireStrict(engine ModeValidator) func(http.Handler) http.Handler {
	return Guard(engine, goWarden.ModeStrict)
}
