package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	goWarden "github.com/MrEthical07/goWarden"
)

// Authenticator is the part of *goWarden.Engine the guards need.
type Authenticator interface {
	ValidateAccess(ctx context.Context, token string) (*goWarden.Identity, error)
}

// Authorizer is the part of *goWarden.Engine RequirePermission needs.
type Authorizer interface {
	Check(ctx context.Context, userID, action, resource string) error
}

// Authenticate validates the bearer token and stores the identity in the
// request context. Every rejection gets the same 401 body.
func Authenticate(engine Authenticator) func(http.Handler) http.Handler {
	if engine == nil {
		return authenticate(nil)
	}
	return authenticate(engine.ValidateAccess)
}

func authenticate(validate func(ctx context.Context, token string) (*goWarden.Identity, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validate == nil {
				WriteError(w, goWarden.ErrEngineNotReady)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, goWarden.ErrUnauthenticated)
				return
			}

			id, err := validate(r.Context(), token)
			if err != nil {
				WriteError(w, err)
				return
			}

			ctx := goWarden.WithIdentity(r.Context(), id)
			ctx = goWarden.WithClientIP(ctx, clientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission lets the request through only when the authenticated
// identity holds Permissions.<resource>.<action>. It must run after
// Authenticate.
func RequirePermission(engine Authorizer, action, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := goWarden.IdentityFromContext(r.Context())
			if !ok {
				WriteError(w, goWarden.ErrUnauthenticated)
				return
			}
			if err := engine.Check(r.Context(), id.UserID, action, resource); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, goWarden.ErrRateLimited):
		return http.StatusTooManyRequests
	case goWarden.IsUnauthenticated(err):
		return http.StatusUnauthorized
	case goWarden.IsForbidden(err):
		return http.StatusForbidden
	case errors.Is(err, goWarden.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, goWarden.ErrPasswordPolicy):
		return http.StatusBadRequest
	case goWarden.IsTransient(err), errors.Is(err, goWarden.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, goWarden.ErrAuditCapture):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// WriteError answers with the status for err and a fixed body per status,
// so internal reasons never reach the client.
func WriteError(w http.ResponseWriter, err error) {
	code := StatusFor(err)
	http.Error(w, strings.ToLower(http.StatusText(code)), code)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
