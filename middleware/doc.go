// Package middleware adapts engine authentication and authorization to
// net/http.
//
// # Guards
//
//   - [Authenticate] validates the bearer access token and puts the
//     identity in the request context.
//   - [RequireJWTOnly] and [RequireStrict] do the same with the validation
//     mode fixed for the route; [Guard] takes the mode as an argument.
//   - [RequirePermission] checks one catalog permission for that identity.
//
// Failures are answered through [WriteError]: 401 for any credential
// problem, 403 for denials, 409 for conflicts, 429 when throttled and 503
// when a backing store is down.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Make authorization decisions itself; every decision comes from the
//     engine.
package middleware
