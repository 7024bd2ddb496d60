// Package jwt issues and verifies HS256 access tokens carrying the caller's
// identity claims.
//
// Only HMAC-SHA256 is accepted; tokens with any other "alg" header,
// including "none", are rejected before the key is consulted.
// [Manager.ParseExpired] skips time-based checks so that the refresh flow
// can recover the subject from an expired token.
package jwt
