// Package refresh implements opaque rotating refresh tokens and the
// stores that hold them.
//
// # Token format
//
// A refresh token is 32 bytes from crypto/rand, standard base64 encoded.
// Stores never see the token itself, only its SHA-256 digest.
//
// # Rotation
//
// Each owner has at most one live [Record]. [Store.Rotate] is a
// compare-and-replace on the stored hash: the first caller presenting the
// current token wins and every later presentation of that token fails
// with [ErrMismatch].
//
// # What this package must NOT do
//
//   - Issue or parse access tokens.
//   - Import the root goWarden package.
package refresh
