package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnsupportedHash is returned for encodings no verifier understands.
var ErrUnsupportedHash = errors.New("unsupported password hash")

// Verifier checks passwords against stored hashes of several formats and
// produces new hashes with Argon2id. Bcrypt hashes are accepted so that
// credentials imported from other systems keep working; they always
// report NeedsUpgrade.
type Verifier struct {
	argon *Argon2
}

// NewVerifier wraps an Argon2 hasher.
func NewVerifier(argon *Argon2) *Verifier {
	return &Verifier{argon: argon}
}

// Hash hashes password with Argon2id.
func (v *Verifier) Hash(password string) (string, error) {
	return v.argon.Hash(password)
}

// Verify dispatches on the hash prefix.
func (v *Verifier) Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$"+algorithmID+"$"):
		return v.argon.Verify(password, encodedHash)
	case isBcrypt(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	default:
		return false, ErrUnsupportedHash
	}
}

// NeedsUpgrade reports whether encodedHash should be replaced by a fresh
// Argon2id hash after a successful login.
func (v *Verifier) NeedsUpgrade(encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		return true, nil
	}
	return v.argon.NeedsUpgrade(encodedHash)
}

func isBcrypt(h string) bool {
	return strings.HasPrefix(h, "$2a$") || strings.HasPrefix(h, "$2b$") || strings.HasPrefix(h, "$2y$")
}
