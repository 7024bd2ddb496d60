package refresh

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// SecretSize is the number of random bytes in a refresh token.
const SecretSize = 32

// ErrMalformed is returned for tokens that cannot have been issued here.
var ErrMalformed = errors.New("refresh token malformed")

// NewSecret returns a fresh refresh token: SecretSize bytes from
// crypto/rand, standard base64 encoded.
func NewSecret() (string, error) {
	var raw [SecretSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw[:]), nil
}

// Hash returns the digest stored in place of the token.
func Hash(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// Validate checks that token decodes to SecretSize bytes.
func Validate(token string) error {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil || len(raw) != SecretSize {
		return ErrMalformed
	}
	return nil
}
