package password

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestVerifierArgonAndBcrypt(t *testing.T) {
	argon, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	v := NewVerifier(argon)

	phc, err := v.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if ok, err := v.Verify("correct-password", phc); err != nil || !ok {
		t.Fatalf("expected argon hash to verify, ok=%v err=%v", ok, err)
	}

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}
	if ok, err := v.Verify("legacy-password", string(legacy)); err != nil || !ok {
		t.Fatalf("expected bcrypt hash to verify, ok=%v err=%v", ok, err)
	}
	if ok, err := v.Verify("wrong-password", string(legacy)); err != nil || ok {
		t.Fatalf("expected bcrypt mismatch, ok=%v err=%v", ok, err)
	}

	up, err := v.NeedsUpgrade(string(legacy))
	if err != nil || !up {
		t.Fatalf("expected bcrypt hash to need upgrade, up=%v err=%v", up, err)
	}
}

func TestVerifierRejectsUnknownFormat(t *testing.T) {
	argon, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	if _, err := NewVerifier(argon).Verify("x", "plaintext"); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("expected ErrUnsupportedHash, got %v", err)
	}
}
