package password

import (
	"errors"
	"strings"
	"testing"
)

func secureConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

func TestArgon2RoundTrip(t *testing.T) {
	h := newHasher(t, secureConfig())

	encoded, err := h.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Fatalf("unexpected PHC prefix: %s", encoded)
	}

	if ok, err := h.Verify("P@ssw0rd-Ascii", encoded); err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}
	if ok, err := h.Verify("p@ssw0rd-ascii", encoded); err != nil || ok {
		t.Fatalf("expected case-sensitive mismatch, ok=%v err=%v", ok, err)
	}

	again, err := h.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if again == encoded {
		t.Fatal("expected a fresh salt per hash")
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	weak := newHasher(t, Config{Memory: 32 * 1024, Time: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	current := newHasher(t, secureConfig())

	weakHash, err := weak.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	currentHash, err := current.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if up, err := current.NeedsUpgrade(weakHash); err != nil || !up {
		t.Fatalf("weaker hash should need upgrade, up=%v err=%v", up, err)
	}
	if up, err := current.NeedsUpgrade(currentHash); err != nil || up {
		t.Fatalf("current hash should not need upgrade, up=%v err=%v", up, err)
	}
	// Stronger stored parameters are never downgraded.
	if up, err := weak.NeedsUpgrade(currentHash); err != nil || up {
		t.Fatalf("stronger hash should not need upgrade, up=%v err=%v", up, err)
	}
}

func TestArgon2RejectsMalformedHashes(t *testing.T) {
	h := newHasher(t, secureConfig())
	good, err := h.Hash("malformed-cases")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	cases := map[string]string{
		"not phc":         "not-a-phc-hash",
		"wrong algorithm": strings.Replace(good, "$argon2id$", "$argon2i$", 1),
		"wrong version":   strings.Replace(good, "$v=19$", "$v=18$", 1),
		"weak memory":     strings.Replace(good, "m=65536", "m=1024", 1),
		"zero time":       strings.Replace(good, "t=3", "t=0", 1),
		"duplicate param": strings.Replace(good, "t=3", "m=65536", 1),
		"extra param":     strings.Replace(good, "p=2", "p=2,x=1", 1),
		"bad salt":        strings.Replace(good, "$"+strings.Split(good, "$")[4]+"$", "$!!$", 1),
	}
	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := h.Verify("malformed-cases", encoded); !errors.Is(err, ErrMalformedHash) {
				t.Fatalf("expected ErrMalformedHash, got %v", err)
			}
			if _, err := h.NeedsUpgrade(encoded); !errors.Is(err, ErrMalformedHash) {
				t.Fatalf("NeedsUpgrade: expected ErrMalformedHash, got %v", err)
			}
		})
	}
}

func TestArgon2LengthBounds(t *testing.T) {
	cfg := secureConfig()
	cfg.MinLength = 12
	cfg.MaxLength = 64
	h := newHasher(t, cfg)

	if _, err := h.Hash(""); !errors.Is(err, ErrTooShort) {
		t.Fatalf("empty: expected ErrTooShort, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("a", 11)); !errors.Is(err, ErrTooShort) {
		t.Fatalf("11 bytes: expected ErrTooShort, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("a", 65)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("65 bytes: expected ErrTooLong, got %v", err)
	}

	atMax := strings.Repeat("b", 64)
	encoded, err := h.Hash(atMax)
	if err != nil {
		t.Fatalf("64 bytes should be accepted: %v", err)
	}
	if ok, err := h.Verify(atMax, encoded); err != nil || !ok {
		t.Fatalf("Verify at max length: ok=%v err=%v", ok, err)
	}
	if _, err := h.Verify(strings.Repeat("c", 65), encoded); !errors.Is(err, ErrTooLong) {
		t.Fatalf("Verify over max: expected ErrTooLong, got %v", err)
	}
}

func TestArgon2DefaultLengthBounds(t *testing.T) {
	h := newHasher(t, secureConfig())

	if _, err := h.Hash(strings.Repeat("d", DefaultMinLength-1)); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort below %d bytes, got %v", DefaultMinLength, err)
	}
	if _, err := h.Hash(strings.Repeat("e", DefaultMaxLength+1)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong above %d bytes, got %v", DefaultMaxLength, err)
	}
	if _, err := h.Hash(strings.Repeat("f", DefaultMaxLength)); err != nil {
		t.Fatalf("expected %d bytes to be accepted: %v", DefaultMaxLength, err)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 1024 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
		"bounds":      func(c *Config) { c.MinLength, c.MaxLength = 20, 10 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := secureConfig()
			mutate(&cfg)
			if _, err := NewArgon2(cfg); !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}
