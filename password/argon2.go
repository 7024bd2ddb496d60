package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const algorithmID = "argon2id"

// Floors for accepted parameters, both when configuring a hasher and when
// reading a stored hash.
const (
	MinMemoryKB   uint32 = 8 * 1024
	MinSaltLength uint32 = 16
	MinKeyLength  uint32 = 16
)

const (
	// DefaultMinLength applies when Config.MinLength is zero.
	DefaultMinLength = 10
	// DefaultMaxLength applies when Config.MaxLength is zero. It bounds the
	// work a single login attempt can cause.
	DefaultMaxLength = 1024
)

var (
	ErrTooShort      = errors.New("password: too short")
	ErrTooLong       = errors.New("password: too long")
	ErrMalformedHash = errors.New("password: malformed argon2id hash")
	ErrConfig        = errors.New("password: invalid argon2id parameters")
)

// Config holds Argon2id cost parameters and the accepted password length
// range in bytes. Passwords are used as given, without normalization.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
	MaxLength   int
}

func (c Config) validate() error {
	switch {
	case c.Memory < MinMemoryKB:
		return fmt.Errorf("%w: memory %d KiB below %d", ErrConfig, c.Memory, MinMemoryKB)
	case c.Time < 1:
		return fmt.Errorf("%w: time must be >= 1", ErrConfig)
	case c.Parallelism < 1:
		return fmt.Errorf("%w: parallelism must be >= 1", ErrConfig)
	case c.SaltLength < MinSaltLength:
		return fmt.Errorf("%w: salt length %d below %d", ErrConfig, c.SaltLength, MinSaltLength)
	case c.KeyLength < MinKeyLength:
		return fmt.Errorf("%w: key length %d below %d", ErrConfig, c.KeyLength, MinKeyLength)
	case c.MinLength < 0 || c.MaxLength < 0:
		return fmt.Errorf("%w: negative length bound", ErrConfig)
	case c.MaxLength > 0 && c.MinLength > c.MaxLength:
		return fmt.Errorf("%w: min length %d above max length %d", ErrConfig, c.MinLength, c.MaxLength)
	}
	return nil
}

// Argon2 hashes passwords with Argon2id and encodes them in PHC format.
type Argon2 struct {
	cfg Config
}

// NewArgon2 validates cfg and fills in the default length bounds.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.MinLength == 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash returns the PHC encoding of password under a fresh salt.
func (a *Argon2) Hash(password string) (string, error) {
	switch {
	case len(password) < a.cfg.MinLength:
		return "", fmt.Errorf("%w: need at least %d bytes", ErrTooShort, a.cfg.MinLength)
	case len(password) > a.cfg.MaxLength:
		return "", fmt.Errorf("%w: at most %d bytes", ErrTooLong, a.cfg.MaxLength)
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("password: salt: %w", err)
	}
	p := phc{
		memory:      a.cfg.Memory,
		time:        a.cfg.Time,
		parallelism: a.cfg.Parallelism,
		salt:        salt,
	}
	p.key = p.derive(password, a.cfg.KeyLength)
	return p.String(), nil
}

// Verify reports whether password matches encoded. The comparison is
// constant time. Passwords above the configured maximum are rejected
// before any key derivation.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	if len(password) > a.cfg.MaxLength {
		return false, ErrTooLong
	}
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	got := p.derive(password, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(got, p.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker cost
// parameters or a different key length than a currently uses.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	return p.memory < a.cfg.Memory ||
		p.time < a.cfg.Time ||
		p.parallelism < a.cfg.Parallelism ||
		uint32(len(p.key)) != a.cfg.KeyLength, nil
}

// phc is a decoded $argon2id$v=19$m=..,t=..,p=..$salt$key string.
type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (p phc) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, keyLen)
}

func (p phc) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version, p.memory, p.time, p.parallelism,
		base64.StdEncoding.EncodeToString(p.salt),
		base64.StdEncoding.EncodeToString(p.key))
}

func malformed(what string) error {
	return fmt.Errorf("%w: %s", ErrMalformedHash, what)
}

func parsePHC(encoded string) (phc, error) {
	var p phc
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return p, malformed("layout")
	}
	if fields[1] != algorithmID {
		return p, malformed("algorithm " + strconv.Quote(fields[1]))
	}
	if fields[2] != "v="+strconv.Itoa(argon2.Version) {
		return p, malformed("version " + strconv.Quote(fields[2]))
	}
	if err := p.parseParams(fields[3]); err != nil {
		return p, err
	}

	var err error
	if p.salt, err = base64.StdEncoding.DecodeString(fields[4]); err != nil || uint32(len(p.salt)) < MinSaltLength {
		return p, malformed("salt")
	}
	if p.key, err = base64.StdEncoding.DecodeString(fields[5]); err != nil || len(p.key) == 0 {
		return p, malformed("key")
	}
	return p, nil
}

// parseParams reads exactly the m, t and p entries, in any order.
func (p *phc) parseParams(s string) error {
	seen := map[string]bool{}
	for _, pair := range strings.Split(s, ",") {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || seen[name] {
			return malformed("parameter " + strconv.Quote(pair))
		}
		seen[name] = true

		bits := 32
		if name == "p" {
			bits = 8
		}
		v, err := strconv.ParseUint(raw, 10, bits)
		if err != nil || v == 0 {
			return malformed("parameter " + strconv.Quote(pair))
		}
		switch name {
		case "m":
			if uint32(v) < MinMemoryKB {
				return malformed("memory below floor")
			}
			p.memory = uint32(v)
		case "t":
			p.time = uint32(v)
		case "p":
			p.parallelism = uint8(v)
		default:
			return malformed("parameter " + strconv.Quote(name))
		}
	}
	if len(seen) != 3 {
		return malformed("missing parameters")
	}
	return nil
}
