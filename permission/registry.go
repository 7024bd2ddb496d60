package permission

import (
	"errors"
	"fmt"
	"sync"
)

// Registry maps permission names to bit positions within a Set.
// Capacity is fixed at construction to 64, 128, 256 or 512 bits.
type Registry struct {
	maxBits int

	mu        sync.RWMutex
	nameToBit map[Name]int
	bitToName map[int]Name
	frozen    bool
}

// NewRegistry creates an empty Registry with room for maxBits permissions.
func NewRegistry(maxBits int) (*Registry, error) {
	if maxBits != 64 && maxBits != 128 && maxBits != 256 && maxBits != 512 {
		return nil, errors.New("invalid maxBits")
	}

	return &Registry{
		maxBits:   maxBits,
		nameToBit: make(map[Name]int),
		bitToName: make(map[int]Name),
	}, nil
}

// NewRegistryFromCatalog registers every catalog entry in order and
// freezes the result.
func NewRegistryFromCatalog(c *Catalog, maxBits int) (*Registry, error) {
	r, err := NewRegistry(maxBits)
	if err != nil {
		return nil, err
	}
	for _, p := range c.All() {
		if _, err := r.Register(p.Name()); err != nil {
			return nil, fmt.Errorf("register %s: %w", p.Name(), err)
		}
	}
	r.Freeze()
	return r, nil
}

// Register assigns the next available bit to name.
// Must be called before Freeze.
func (r *Registry) Register(name Name) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, ErrRegistryFrozen
	}

	if name == "" {
		return -1, errors.New("permission name cannot be empty")
	}

	if _, exists := r.nameToBit[name]; exists {
		return -1, ErrDuplicatePermission
	}

	nextBit := len(r.nameToBit)
	if nextBit >= r.maxBits {
		return -1, errors.New("permission limit exceeded")
	}

	r.nameToBit[name] = nextBit
	r.bitToName[nextBit] = name

	return nextBit, nil
}

// Bit returns the bit index for name, or false if not registered.
func (r *Registry) Bit(name Name) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the permission name for the given bit index, or false if unassigned.
func (r *Registry) Name(bit int) (Name, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

// MaxBits returns the registry capacity.
func (r *Registry) MaxBits() int { return r.maxBits }

// SetOf builds a Set from names. Unknown names are returned separately
// and left out of the Set.
func (r *Registry) SetOf(names []Name) (Set, []Name) {
	s := newSet(r)
	var unknown []Name
	for _, n := range names {
		bit, ok := r.Bit(n)
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		s.set(bit)
	}
	return s, unknown
}

// ParseClaims is SetOf for free-form claim strings read from storage.
func (r *Registry) ParseClaims(claims []string) (Set, []string) {
	names := make([]Name, len(claims))
	for i, c := range claims {
		names[i] = Name(c)
	}
	s, unknown := r.SetOf(names)
	if len(unknown) == 0 {
		return s, nil
	}
	out := make([]string, len(unknown))
	for i, u := range unknown {
		out[i] = string(u)
	}
	return s, out
}
