package permission

import "math/bits"

// Set is an immutable set of permission names stored as a bitmask over
// a Registry. The zero value is the empty set.
type Set struct {
	registry *Registry
	words    []uint64
}

func newSet(r *Registry) Set {
	return Set{
		registry: r,
		words:    make([]uint64, r.maxBits/64),
	}
}

func (s *Set) set(bit int) {
	if bit < 0 || bit/64 >= len(s.words) {
		return
	}
	s.words[bit/64] |= 1 << (uint(bit) % 64)
}

func (s Set) hasBit(bit int) bool {
	if bit < 0 || bit/64 >= len(s.words) {
		return false
	}
	return s.words[bit/64]&(1<<(uint(bit)%64)) != 0
}

// Has reports whether name is in the set. Names outside the registry are
// never present.
func (s Set) Has(name Name) bool {
	if s.registry == nil {
		return false
	}
	bit, ok := s.registry.Bit(name)
	if !ok {
		return false
	}
	return s.hasBit(bit)
}

// Len returns the number of members.
func (s Set) Len() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Names returns members in registration order.
func (s Set) Names() []Name {
	if s.registry == nil {
		return nil
	}
	out := make([]Name, 0, s.Len())
	for i, w := range s.words {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			if name, ok := s.registry.Name(i*64 + tz); ok {
				out = append(out, name)
			}
			w &^= 1 << uint(tz)
		}
	}
	return out
}

// Union returns a new set containing members of s and other. Both sets
// must share a registry; a zero-valued side is treated as empty.
func (s Set) Union(other Set) Set {
	r := s.registry
	if r == nil {
		r = other.registry
	}
	if r == nil {
		return Set{}
	}
	out := newSet(r)
	for i := range out.words {
		if i < len(s.words) {
			out.words[i] |= s.words[i]
		}
		if i < len(other.words) {
			out.words[i] |= other.words[i]
		}
	}
	return out
}
