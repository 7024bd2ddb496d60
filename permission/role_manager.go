package permission

import (
	"errors"
	"sort"
	"sync"
)

// RoleManager holds a static role -> permission table validated against a
// Registry. It seeds role claims for directories that have none and backs
// the in-memory directory.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Set
	frozen bool
}

// NewRoleManager returns an empty RoleManager bound to registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Set),
	}
}

// DefaultRoles returns a frozen RoleManager with the built-in roles:
// Admin holds every non-root catalog entry, Basic holds the basic ones.
func DefaultRoles(c *Catalog, registry *Registry) (*RoleManager, error) {
	rm := NewRoleManager(registry)
	if err := rm.RegisterRole(RoleAdmin, Names(c.Admin())); err != nil {
		return nil, err
	}
	if err := rm.RegisterRole(RoleBasic, Names(c.Basic())); err != nil {
		return nil, err
	}
	rm.Freeze()
	return rm, nil
}

// RegisterRole adds roleName with the given permissions. Every permission
// must already be registered.
func (rm *RoleManager) RegisterRole(roleName string, permissionNames []Name) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}

	if roleName == "" {
		return errors.New("role name empty")
	}

	if _, exists := rm.roles[roleName]; exists {
		return errors.New("role already registered")
	}

	set, unknown := rm.registry.SetOf(permissionNames)
	if len(unknown) > 0 {
		return errors.New("permission not registered: " + string(unknown[0]))
	}

	rm.roles[roleName] = set
	return nil
}

// Set returns the permission set for roleName.
func (rm *RoleManager) Set(roleName string) (Set, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	set, ok := rm.roles[roleName]
	return set, ok
}

// Claims returns the permission names for roleName as claim strings.
func (rm *RoleManager) Claims(roleName string) ([]string, bool) {
	set, ok := rm.Set(roleName)
	if !ok {
		return nil, false
	}
	names := set.Names()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out, true
}

// Roles returns registered role names sorted.
func (rm *RoleManager) Roles() []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	out := make([]string, 0, len(rm.roles))
	for name := range rm.roles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Freeze prevents further registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}

// SeedClaims returns the built-in roles of c as role -> claim strings,
// ready to be written to a role store.
func SeedClaims(c *Catalog) (map[string][]string, error) {
	registry, err := NewRegistryFromCatalog(c, 512)
	if err != nil {
		return nil, err
	}
	rm, err := DefaultRoles(c, registry)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, rm.Count())
	for _, role := range rm.Roles() {
		claims, _ := rm.Claims(role)
		out[role] = claims
	}
	return out, nil
}
