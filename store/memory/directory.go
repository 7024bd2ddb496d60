// Package memory provides an in-process user and role directory for tests
// and development servers.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	goWarden "github.com/MrEthical07/goWarden"
	"github.com/MrEthical07/goWarden/permission"
	"github.com/google/uuid"
)

// ErrDuplicateEmail is returned by CreateUser when the email is taken.
var ErrDuplicateEmail = errors.New("email already registered")

// Directory implements goWarden.UserProvider and goWarden.RoleProvider.
type Directory struct {
	mu      sync.RWMutex
	users   map[string]goWarden.UserRecord
	byEmail map[string]string
	claims  map[string][]string
	members map[string]map[string]struct{}
}

func NewDirectory() *Directory {
	return &Directory{
		users:   make(map[string]goWarden.UserRecord),
		byEmail: make(map[string]string),
		claims:  make(map[string][]string),
		members: make(map[string]map[string]struct{}),
	}
}

// NewSeededDirectory returns a Directory holding the built-in roles of c.
func NewSeededDirectory(c *permission.Catalog) (*Directory, error) {
	seed, err := permission.SeedClaims(c)
	if err != nil {
		return nil, err
	}
	d := NewDirectory()
	for role, claims := range seed {
		d.claims[role] = claims
	}
	return d, nil
}

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// CreateUser stores u, assigning a random ID when u.ID is empty.
func (d *Directory) CreateUser(_ context.Context, u goWarden.UserRecord, roles ...string) (goWarden.UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := emailKey(u.Email)
	if _, taken := d.byEmail[key]; taken {
		return goWarden.UserRecord{}, ErrDuplicateEmail
	}
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if _, ok := d.claims[r]; !ok {
			return goWarden.UserRecord{}, goWarden.ErrRoleNotFound
		}
		set[r] = struct{}{}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	d.users[u.ID] = u
	d.byEmail[key] = u.ID
	d.members[u.ID] = set
	return u, nil
}

// SetRoleClaims creates role or replaces its claims. Callers must
// invalidate the permissions of its members afterwards.
func (d *Directory) SetRoleClaims(_ context.Context, role string, claims []string) error {
	if strings.TrimSpace(role) == "" {
		return errors.New("role name empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.claims[role] = append([]string(nil), claims...)
	return nil
}

// RoleMembers lists the IDs of users holding role.
func (d *Directory) RoleMembers(_ context.Context, role string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for id, roles := range d.members {
		if _, ok := roles[role]; ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (d *Directory) GetUserByEmail(_ context.Context, email string) (goWarden.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byEmail[emailKey(email)]
	if !ok {
		return goWarden.UserRecord{}, goWarden.ErrUserNotFound
	}
	return d.users[id], nil
}

func (d *Directory) GetUserByID(_ context.Context, id string) (goWarden.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return goWarden.UserRecord{}, goWarden.ErrUserNotFound
	}
	return u, nil
}

func (d *Directory) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return d.update(id, func(u *goWarden.UserRecord) { u.PasswordHash = hash })
}

func (d *Directory) SetActive(_ context.Context, id string, active bool) error {
	return d.update(id, func(u *goWarden.UserRecord) { u.Active = active })
}

func (d *Directory) update(id string, fn func(*goWarden.UserRecord)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return goWarden.ErrUserNotFound
	}
	fn(&u)
	d.users[id] = u
	return nil
}

func (d *Directory) UserRoles(_ context.Context, id string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	roles, ok := d.members[id]
	if !ok {
		return nil, goWarden.ErrUserNotFound
	}
	out := make([]string, 0, len(roles))
	for r := range roles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out, nil
}

func (d *Directory) RoleClaims(_ context.Context, role string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	claims, ok := d.claims[role]
	if !ok {
		return nil, goWarden.ErrRoleNotFound
	}
	return append([]string(nil), claims...), nil
}

func (d *Directory) Roles(context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.claims))
	for r := range d.claims {
		out = append(out, r)
	}
	sort.Strings(out)
	return out, nil
}

func (d *Directory) AddUserToRoles(_ context.Context, id string, roles []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.members[id]
	if !ok {
		return goWarden.ErrUserNotFound
	}
	for _, r := range roles {
		if _, ok := d.claims[r]; !ok {
			return goWarden.ErrRoleNotFound
		}
	}
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return nil
}

func (d *Directory) RemoveUserFromRoles(_ context.Context, id string, roles []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.members[id]
	if !ok {
		return goWarden.ErrUserNotFound
	}
	for _, r := range roles {
		delete(set, r)
	}
	return nil
}

func (d *Directory) CountUsersInRole(ctx context.Context, role string) (int, error) {
	ids, err := d.RoleMembers(ctx, role)
	return len(ids), err
}

var (
	_ goWarden.UserProvider = (*Directory)(nil)
	_ goWarden.RoleProvider = (*Directory)(nil)
)
