package goWarden

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goWarden/password"
	"github.com/MrEthical07/goWarden/permission"
)

const testPassword = "correct-password-123"

var testKey = []byte("0123456789abcdef0123456789abcdef")

// directory is an in-file UserProvider and RoleProvider.
type directory struct {
	mu         sync.Mutex
	users      map[string]UserRecord
	userRoles  map[string][]string
	roleClaims map[string][]string
	failRoles  error
}

func newDirectory() *directory {
	c := permission.DefaultCatalog()
	claims := func(ps []permission.Permission) []string {
		out := make([]string, 0, len(ps))
		for _, n := range permission.Names(ps) {
			out = append(out, n.String())
		}
		return out
	}
	return &directory{
		users:     map[string]UserRecord{},
		userRoles: map[string][]string{},
		roleClaims: map[string][]string{
			permission.RoleAdmin: claims(c.Admin()),
			permission.RoleBasic: claims(c.Basic()),
		},
	}
}

func (d *directory) add(u UserRecord, roles ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
	d.userRoles[u.ID] = append([]string(nil), roles...)
}

func (d *directory) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (d *directory) GetUserByID(_ context.Context, id string) (UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (d *directory) UpdatePasswordHash(_ context.Context, id, hash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	d.users[id] = u
	return nil
}

func (d *directory) SetActive(_ context.Context, id string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Active = active
	d.users[id] = u
	return nil
}

func (d *directory) UserRoles(_ context.Context, id string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failRoles != nil {
		return nil, d.failRoles
	}
	if _, ok := d.users[id]; !ok {
		return nil, ErrUserNotFound
	}
	return append([]string(nil), d.userRoles[id]...), nil
}

func (d *directory) RoleClaims(_ context.Context, role string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.roleClaims[role]...), nil
}

func (d *directory) Roles(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.roleClaims))
	for r := range d.roleClaims {
		out = append(out, r)
	}
	sort.Strings(out)
	return out, nil
}

func (d *directory) AddUserToRoles(_ context.Context, id string, roles []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.userRoles[id] = append(d.userRoles[id], roles...)
	return nil
}

func (d *directory) RemoveUserFromRoles(_ context.Context, id string, roles []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.userRoles[id][:0]
	for _, r := range d.userRoles[id] {
		if !contains(roles, r) {
			kept = append(kept, r)
		}
	}
	d.userRoles[id] = kept
	return nil
}

func (d *directory) CountUsersInRole(_ context.Context, role string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, roles := range d.userRoles {
		if contains(roles, role) {
			n++
		}
	}
	return n, nil
}

var errBackend = errors.New("backend down")

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Key = append(Secret(nil), testKey...)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16
	cfg.Audit.Enabled = false
	cfg.Roles.RootAdminEmail = "root@example.com"
	return cfg
}

func hashFor(t testing.TB, cfg Config, plain string) string {
	t.Helper()
	a, err := password.NewArgon2(cfg.Password.Hasher())
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	h, err := a.Hash(plain)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	return h
}

type testEnv struct {
	engine *Engine
	dir    *directory
	cfg    Config
	now    time.Time
}

func (env *testEnv) addUser(t testing.TB, id, email string, roles ...string) UserRecord {
	t.Helper()
	u := UserRecord{
		ID:             id,
		Email:          email,
		FirstName:      "Test",
		LastName:       strings.ToUpper(id),
		PasswordHash:   hashFor(t, env.cfg, testPassword),
		Active:         true,
		EmailConfirmed: true,
	}
	env.dir.add(u, roles...)
	return u
}

func newTestEnv(t testing.TB, mutate func(*Config, *Builder)) *testEnv {
	t.Helper()
	cfg := testConfig()
	dir := newDirectory()
	b := New().WithUserProvider(dir).WithRoleProvider(dir)
	if mutate != nil {
		mutate(&cfg, b)
	}
	e, err := b.WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(e.Close)
	return &testEnv{engine: e, dir: dir, cfg: cfg, now: time.Now()}
}
