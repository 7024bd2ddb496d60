package goWarden

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goWarden/permission"
)

func TestAssignRolesLastAdminConflict(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addUser(t, "a1", "admin@example.com", permission.RoleAdmin)
	ctx := context.Background()

	err := env.engine.AssignRoles(ctx, "a1", []UserRole{{RoleName: permission.RoleAdmin, Selected: false}})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := env.engine.Check(ctx, "a1", permission.ActionView, permission.ResourceUsers); err != nil {
		t.Fatalf("admin role must be kept: %v", err)
	}

	env.addUser(t, "a2", "second@example.com", permission.RoleAdmin)
	if err := env.engine.AssignRoles(ctx, "a1", []UserRole{{RoleName: permission.RoleAdmin, Selected: false}}); err != nil {
		t.Fatalf("removing one of two admins: %v", err)
	}
	if err := env.engine.Check(ctx, "a1", permission.ActionView, permission.ResourceUsers); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden after removal, got %v", err)
	}
}

func TestAssignRolesRootAdminConflict(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addUser(t, "root", "ROOT@example.com", permission.RoleAdmin)
	env.addUser(t, "a2", "second@example.com", permission.RoleAdmin)

	err := env.engine.AssignRoles(context.Background(), "root", []UserRole{{RoleName: permission.RoleAdmin}})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRoleAssignmentConflict]; got != 1 {
		t.Fatalf("expected one conflict, got %d", got)
	}
}

func TestAssignRolesSkipsUnknownAndListsRoles(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addUser(t, "u1", "alice@example.com")
	ctx := context.Background()

	if err := env.engine.AssignRoles(ctx, "u1", []UserRole{
		{RoleName: "Nope", Selected: true},
		{RoleName: permission.RoleBasic, Selected: true},
	}); err != nil {
		t.Fatalf("AssignRoles: %v", err)
	}

	roles, err := env.engine.UserRoles(ctx, "u1")
	if err != nil {
		t.Fatalf("UserRoles: %v", err)
	}
	want := map[string]bool{permission.RoleAdmin: false, permission.RoleBasic: true}
	if len(roles) != len(want) {
		t.Fatalf("expected %d roles, got %v", len(want), roles)
	}
	for _, r := range roles {
		if want[r.RoleName] != r.Selected {
			t.Fatalf("role %s selected=%v", r.RoleName, r.Selected)
		}
	}

	if err := env.engine.AssignRoles(ctx, "ghost", nil); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSetUserActive(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addUser(t, "a1", "admin@example.com", permission.RoleAdmin)
	env.addUser(t, "u1", "alice@example.com", permission.RoleBasic)
	ctx := context.Background()

	if err := env.engine.SetUserActive(ctx, "a1", false); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for admin, got %v", err)
	}

	pair, err := env.engine.IssueToken(ctx, Credentials{Email: "alice@example.com", Password: testPassword}, "")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if err := env.engine.SetUserActive(ctx, "u1", false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	if _, err := env.engine.RefreshToken(ctx, RefreshRequest{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("deactivated user must not refresh, got %v", err)
	}
	if _, err := env.engine.IssueToken(ctx, Credentials{Email: "alice@example.com", Password: testPassword}, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("deactivated user must not log in, got %v", err)
	}

	if err := env.engine.SetUserActive(ctx, "u1", true); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if _, err := env.engine.IssueToken(ctx, Credentials{Email: "alice@example.com", Password: testPassword}, ""); err != nil {
		t.Fatalf("reactivated user should log in: %v", err)
	}
}
