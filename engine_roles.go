package goWarden

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrEthical07/goWarden/internal/logging"
	"go.uber.org/zap"
)

// UserRoles lists every role with a flag telling whether userID holds it.
func (e *Engine) UserRoles(ctx context.Context, userID string) ([]UserRole, error) {
	if e == nil || e.roles == nil {
		return nil, ErrEngineNotReady
	}
	all, err := e.roles.Roles(ctx)
	if err != nil {
		return nil, transient("list roles", err)
	}
	held, err := e.roles.UserRoles(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, transient("user roles", err)
	}
	has := make(map[string]bool, len(held))
	for _, r := range held {
		has[r] = true
	}
	out := make([]UserRole, 0, len(all))
	for _, r := range all {
		out = append(out, UserRole{RoleName: r, Selected: has[r]})
	}
	return out, nil
}

// AssignRoles adds the selected roles to userID and removes the rest.
// Unknown role names are skipped. Removing the admin role from the root
// administrator or from the last administrator fails with ErrConflict and
// changes nothing. The user's cached permissions are invalidated before
// AssignRoles returns.
func (e *Engine) AssignRoles(ctx context.Context, userID string, roles []UserRole) error {
	if e == nil || e.roles == nil {
		return ErrEngineNotReady
	}
	log := e.logger(ctx).With(logging.Op("assign_roles"), logging.UserID(userID))

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return transient("get user", err)
	}
	held, err := e.roles.UserRoles(ctx, userID)
	if err != nil {
		return transient("user roles", err)
	}
	existing, err := e.roles.Roles(ctx)
	if err != nil {
		return transient("list roles", err)
	}
	known := make(map[string]bool, len(existing))
	for _, r := range existing {
		known[r] = true
	}

	admin := e.config.Roles.Admin
	if contains(held, admin) && deselects(roles, admin) {
		if root := e.config.Roles.RootAdminEmail; root != "" && strings.EqualFold(user.Email, root) {
			e.metricInc(MetricRoleAssignmentConflict)
			log.Info("role change rejected", logging.Reason("root_admin"))
			return fmt.Errorf("%w: cannot remove %s role from root administrator", ErrConflict, admin)
		}
		n, err := e.roles.CountUsersInRole(ctx, admin)
		if err != nil {
			return transient("count admins", err)
		}
		if n <= 1 {
			e.metricInc(MetricRoleAssignmentConflict)
			log.Info("role change rejected", logging.Reason("last_admin"))
			return fmt.Errorf("%w: at least one %s is required", ErrConflict, admin)
		}
	}

	var add, remove []string
	for _, r := range roles {
		if !known[r.RoleName] {
			log.Debug("unknown role skipped", zap.String("role", r.RoleName))
			continue
		}
		switch {
		case r.Selected && !contains(held, r.RoleName):
			add = append(add, r.RoleName)
		case !r.Selected && contains(held, r.RoleName):
			remove = append(remove, r.RoleName)
		}
	}

	// Invalidate even when a write fails part way.
	defer e.InvalidatePermissions(ctx, userID)

	if len(add) > 0 {
		if err := e.roles.AddUserToRoles(ctx, userID, add); err != nil {
			return transient("add roles", err)
		}
	}
	if len(remove) > 0 {
		if err := e.roles.RemoveUserFromRoles(ctx, userID, remove); err != nil {
			return transient("remove roles", err)
		}
	}

	e.emit(ctx, EventRolesAssigned, true, userID, "", map[string]string{
		"added":   strings.Join(add, ","),
		"removed": strings.Join(remove, ","),
	})
	log.Info("roles updated", zap.Strings("added", add), zap.Strings("removed", remove))
	return nil
}

// SetUserActive activates or deactivates userID. Administrators cannot be
// toggled. Deactivation also revokes the refresh record so the user cannot
// obtain new access tokens.
func (e *Engine) SetUserActive(ctx context.Context, userID string, active bool) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}
	log := e.logger(ctx).With(logging.Op("set_user_active"), logging.UserID(userID))

	if _, err := e.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return transient("get user", err)
	}
	held, err := e.roles.UserRoles(ctx, userID)
	if err != nil {
		return transient("user roles", err)
	}
	if contains(held, e.config.Roles.Admin) {
		log.Info("status change rejected", logging.Reason("admin"))
		return fmt.Errorf("%w: administrator status cannot be toggled", ErrConflict)
	}

	if err := e.users.SetActive(ctx, userID, active); err != nil {
		return transient("set active", err)
	}
	if !active {
		if err := e.refresh.Delete(ctx, userID); err != nil {
			log.Error("refresh revoke failed", logging.Err(err))
			return transient("revoke refresh", err)
		}
	}
	e.emit(ctx, EventAccountStatus, true, userID, "", map[string]string{
		"active": strconv.FormatBool(active),
	})
	log.Info("user status changed", zap.Bool("active", active))
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func deselects(roles []UserRole, name string) bool {
	for _, r := range roles {
		if r.RoleName == name && !r.Selected {
			return true
		}
	}
	return false
}
