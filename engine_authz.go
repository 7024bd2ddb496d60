package goWarden

import (
	"context"
	"errors"

	"github.com/MrEthical07/goWarden/internal/logging"
	"github.com/MrEthical07/goWarden/permission"
)

// HasPermission reports whether userID holds name. Unknown users hold
// nothing. A failing role store yields ErrTransient.
func (e *Engine) HasPermission(ctx context.Context, userID string, name permission.Name) (bool, error) {
	if e == nil || e.authorizer == nil {
		return false, ErrEngineNotReady
	}
	ok, err := e.authorizer.HasPermission(ctx, userID, name)
	if err != nil {
		e.logger(ctx).Error("permission lookup failed",
			logging.Op("has_permission"), logging.UserID(userID), logging.Permission(name.String()), logging.Err(err))
		return false, transient("permission lookup", err)
	}
	if ok {
		e.metricInc(MetricAuthorizationAllowed)
	} else {
		e.metricInc(MetricAuthorizationDenied)
	}
	return ok, nil
}

// Check returns nil when userID holds the permission for action on
// resource and ErrForbidden otherwise.
func (e *Engine) Check(ctx context.Context, userID, action, resource string) error {
	name := permission.NameFor(action, resource)
	ok, err := e.HasPermission(ctx, userID, name)
	if err != nil {
		return err
	}
	if !ok {
		e.logger(ctx).Debug("permission denied", logging.UserID(userID), logging.Permission(name.String()))
		return errors.Join(ErrForbidden, permission.ErrDenied)
	}
	return nil
}

// Permissions lists every permission userID holds, sorted.
func (e *Engine) Permissions(ctx context.Context, userID string) ([]permission.Name, error) {
	if e == nil || e.cache == nil {
		return nil, ErrEngineNotReady
	}
	set, err := e.cache.Get(ctx, userID)
	switch {
	case errors.Is(err, permission.ErrOwnerNotFound):
		return nil, nil
	case err != nil:
		return nil, transient("permission lookup", err)
	}
	return set.Names(), nil
}

// InvalidatePermissions drops the cached permission set of userID. Any
// check that starts after it returns observes the roles and claims as
// stored at that point. Call it after every change to the user's roles or
// to the claims of a role the user holds.
func (e *Engine) InvalidatePermissions(ctx context.Context, userID string) {
	if e == nil || e.cache == nil {
		return
	}
	e.cache.Invalidate(userID)
	e.emit(ctx, EventPermissionsInvalidated, true, userID, "", nil)
}

// InvalidateRole drops the cached sets of every current member of role.
// It is the hook for role-claim edits.
func (e *Engine) InvalidateRole(ctx context.Context, role string, members []string) {
	for _, id := range members {
		e.InvalidatePermissions(ctx, id)
	}
	e.logger(ctx).Debug("role permissions invalidated", logging.Op("invalidate_role"),
		logging.Count(len(members)))
}

// InvalidateAllPermissions empties the permission cache.
func (e *Engine) InvalidateAllPermissions() {
	if e == nil || e.cache == nil {
		return
	}
	e.cache.Flush()
}
