package goWarden

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goWarden/internal/logging"
)

// ChangePassword replaces the password of userID after checking the
// current one, then revokes the refresh record so every device has to log
// in again. Access tokens already issued stay valid until they expire.
//
// A wrong current password or an inactive user yields ErrUnauthenticated;
// an unknown user yields ErrUserNotFound.
// A new password outside the length bounds, or equal to the current one,
// yields ErrPasswordPolicy.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if e == nil || e.passwords == nil || e.users == nil {
		return ErrEngineNotReady
	}
	log := e.logger(ctx).With(logging.Op("change_password"), logging.UserID(userID))
	fail := func(reason string, err error) error {
		e.emit(ctx, EventPasswordChangeFailure, false, userID, reason, nil)
		log.Info("password change rejected", logging.Reason(reason))
		return err
	}

	user, err := e.users.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return fail("user_not_found", ErrUserNotFound)
	case err != nil:
		log.Error("user lookup failed", logging.Err(err))
		return transient("get user", err)
	case !user.Active:
		return fail("user_inactive", ErrUnauthenticated)
	}

	if ok, err := e.passwords.Verify(oldPassword, user.PasswordHash); err != nil || !ok {
		return fail("invalid_old_password", ErrUnauthenticated)
	}
	if same, err := e.passwords.Verify(newPassword, user.PasswordHash); err == nil && same {
		return fail("password_reuse", fmt.Errorf("%w: new password matches the current one", ErrPasswordPolicy))
	}

	hash, err := e.passwords.Hash(newPassword)
	if err != nil {
		return fail("hash_policy", fmt.Errorf("%w: %v", ErrPasswordPolicy, err))
	}
	if err := e.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		log.Error("password update failed", logging.Err(err))
		return transient("update password", err)
	}
	if err := e.refresh.Delete(ctx, userID); err != nil {
		log.Error("refresh revoke after password change failed", logging.Err(err))
		return transient("revoke refresh", err)
	}

	e.emit(ctx, EventPasswordChanged, true, userID, "", nil)
	log.Info("password changed")
	return nil
}
