package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goWarden/refresh"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureEmptyCredentials
	LoginFailureUserNotFound
	LoginFailureLookup
	LoginFailureInactive
	LoginFailureUnconfirmed
	LoginFailureBadPassword
	LoginFailureMint
	LoginFailureStore
)

var loginReasons = map[LoginFailureKind]string{
	LoginFailureRateLimited:      "rate_limited",
	LoginFailureEmptyCredentials: "empty_credentials",
	LoginFailureUserNotFound:     "user_not_found",
	LoginFailureLookup:           "lookup_failed",
	LoginFailureInactive:         "user_inactive",
	LoginFailureUnconfirmed:      "email_unconfirmed",
	LoginFailureBadPassword:      "bad_password",
	LoginFailureMint:             "mint_failed",
	LoginFailureStore:            "store_failed",
}

// Reason is the log label of k.
func (k LoginFailureKind) Reason() string { return loginReasons[k] }

// Transient reports whether the failure came from a backend rather than
// from the credentials.
func (k LoginFailureKind) Transient() bool {
	return k == LoginFailureLookup || k == LoginFailureMint || k == LoginFailureStore
}

// LoginResult carries the minted tokens or the failure.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	UserID  string
	Minted  Minted
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	RequireConfirmedEmail bool

	LookupUser     func(ctx context.Context, email string) (Principal, error)
	UserNotFound   error
	VerifyPassword func(password, hash string) (bool, error)

	// Optional throttling.
	CheckRate     func(ctx context.Context, email, ip string) error
	RecordFailure func(ctx context.Context, email, ip string) error
	ResetRate     func(ctx context.Context, email string) error

	// Optional rehash after a successful verify.
	NeedsUpgrade func(hash string) (bool, error)
	UpgradeHash  func(ctx context.Context, userID, password string) error

	Mint  func(ctx context.Context, p Principal) (Minted, error)
	Store refresh.Store

	Warn func(msg string, err error)
}

// RunLogin verifies credentials and stores a new refresh record, replacing
// any previous one for the user.
func RunLogin(ctx context.Context, email, password, ip string, deps LoginDeps) LoginResult {
	if deps.Warn == nil {
		deps.Warn = func(string, error) {}
	}
	email = strings.TrimSpace(email)

	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, email, ip); err != nil {
			return LoginResult{Failure: LoginFailureRateLimited, Err: err}
		}
	}

	fail := func(kind LoginFailureKind, userID string, err error) LoginResult {
		if deps.RecordFailure != nil {
			if rerr := deps.RecordFailure(ctx, email, ip); rerr != nil {
				deps.Warn("login failure not counted", rerr)
			}
		}
		return LoginResult{Failure: kind, Err: err, UserID: userID}
	}

	if email == "" || password == "" {
		return fail(LoginFailureEmptyCredentials, "", nil)
	}

	user, err := deps.LookupUser(ctx, email)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return fail(LoginFailureUserNotFound, "", err)
		}
		return LoginResult{Failure: LoginFailureLookup, Err: err}
	}
	if !user.Active {
		return fail(LoginFailureInactive, user.UserID, nil)
	}
	if deps.RequireConfirmedEmail && !user.EmailConfirmed {
		return fail(LoginFailureUnconfirmed, user.UserID, nil)
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return fail(LoginFailureBadPassword, user.UserID, err)
	}

	if deps.NeedsUpgrade != nil && deps.UpgradeHash != nil {
		if up, err := deps.NeedsUpgrade(user.PasswordHash); err == nil && up {
			if err := deps.UpgradeHash(ctx, user.UserID, password); err != nil {
				deps.Warn("password rehash failed", err)
			}
		}
	}

	minted, err := deps.Mint(ctx, user)
	if err != nil {
		return LoginResult{Failure: LoginFailureMint, Err: err, UserID: user.UserID}
	}
	if err := deps.Store.Replace(ctx, minted.Record); err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err, UserID: user.UserID}
	}

	if deps.ResetRate != nil {
		if err := deps.ResetRate(ctx, email); err != nil {
			deps.Warn("login rate reset failed", err)
		}
	}
	return LoginResult{UserID: user.UserID, Minted: minted}
}
