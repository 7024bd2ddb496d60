package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goWarden/refresh"
)

// RefreshFailureKind classifies refresh failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureAccessToken
	RefreshFailureMalformed
	RefreshFailureRateLimited
	RefreshFailureUserNotFound
	RefreshFailureLookup
	RefreshFailureInactive
	RefreshFailureMint
	RefreshFailureNotFound
	RefreshFailureExpired
	RefreshFailureReuse
	RefreshFailureRotate
)

var refreshReasons = map[RefreshFailureKind]string{
	RefreshFailureAccessToken:  "access_token_invalid",
	RefreshFailureMalformed:    "refresh_malformed",
	RefreshFailureRateLimited:  "rate_limited",
	RefreshFailureUserNotFound: "user_not_found",
	RefreshFailureLookup:       "lookup_failed",
	RefreshFailureInactive:     "user_inactive",
	RefreshFailureMint:         "mint_failed",
	RefreshFailureNotFound:     "record_not_found",
	RefreshFailureExpired:      "record_expired",
	RefreshFailureReuse:        "token_mismatch",
	RefreshFailureRotate:       "rotate_failed",
}

// Reason is the log label of k.
func (k RefreshFailureKind) Reason() string { return refreshReasons[k] }

// Transient reports whether a retry of the same request may succeed.
func (k RefreshFailureKind) Transient() bool {
	return k == RefreshFailureLookup || k == RefreshFailureMint || k == RefreshFailureRotate
}

// RefreshResult carries the minted tokens or the failure.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	UserID  string
	Minted  Minted
}

// RefreshDeps captures refresh dependencies.
type RefreshDeps struct {
	// ParseExpired verifies the access token signature and algorithm
	// without checking expiry, and returns its subject.
	ParseExpired func(accessToken string) (string, error)
	CheckRate    func(ctx context.Context, ownerID string) error
	LookupUser   func(ctx context.Context, userID string) (Principal, error)
	UserNotFound error
	Mint         func(ctx context.Context, p Principal) (Minted, error)
	Store        refresh.Store
	Now          func() time.Time
	// Warn reports failures that do not change the outcome.
	Warn func(msg string, err error)
}

// RunRefresh exchanges an expired access token and the current refresh
// token for a new pair. The new pair is minted before the store swap so a
// successful swap is the last step; a failed swap leaves the stored
// record untouched and the minted pair unused.
func RunRefresh(ctx context.Context, accessToken, refreshToken string, deps RefreshDeps) RefreshResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Warn == nil {
		deps.Warn = func(string, error) {}
	}

	ownerID, err := deps.ParseExpired(accessToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureAccessToken, Err: err}
	}
	if err := refresh.Validate(refreshToken); err != nil {
		return RefreshResult{Failure: RefreshFailureMalformed, Err: err, UserID: ownerID}
	}

	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, ownerID); err != nil {
			return RefreshResult{Failure: RefreshFailureRateLimited, Err: err, UserID: ownerID}
		}
	}

	user, err := deps.LookupUser(ctx, ownerID)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return RefreshResult{Failure: RefreshFailureUserNotFound, Err: err, UserID: ownerID}
		}
		return RefreshResult{Failure: RefreshFailureLookup, Err: err, UserID: ownerID}
	}
	if !user.Active {
		if err := deps.Store.Delete(ctx, ownerID); err != nil {
			deps.Warn("inactive user refresh revoke failed", err)
		}
		return RefreshResult{Failure: RefreshFailureInactive, UserID: ownerID}
	}

	minted, err := deps.Mint(ctx, user)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureMint, Err: err, UserID: ownerID}
	}

	if err := deps.Store.Rotate(ctx, refresh.Hash(refreshToken), minted.Record, deps.Now()); err != nil {
		kind := RefreshFailureRotate
		switch {
		case errors.Is(err, refresh.ErrMismatch):
			kind = RefreshFailureReuse
		case errors.Is(err, refresh.ErrExpired):
			kind = RefreshFailureExpired
		case errors.Is(err, refresh.ErrNotFound):
			kind = RefreshFailureNotFound
		}
		return RefreshResult{Failure: kind, Err: err, UserID: ownerID}
	}

	return RefreshResult{UserID: ownerID, Minted: minted}
}
