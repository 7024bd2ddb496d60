package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goWarden/jwt"
)

// ValidateFailureKind classifies access-token validation failures.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureToken
	ValidateFailureUserNotFound
	ValidateFailureInactive
	ValidateFailureLookup
)

// ValidateResult carries the verified claims or the failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.IdentityClaims
}

// ValidateDeps captures validation dependencies. With Strict set, every
// validation also confirms the subject still exists and is active.
type ValidateDeps struct {
	ParseAccess  func(token string) (*jwt.IdentityClaims, error)
	Strict       bool
	LookupUser   func(ctx context.Context, userID string) (Principal, error)
	UserNotFound error
}

// RunValidate verifies an access token.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) ValidateResult {
	claims, err := deps.ParseAccess(token)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureToken, Err: err}
	}
	if !deps.Strict || deps.LookupUser == nil {
		return ValidateResult{Claims: claims}
	}

	user, err := deps.LookupUser(ctx, claims.Subject().UserID)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return ValidateResult{Failure: ValidateFailureUserNotFound, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureLookup, Err: err}
	}
	if !user.Active {
		return ValidateResult{Failure: ValidateFailureInactive}
	}
	return ValidateResult{Claims: claims}
}
