package permission

import (
	"context"
	"errors"
)

// Authorizer turns cached permission sets into allow/deny decisions.
// There is no wildcard or hierarchy expansion: a permission is granted
// only if its exact name is in the owner's set.
type Authorizer struct {
	cache *Cache
}

// NewAuthorizer wraps cache.
func NewAuthorizer(cache *Cache) *Authorizer {
	return &Authorizer{cache: cache}
}

// HasPermission reports whether ownerID holds name. Owners the resolver
// cannot find hold nothing; other resolver errors are returned.
func (a *Authorizer) HasPermission(ctx context.Context, ownerID string, name Name) (bool, error) {
	if ownerID == "" {
		return false, nil
	}
	ok, err := a.cache.Has(ctx, ownerID, name)
	if errors.Is(err, ErrOwnerNotFound) {
		return false, nil
	}
	return ok, err
}

// Check returns nil when ownerID holds NameFor(action, resource) and
// ErrDenied when it does not.
func (a *Authorizer) Check(ctx context.Context, ownerID, action, resource string) error {
	ok, err := a.HasPermission(ctx, ownerID, NameFor(action, resource))
	if err != nil {
		return err
	}
	if !ok {
		return ErrDenied
	}
	return nil
}

// Invalidate forwards to the underlying cache.
func (a *Authorizer) Invalidate(ownerID string) {
	a.cache.Invalidate(ownerID)
}
