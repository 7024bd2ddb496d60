package permission

import "errors"

var (
	// ErrDenied is returned by Authorizer.Check when the owner lacks the
	// required permission.
	ErrDenied = errors.New("permission denied")
	// ErrOwnerNotFound is returned by a Resolver when the owner does not exist.
	ErrOwnerNotFound = errors.New("permission owner not found")
	// ErrUnknownPermission is returned when a name is not in the registry.
	ErrUnknownPermission = errors.New("unknown permission")
	// ErrInvalidPermission is returned for malformed catalog entries.
	ErrInvalidPermission = errors.New("invalid permission entry")
	// ErrDuplicatePermission is returned when two entries map to the same name.
	ErrDuplicatePermission = errors.New("duplicate permission")
	// ErrRegistryFrozen is returned by Register after Freeze.
	ErrRegistryFrozen = errors.New("registry frozen")
)
