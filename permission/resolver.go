package permission

import "context"

// Resolver returns the raw permission claims granted to an owner. It is
// called on a cache miss. Implementations return ErrOwnerNotFound for
// owners that do not exist.
type Resolver interface {
	Claims(ctx context.Context, ownerID string) ([]string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, ownerID string) ([]string, error)

// Claims calls f.
func (f ResolverFunc) Claims(ctx context.Context, ownerID string) ([]string, error) {
	return f(ctx, ownerID)
}

// RoleSource exposes role membership and role claims.
type RoleSource interface {
	UserRoles(ctx context.Context, ownerID string) ([]string, error)
	RoleClaims(ctx context.Context, role string) ([]string, error)
}

// FromRoles builds a Resolver that unions the claims of every role held
// by the owner, without duplicates.
func FromRoles(src RoleSource) Resolver {
	return ResolverFunc(func(ctx context.Context, ownerID string) ([]string, error) {
		roles, err := src.UserRoles(ctx, ownerID)
		if err != nil {
			return nil, err
		}

		seen := make(map[string]struct{})
		var out []string
		for _, role := range roles {
			claims, err := src.RoleClaims(ctx, role)
			if err != nil {
				return nil, err
			}
			for _, c := range claims {
				if _, dup := seen[c]; dup {
					continue
				}
				seen[c] = struct{}{}
				out = append(out, c)
			}
		}
		return out, nil
	})
}
