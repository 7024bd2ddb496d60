// Package permission implements the permission catalog, a bitmask-backed
// permission set, the per-owner permission cache and the authorizer that
// answers allow/deny questions from it.
//
// # Naming
//
// Every permission is identified by a [Name] built with [NameFor]:
//
//	Permissions.<Resource>.<Action>
//
// # Cache coherency
//
// [Cache.Invalidate] always wins over a concurrent recompute. Role changes
// must call Invalidate before reporting success so that the next check
// observes the new roles. The cache is per-process; there is no cross-node
// coherency.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network directly (resolvers do that).
//   - Import the root goWarden package.
//   - Expand wildcards or infer permissions from role names.
package permission
