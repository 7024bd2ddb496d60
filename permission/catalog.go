package permission

import "strings"

// Name is a fully qualified permission string of the form
// "Permissions.<Resource>.<Action>".
type Name string

const namePrefix = "Permissions"

// Actions known to the default catalog.
const (
	ActionView     = "View"
	ActionSearch   = "Search"
	ActionCreate   = "Create"
	ActionUpdate   = "Update"
	ActionDelete   = "Delete"
	ActionExport   = "Export"
	ActionGenerate = "Generate"
	ActionClean    = "Clean"
)

// Resources known to the default catalog.
const (
	ResourceDashboard   = "Dashboard"
	ResourceJobs        = "Jobs"
	ResourceUsers       = "Users"
	ResourceUserRoles   = "UserRoles"
	ResourceRoles       = "Roles"
	ResourceRoleClaims  = "RoleClaims"
	ResourceAuditTrails = "AuditTrails"
)

// Built-in role names.
const (
	RoleAdmin = "Admin"
	RoleBasic = "Basic"
)

// NameFor returns the permission name for an (action, resource) pair.
// It is pure and total: any strings produce a name, and distinct pairs
// never collide as long as neither part contains a '.'.
func NameFor(action, resource string) Name {
	var b strings.Builder
	b.Grow(len(namePrefix) + len(resource) + len(action) + 2)
	b.WriteString(namePrefix)
	b.WriteByte('.')
	b.WriteString(resource)
	b.WriteByte('.')
	b.WriteString(action)
	return Name(b.String())
}

// Split reverses NameFor. ok is false when n is not a well-formed name.
func (n Name) Split() (action, resource string, ok bool) {
	parts := strings.Split(string(n), ".")
	if len(parts) != 3 || parts[0] != namePrefix || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[2], parts[1], true
}

func (n Name) String() string { return string(n) }

// Permission is one catalog entry.
type Permission struct {
	Description string
	Action      string
	Resource    string
	IsBasic     bool
	IsRoot      bool
}

// Name returns NameFor(p.Action, p.Resource).
func (p Permission) Name() Name {
	return NameFor(p.Action, p.Resource)
}

// Catalog is an immutable list of known permissions.
type Catalog struct {
	entries []Permission
}

// NewCatalog copies entries into a new Catalog. Entries with an empty
// action or resource, or with a '.' in either part, are rejected.
func NewCatalog(entries []Permission) (*Catalog, error) {
	seen := make(map[Name]struct{}, len(entries))
	out := make([]Permission, 0, len(entries))
	for _, p := range entries {
		if p.Action == "" || p.Resource == "" {
			return nil, ErrInvalidPermission
		}
		if strings.Contains(p.Action, ".") || strings.Contains(p.Resource, ".") {
			return nil, ErrInvalidPermission
		}
		name := p.Name()
		if _, dup := seen[name]; dup {
			return nil, ErrDuplicatePermission
		}
		seen[name] = struct{}{}
		out = append(out, p)
	}
	return &Catalog{entries: out}, nil
}

// DefaultCatalog returns the built-in permission table.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]Permission{
		{Description: "View Users", Action: ActionView, Resource: ResourceUsers},
		{Description: "Search Users", Action: ActionSearch, Resource: ResourceUsers},
		{Description: "Create Users", Action: ActionCreate, Resource: ResourceUsers},
		{Description: "Update Users", Action: ActionUpdate, Resource: ResourceUsers},
		{Description: "Delete Users", Action: ActionDelete, Resource: ResourceUsers},
		{Description: "Export Users", Action: ActionExport, Resource: ResourceUsers},
		{Description: "View UserRoles", Action: ActionView, Resource: ResourceUserRoles},
		{Description: "Update UserRoles", Action: ActionUpdate, Resource: ResourceUserRoles},
		{Description: "View Roles", Action: ActionView, Resource: ResourceRoles},
		{Description: "Create Roles", Action: ActionCreate, Resource: ResourceRoles},
		{Description: "Update Roles", Action: ActionUpdate, Resource: ResourceRoles},
		{Description: "Delete Roles", Action: ActionDelete, Resource: ResourceRoles},
		{Description: "View RoleClaims", Action: ActionView, Resource: ResourceRoleClaims},
		{Description: "Update RoleClaims", Action: ActionUpdate, Resource: ResourceRoleClaims},
		{Description: "View Jobs", Action: ActionView, Resource: ResourceJobs},
		{Description: "View Dashboard", Action: ActionView, Resource: ResourceDashboard, IsBasic: true},
		{Description: "View Audit Trails", Action: ActionView, Resource: ResourceAuditTrails, IsBasic: true},
	})
	if err != nil {
		panic("permission: invalid default catalog: " + err.Error())
	}
	return c
}

// All returns every entry in declaration order.
func (c *Catalog) All() []Permission {
	return c.filter(func(Permission) bool { return true })
}

// Admin returns every non-root entry.
func (c *Catalog) Admin() []Permission {
	return c.filter(func(p Permission) bool { return !p.IsRoot })
}

// Basic returns entries granted to the basic role.
func (c *Catalog) Basic() []Permission {
	return c.filter(func(p Permission) bool { return p.IsBasic })
}

// Root returns entries reserved for root administrators.
func (c *Catalog) Root() []Permission {
	return c.filter(func(p Permission) bool { return p.IsRoot })
}

// Lookup finds the entry for name.
func (c *Catalog) Lookup(name Name) (Permission, bool) {
	for _, p := range c.entries {
		if p.Name() == name {
			return p, true
		}
	}
	return Permission{}, false
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

func (c *Catalog) filter(keep func(Permission) bool) []Permission {
	out := make([]Permission, 0, len(c.entries))
	for _, p := range c.entries {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// Names maps a slice of entries to their names.
func Names(perms []Permission) []Name {
	out := make([]Name, len(perms))
	for i, p := range perms {
		out[i] = p.Name()
	}
	return out
}
