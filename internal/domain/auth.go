package domain

import "context"

// Permissions is the boolean capability set carried by an API key. A key with
// Admin set implicitly satisfies every other flag; the rest are independent.
type Permissions struct {
	Admin             bool
	ManageKeys        bool
	ManageDatabases   bool
	ManageCollections bool
	ManageProviders   bool
	Readonly          bool
}

// Allows reports whether the permission set grants the named capability.
// Readonly permission only ever allows read-shaped operations; callers must
// check Readonly themselves before a write and reject accordingly.
func (p Permissions) Allows(flag string) bool {
	if p.Admin {
		return true
	}
	switch flag {
	case "manage_keys":
		return p.ManageKeys
	case "manage_databases":
		return p.ManageDatabases
	case "manage_collections":
		return p.ManageCollections
	case "manage_providers":
		return p.ManageProviders
	default:
		return false
	}
}

// ScopedToDatabase reports whether the permission set grants access to db:
// an admin key reaches every database, any other key only the databases
// named in its Databases list (an empty list grants none).
func (k APIKeyAuth) ScopedToDatabase(db string) bool {
	if k.Permissions.Admin {
		return true
	}
	for _, d := range k.Databases {
		if d == db {
			return true
		}
	}
	return false
}

// APIKeyAuth is the authenticated identity attached to a request context
// after a successful key lookup: the key's scope and capabilities, not its
// secret material.
type APIKeyAuth struct {
	KeyID       string
	Name        string
	Permissions Permissions
	Databases   []string
}

// Authorizer checks whether the caller identified by ctx may perform an
// action gated by flag against the named database.
type Authorizer interface {
	Authorize(ctx context.Context, database string, flag string, write bool) error
}

const authCtxKey ctxKey = "api_key_auth"

// ContextWithAuth returns a new context carrying the authenticated key.
func ContextWithAuth(ctx context.Context, auth APIKeyAuth) context.Context {
	return context.WithValue(ctx, authCtxKey, auth)
}

// AuthFromContext extracts the authenticated key from the context.
// The second return value is false if no key was attached.
func AuthFromContext(ctx context.Context) (APIKeyAuth, bool) {
	v, ok := ctx.Value(authCtxKey).(APIKeyAuth)
	return v, ok
}
