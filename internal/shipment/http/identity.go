package http

import "context"

// Roles known to the API.
const (
	RoleRider = "rider"
	RoleOps   = "ops"
)

// Identity is the authenticated caller, placed in the request context by the auth middleware.
type Identity struct {
	RiderID string
	Role    string
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom extracts the caller identity.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.RiderID != ""
}

// Allows reports whether the identity may use routes guarded by role. Ops may act as riders.
func (id Identity) Allows(role string) bool {
	switch role {
	case "", RoleRider:
		return id.Role == RoleRider || id.Role == RoleOps
	default:
		return id.Role == role
	}
}
