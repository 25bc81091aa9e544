package auth

import (
	"context"
	"fmt"

	"github.com/agura-market/agura_market/internal/apperr"
)

// Role is the privilege level carried by a token.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Identity is the authenticated caller, derived only from a verified token.
type Identity struct {
	Subject string
	Role    Role
}

// IsZero reports whether the identity was never populated by the verifier.
func (i Identity) IsZero() bool {
	return i.Subject == ""
}

// RequireRole allows only identities holding role. A zero identity means the
// verifier did not run first, which is a wiring bug rather than a caller error.
func RequireRole(id Identity, role Role) error {
	if id.IsZero() {
		return fmt.Errorf("role %s checked before authentication: %w", role, apperr.ErrPreconditionFailed)
	}
	if id.Role != role {
		return fmt.Errorf("role %s required: %w", role, apperr.ErrForbidden)
	}
	return nil
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && !id.IsZero()
}
