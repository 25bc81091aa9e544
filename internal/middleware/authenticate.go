package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agura-market/agura_market/internal/auth"
)

const subjectLocal = "subject"

// Authenticate verifies the bearer token and stores the caller's identity on
// the request context. Nothing after it runs for an unauthenticated request.
func Authenticate(verifier *auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := verifier.Verify(auth.BearerToken(c.Get(fiber.HeaderAuthorization)))
		if err != nil {
			return err
		}
		c.SetUserContext(auth.WithIdentity(c.UserContext(), id))
		c.Locals(subjectLocal, id.Subject)
		return c.Next()
	}
}

// RequireRole rejects callers whose verified identity lacks role.
func RequireRole(role auth.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, _ := auth.IdentityFromContext(c.UserContext())
		if err := auth.RequireRole(id, role); err != nil {
			return err
		}
		return c.Next()
	}
}

// Identity returns the identity stored by Authenticate, or the zero value.
func Identity(c *fiber.Ctx) auth.Identity {
	id, _ := auth.IdentityFromContext(c.UserContext())
	return id
}
