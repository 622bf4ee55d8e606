package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Middleware authenticates the Authorization header and attaches the
// identity to the request's user context. Requests without valid
// credentials are rejected with 401.
//
// Usage:
//
//	app.Use("/v1", auth.Middleware(authenticator))
func Middleware(a *JWTAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := a.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			if !errors.Is(err, ErrMissingCredentials) {
				c.Set(fiber.HeaderWWWAuthenticate, `Bearer error="invalid_token"`)
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		c.SetUserContext(WithIdentity(c.UserContext(), id))
		return c.Next()
	}
}
