package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserIDLocalKey is the key under which the authenticated user's ID is stored
// in Fiber's context locals.
const UserIDLocalKey = "user_id"

// TokenVerifier validates a bearer token and returns the user ID it belongs
// to. AuthService satisfies this.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// RequireAuth rejects requests without a valid "Authorization: Bearer <jwt>"
// header and stores the authenticated user ID in context locals.
func RequireAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		userID, err := verifier.VerifyToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		c.Locals(UserIDLocalKey, userID)
		return c.Next()
	}
}

// UserID returns the authenticated user ID set by RequireAuth.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDLocalKey).(string)
	return id
}
