// middleware/auth.go
package middleware

import (
	"context"
	"strings"

	"crystaltides-web/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// TokenResolver turns a bearer token into the account it belongs to.
type TokenResolver interface {
	UserFromToken(ctx context.Context, token string) (*models.IdentityUser, error)
}

func bearerToken(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// RequireAuth rejects requests without a valid access token: 401 when the
// token is missing, 403 when it does not verify.
func RequireAuth(resolver TokenResolver, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
		}

		user, err := resolver.UserFromToken(c.UserContext(), token)
		if err != nil || user == nil {
			log.Warn().Err(err).Str("path", c.Path()).Msg("🚫 [AUTH] invalid token")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(models.CallerLocalsKey, models.CallerFromUser(user))
		return c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(allowed []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, _ := c.Locals(models.CallerLocalsKey).(*models.Caller)
		if caller == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
		}
		if !models.HasRole(caller.Role, allowed) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "insufficient permissions"})
		}
		return c.Next()
	}
}
