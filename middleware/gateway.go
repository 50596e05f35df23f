// middleware/gateway.go
package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// BridgeTokenMiddleware authenticates the game server plugin by a shared
// token sent as "Authorization: Bearer <token>" or as the raw header value.
// With no token configured every request is refused.
func BridgeTokenMiddleware(expected string, log zerolog.Logger) fiber.Handler {
	if expected == "" {
		log.Warn().Msg("⚠️ BRIDGE_TOKEN is not set, bridge endpoints are disabled")
	}

	return func(c *fiber.Ctx) error {
		if expected == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "bridge is not configured"})
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			log.Warn().Str("path", c.Path()).Msg("🚫 [BRIDGE_AUTH] missing Authorization header")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "bridge token missing"})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			log.Warn().Str("path", c.Path()).Msg("❌ [BRIDGE_AUTH] invalid token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid bridge token"})
		}
		return c.Next()
	}
}
