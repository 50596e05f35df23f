// handlers/guards.go
package handlers

import (
	"crystaltides-web/middleware"
	"crystaltides-web/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Guards are the per-route middleware chains shared by every route group.
type Guards struct {
	Auth      []fiber.Handler
	Staff     []fiber.Handler
	Admin     []fiber.Handler
	Sensitive fiber.Handler
}

func NewGuards(resolver middleware.TokenResolver, sensitive fiber.Handler, log zerolog.Logger) Guards {
	auth := middleware.RequireAuth(resolver, log)
	if sensitive == nil {
		sensitive = func(c *fiber.Ctx) error { return c.Next() }
	}
	return Guards{
		Auth:      []fiber.Handler{auth},
		Staff:     []fiber.Handler{auth, middleware.RequireRole(models.StaffRoles)},
		Admin:     []fiber.Handler{auth, middleware.RequireRole(models.AdminRoles)},
		Sensitive: sensitive,
	}
}

// chain appends the final handler to a guard chain.
func chain(guard []fiber.Handler, h ...fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(guard)+len(h))
	out = append(out, guard...)
	return append(out, h...)
}
