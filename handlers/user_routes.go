// handlers/user_routes.go
package handlers

import (
	"crystaltides-web/services"

	"github.com/gofiber/fiber/v2"
)

func SetupUserRoutes(api fiber.Router, g Guards, users *services.UserService, staff *services.StaffService) {
	api.Get("/users/staff", staff.GetAllStaff)
	api.Get("/users/profile/:username", users.GetPublicProfile)

	api.Post("/users/:id/karma", chain(g.Auth, users.PostKarma)...)

	api.Get("/users", chain(g.Admin, users.SearchUsers)...)
	api.Patch("/users/:id/role", chain(g.Admin, users.UpdateUserRole)...)
	api.Patch("/users/:id/metadata", chain(g.Admin, users.UpdateUserMetadata)...)
}
