// handlers/server_routes.go
package handlers

import (
	"crystaltides-web/services"

	"github.com/gofiber/fiber/v2"
)

func SetupServerRoutes(api fiber.Router, g Guards, staff *services.StaffService, server *services.ServerService) {
	// 🔓 Public
	api.Get("/server/staff", staff.GetOnlineStaff)
	api.Get("/server/all-staff", staff.GetAllStaff)
	api.Get("/server/status/live", server.GetLiveStatus)

	// 🔐 Staff only
	api.Get("/server/resources", chain(g.Staff, server.GetResources)...)
}
