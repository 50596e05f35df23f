// handlers/log_routes.go
package handlers

import (
	"crystaltides-web/middleware"
	"crystaltides-web/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

func SetupLogRoutes(api fiber.Router, g Guards, audit *services.AuditLog, bridgeToken string, log zerolog.Logger) {
	api.Get("/logs", chain(g.Staff, audit.GetLogs)...)
	api.Post("/logs", chain(g.Staff, audit.CreateLog)...)

	// 🎮 Game server bridge, shared-token auth
	api.Post("/bridge/logs", middleware.BridgeTokenMiddleware(bridgeToken, log), audit.BridgeLog)
}
