// handlers/upload_routes.go
package handlers

import (
	"crystaltides-web/services"

	"github.com/gofiber/fiber/v2"
)

func SetupUploadRoutes(api fiber.Router, g Guards, uploads *services.UploadService) {
	api.Post("/uploads", chain(g.Admin, uploads.UploadImage)...)
}
