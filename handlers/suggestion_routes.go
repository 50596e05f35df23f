// handlers/suggestion_routes.go
package handlers

import (
	"crystaltides-web/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSuggestionRoutes(api fiber.Router, g Guards, suggestions *services.SuggestionService) {
	api.Post("/suggestions", g.Sensitive, suggestions.PostSuggestion)

	api.Get("/suggestions", chain(g.Staff, suggestions.GetSuggestions)...)
	api.Delete("/suggestions/:id", chain(g.Staff, suggestions.DeleteSuggestion)...)
	api.Patch("/suggestions/:id/status", chain(g.Staff, suggestions.PatchSuggestionStatus)...)
}
