// handlers/wiki_routes.go
package handlers

import (
	"crystaltides-web/services"

	"github.com/gofiber/fiber/v2"
)

func SetupWikiRoutes(api fiber.Router, g Guards, wiki *services.WikiService) {
	api.Get("/wiki", wiki.GetArticles)
	api.Get("/wiki/:slug", wiki.GetArticle)

	api.Post("/wiki", chain(g.Admin, wiki.CreateArticle)...)
	api.Put("/wiki/:id", chain(g.Admin, wiki.UpdateArticle)...)
	api.Delete("/wiki/:id", chain(g.Admin, wiki.DeleteArticle)...)
}
