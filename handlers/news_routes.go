// handlers/news_routes.go
package handlers

import (
	"crystaltides-web/services"

	"github.com/gofiber/fiber/v2"
)

func SetupNewsRoutes(api fiber.Router, g Guards, news *services.NewsService) {
	// 🔓 Public reads
	api.Get("/news", news.GetNews)
	api.Get("/news/:id", news.GetNewsItem)
	api.Get("/news/:id/comments", news.GetComments)

	// 💬 Comments, any signed-in user
	api.Post("/news/:id/comments", chain(g.Auth, news.PostComment)...)
	api.Put("/news/comments/:id", chain(g.Auth, news.PutComment)...)
	api.Delete("/news/comments/:id", chain(g.Auth, news.RemoveComment)...)

	// 🔐 Admin
	api.Post("/news", chain(g.Admin, news.CreateNews)...)
	api.Put("/news/:id", chain(g.Admin, news.UpdateNews)...)
	api.Delete("/news/:id", chain(g.Admin, news.DeleteNews)...)
}
