// handlers/forum_routes.go
package handlers

import (
	"crystaltides-web/services"

	"github.com/gofiber/fiber/v2"
)

func SetupForumRoutes(api fiber.Router, g Guards, forum *services.ForumService) {
	// 🔓 Public reads
	api.Get("/forum/stats", forum.GetStats)
	api.Get("/forum/category/:categoryId", forum.GetThreads)
	api.Get("/forum/user/:userId/threads", forum.GetUserThreads)
	api.Get("/forum/thread/:id", forum.GetThread)
	api.Get("/forum/thread/:id/full", forum.GetThreadPage)
	api.Get("/forum/thread/:id/posts", forum.GetPosts)

	// 💬 Threads and replies, any signed-in user; ownership is checked in the service
	api.Post("/forum/thread", chain(g.Auth, g.Sensitive, forum.PostThread)...)
	api.Put("/forum/thread/:id", chain(g.Auth, forum.PutThread)...)
	api.Delete("/forum/thread/:id", chain(g.Auth, forum.RemoveThread)...)
	api.Post("/forum/thread/:id/posts", chain(g.Auth, forum.PostReply)...)
	api.Put("/forum/posts/:id", chain(g.Auth, forum.PutPost)...)
	api.Delete("/forum/posts/:id", chain(g.Auth, forum.RemovePost)...)
}
