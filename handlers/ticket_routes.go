// handlers/ticket_routes.go
package handlers

import (
	"crystaltides-web/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTicketRoutes(api fiber.Router, g Guards, tickets *services.TicketService) {
	api.Post("/tickets", chain(g.Auth, tickets.CreateTicket)...)
	api.Get("/tickets/me", chain(g.Auth, tickets.GetMyTickets)...)
	api.Patch("/tickets/:id/status", chain(g.Auth, tickets.PatchStatus)...)
	api.Get("/tickets/:id/messages", chain(g.Auth, tickets.GetMessages)...)
	api.Post("/tickets/:id/messages", chain(g.Auth, tickets.PostMessage)...)

	api.Get("/tickets", chain(g.Staff, tickets.GetTickets)...)
	api.Get("/tickets/stats", chain(g.Staff, tickets.GetStats)...)
	api.Post("/tickets/ban", chain(g.Staff, tickets.BanUser)...)
	api.Delete("/tickets/:id", chain(g.Staff, tickets.DeleteTicket)...)
}
