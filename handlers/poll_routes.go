// handlers/poll_routes.go
package handlers

import (
	"crystaltides-web/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPollRoutes(api fiber.Router, g Guards, polls *services.PollService) {
	api.Get("/polls/active", polls.GetActivePoll)
	api.Post("/polls/vote", g.Sensitive, polls.VotePoll)

	api.Get("/polls", chain(g.Staff, polls.GetPolls)...)
	api.Post("/polls/create", chain(g.Admin, polls.CreatePoll)...)
	api.Put("/polls/update/:id", chain(g.Admin, polls.UpdatePoll)...)
	api.Post("/polls/close/:id", chain(g.Admin, polls.ClosePoll)...)
	api.Delete("/polls/:id", chain(g.Admin, polls.DeletePoll)...)

	// after the literal paths so "active" is not read as an id
	api.Get("/polls/:id", polls.GetPoll)
}
