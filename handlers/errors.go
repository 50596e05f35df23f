package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// ErrorHandler is the app-wide fallback for errors no handler answered.
// Server-side failures are logged and reported with a generic message.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("unhandled error")
			return c.Status(code).JSON(fiber.Map{"error": "internal server error"})
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}
