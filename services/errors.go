package services

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrUpstream     = errors.New("upstream failure")
	ErrUnavailable  = errors.New("not configured")
)

func notFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func forbidden(msg string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, msg)
}

// statusFor maps an error onto the HTTP taxonomy.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrValidation):
		return fiber.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, ErrUnauthorized):
		return fiber.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return fiber.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, ErrUnavailable):
		return fiber.StatusServiceUnavailable, "UNAVAILABLE"
	case errors.Is(err, ErrUpstream):
		return fiber.StatusBadGateway, "UPSTREAM_ERROR"
	default:
		return fiber.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func publicMessage(status int, err error) string {
	if status >= fiber.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

// respondError writes {"error": msg}. 5xx details stay in the log.
func respondError(c *fiber.Ctx, log zerolog.Logger, err error) error {
	status, _ := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": publicMessage(status, err)})
}

// sendSuccess and sendFailure produce the enveloped shape used by the polls,
// tickets and suggestions endpoints.
func sendSuccess(c *fiber.Ctx, status int, data interface{}, message string) error {
	body := fiber.Map{"success": true, "data": data}
	if message != "" {
		body["message"] = message
	}
	return c.Status(status).JSON(body)
}

func sendFailure(c *fiber.Ctx, log zerolog.Logger, err error) error {
	status, code := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   publicMessage(status, err),
		"code":    code,
	})
}
