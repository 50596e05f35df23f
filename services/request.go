package services

import (
	"math"
	"strconv"

	"crystaltides-web/constants"
	"crystaltides-web/models"

	"github.com/gofiber/fiber/v2"
)

// callerFrom returns the identity set by the auth middleware, or nil.
func callerFrom(c *fiber.Ctx) *models.Caller {
	caller, _ := c.Locals(models.CallerLocalsKey).(*models.Caller)
	return caller
}

func requireCaller(c *fiber.Ctx) (*models.Caller, error) {
	caller := callerFrom(c)
	if caller == nil {
		return nil, ErrUnauthorized
	}
	return caller, nil
}

// Page is the paged list shape shared by polls and logs.
type Page struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	TotalPages int         `json:"totalPages"`
}

func pageParams(c *fiber.Ctx) (page, limit int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit = c.QueryInt("limit", constants.DefaultPageLimit)
	if limit < 1 {
		limit = constants.DefaultPageLimit
	}
	if limit > constants.MaxPageLimit {
		limit = constants.MaxPageLimit
	}
	return page, limit
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

func paramUint(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, invalid("invalid %s", name)
	}
	return uint(id), nil
}
