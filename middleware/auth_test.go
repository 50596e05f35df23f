package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"crystaltides-web/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenTable map[string]*models.IdentityUser

func (t tokenTable) UserFromToken(ctx context.Context, token string) (*models.IdentityUser, error) {
	if u, ok := t[token]; ok {
		return u, nil
	}
	return nil, errors.New("unknown token")
}

func testTokens() tokenTable {
	return tokenTable{
		"user-token":  {ID: "u1", UserMetadata: map[string]interface{}{"username": "Alice"}},
		"mod-token":   {ID: "m1", UserMetadata: map[string]interface{}{"username": "Mod"}, AppMetadata: map[string]interface{}{"role": "Moderator"}},
		"admin-token": {ID: "a1", UserMetadata: map[string]interface{}{"username": "Killu"}, AppMetadata: map[string]interface{}{"role": "admin"}},
		"self-token":  {ID: "s1", UserMetadata: map[string]interface{}{"username": "Sneaky", "role": "admin"}},
	}
}

func guardedApp() *fiber.App {
	app := fiber.New()
	auth := RequireAuth(testTokens(), zerolog.Nop())
	whoami := func(c *fiber.Ctx) error {
		caller := c.Locals(models.CallerLocalsKey).(*models.Caller)
		return c.SendString(caller.Username + ":" + caller.Role)
	}
	app.Get("/me", auth, whoami)
	app.Get("/staff", auth, RequireRole(models.StaffRoles), whoami)
	app.Get("/admin", auth, RequireRole(models.AdminRoles), whoami)
	app.Get("/unguarded-role", RequireRole(models.AdminRoles), whoami)
	return app
}

func TestRequireAuthAndRole(t *testing.T) {
	app := guardedApp()

	cases := []struct {
		path   string
		header string
		status int
	}{
		{"/me", "", fiber.StatusUnauthorized},
		{"/me", "Basic abc", fiber.StatusUnauthorized},
		{"/me", "Bearer nope", fiber.StatusForbidden},
		{"/me", "Bearer user-token", fiber.StatusOK},
		{"/me", "bearer user-token", fiber.StatusOK},
		{"/staff", "Bearer user-token", fiber.StatusForbidden},
		{"/staff", "Bearer mod-token", fiber.StatusOK},
		{"/admin", "Bearer mod-token", fiber.StatusForbidden},
		{"/admin", "Bearer admin-token", fiber.StatusOK},
		{"/staff", "Bearer self-token", fiber.StatusForbidden},
		{"/admin", "Bearer self-token", fiber.StatusForbidden},
		{"/unguarded-role", "Bearer admin-token", fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", tc.path, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, "%s with %q", tc.path, tc.header)
	}
}

func TestBridgeTokenMiddleware(t *testing.T) {
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) }

	configured := fiber.New()
	configured.Post("/bridge", BridgeTokenMiddleware("s3cret", zerolog.Nop()), ok)

	for header, want := range map[string]int{
		"":              fiber.StatusUnauthorized,
		"Bearer wrong":  fiber.StatusUnauthorized,
		"Bearer s3cret": fiber.StatusNoContent,
		"s3cret":        fiber.StatusNoContent,
	} {
		req := httptest.NewRequest("POST", "/bridge", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := configured.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, header)
	}

	disabled := fiber.New()
	disabled.Post("/bridge", BridgeTokenMiddleware("", zerolog.Nop()), ok)
	req := httptest.NewRequest("POST", "/bridge", nil)
	req.Header.Set("Authorization", "Bearer anything")
	resp, err := disabled.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestRequestLogger_PropagatesRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestLogger(zerolog.Nop()))
	app.Get("/", func(c *fiber.Ctx) error {
		assert.NotNil(t, zerolog.Ctx(c.UserContext()))
		return c.SendString("ok")
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "req-123", resp.Header.Get(RequestIDHeader))

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get(RequestIDHeader), 36)
}
