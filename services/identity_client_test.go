package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"crystaltides-web/logger"
	"crystaltides-web/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityClient_ListUsersWalksPages(t *testing.T) {
	var (
		mu    sync.Mutex
		pages []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		page := r.URL.Query().Get("page")
		mu.Lock()
		pages = append(pages, page)
		mu.Unlock()

		n, _ := strconv.Atoi(page)
		users := []models.IdentityUser{}
		if n <= 2 {
			users = append(users,
				models.IdentityUser{ID: fmt.Sprintf("u%d-a", n)},
				models.IdentityUser{ID: fmt.Sprintf("u%d-b", n)})
		} else {
			users = append(users, models.IdentityUser{ID: "last"})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"users": users})
	}))
	defer srv.Close()

	c := NewIdentityClient(srv.URL, "service-key", logger.Nop())
	c.PageSize = 2

	users, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 5)
	assert.Equal(t, []string{"1", "2", "3"}, pages)
}

func TestIdentityClient_StatusMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/admin/users/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/auth/v1/admin/users/u1":
			if r.Method == http.MethodPut {
				var body map[string]map[string]interface{}
				_ = json.NewDecoder(r.Body).Decode(&body)
				_ = json.NewEncoder(w).Encode(models.IdentityUser{ID: "u1", UserMetadata: body["user_metadata"], AppMetadata: body["app_metadata"]})
				return
			}
			_ = json.NewEncoder(w).Encode(models.IdentityUser{ID: "u1", Email: "a@b.c"})
		case "/auth/v1/user":
			if r.Header.Get("Authorization") != "Bearer good" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(models.IdentityUser{ID: "u1"})
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()
	c := NewIdentityClient(srv.URL, "k", logger.Nop())
	ctx := context.Background()

	u, err := c.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", u.Email)

	_, err = c.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := c.UpdateUserMetadata(ctx, "u1", map[string]interface{}{"role": "helper"})
	require.NoError(t, err)
	assert.Equal(t, "helper", updated.MetaString("role"))
	assert.Equal(t, models.RoleUser, updated.Role())

	updated, err = c.UpdateAppMetadata(ctx, "u1", map[string]interface{}{"role": "helper"})
	require.NoError(t, err)
	assert.Equal(t, "helper", updated.Role())

	_, err = c.UserFromToken(ctx, "good")
	require.NoError(t, err)
	_, err = c.UserFromToken(ctx, "bad")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = c.ListUsers(ctx)
	assert.ErrorIs(t, err, ErrUpstream)
}

type stubResolver struct {
	user *models.IdentityUser
	err  error
}

func (s stubResolver) UserFromToken(ctx context.Context, token string) (*models.IdentityUser, error) {
	return s.user, s.err
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestTokenVerifier_LocalHS256(t *testing.T) {
	v := NewTokenVerifier("project-secret", nil)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).Unix()

	token := signToken(t, "project-secret", jwt.MapClaims{
		"sub":           "user-1",
		"email":         "alice@example.com",
		"exp":           exp,
		"user_metadata": map[string]interface{}{"username": "Alice", "role": "admin"},
		"app_metadata":  map[string]interface{}{"role": "helper"},
	})
	u, err := v.UserFromToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", u.ID)
	assert.Equal(t, "Alice", u.Username())
	assert.Equal(t, "helper", models.CallerFromUser(u).Role)

	cases := map[string]string{
		"wrong secret": signToken(t, "other", jwt.MapClaims{"sub": "u", "exp": exp}),
		"expired":      signToken(t, "project-secret", jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-time.Minute).Unix()}),
		"no expiry":    signToken(t, "project-secret", jwt.MapClaims{"sub": "u"}),
		"no subject":   signToken(t, "project-secret", jwt.MapClaims{"exp": exp}),
		"garbage":      "not.a.jwt",
	}
	for name, tok := range cases {
		_, err := v.UserFromToken(ctx, tok)
		assert.ErrorIs(t, err, ErrUnauthorized, name)
	}
}

func TestTokenVerifier_RemoteFallback(t *testing.T) {
	ctx := context.Background()

	v := NewTokenVerifier("", stubResolver{user: &models.IdentityUser{ID: "remote"}})
	u, err := v.UserFromToken(ctx, "opaque")
	require.NoError(t, err)
	assert.Equal(t, "remote", u.ID)

	_, err = NewTokenVerifier("", nil).UserFromToken(ctx, "opaque")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestTranslator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req translateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Q == "falla" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		assert.Equal(t, "en", req.Target)
		assert.Equal(t, "key", req.APIKey)
		_ = json.NewEncoder(w).Encode(translateResponse{TranslatedText: "[en] " + req.Q})
	}))
	defer srv.Close()

	tr := NewTranslator(srv.URL+"/", "key", logger.Nop())
	ctx := context.Background()

	assert.Equal(t, "[en] hola", tr.Translate(ctx, "hola", "en"))
	assert.Equal(t, "falla", tr.Translate(ctx, "falla", "en"), "errors keep the source text")
	assert.Equal(t, "", tr.Translate(ctx, "  ", "en"))
	assert.Equal(t, "given", tr.fillEnglish(ctx, "given", "hola"))
	assert.Equal(t, "[en] hola", tr.fillEnglish(ctx, "", "hola"))

	var none *Translator
	assert.Equal(t, "hola", none.fillEnglish(ctx, "", "hola"))
}
