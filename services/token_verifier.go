package services

import (
	"context"
	"errors"

	"crystaltides-web/models"

	"github.com/golang-jwt/jwt/v5"
)

// identityClaims is the shape of a Supabase access token.
type identityClaims struct {
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	AppMetadata  map[string]interface{} `json:"app_metadata"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 access tokens locally when the project JWT
// secret is known, and otherwise defers to the identity server.
type TokenVerifier struct {
	secret []byte
	remote TokenResolver
}

func NewTokenVerifier(secret string, remote TokenResolver) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), remote: remote}
}

func (v *TokenVerifier) UserFromToken(ctx context.Context, token string) (*models.IdentityUser, error) {
	if len(v.secret) == 0 {
		if v.remote == nil {
			return nil, ErrUnauthorized
		}
		return v.remote.UserFromToken(ctx, token)
	}

	claims := &identityClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.Join(ErrUnauthorized, err)
	}

	return &models.IdentityUser{
		ID:           sub,
		Email:        claims.Email,
		UserMetadata: claims.UserMetadata,
		AppMetadata:  claims.AppMetadata,
	}, nil
}
