package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"crystaltides-web/constants"
	"crystaltides-web/models"

	"github.com/rs/zerolog"
)

// IdentitySource is the account directory (Supabase Auth admin API).
type IdentitySource interface {
	ListUsers(ctx context.Context) ([]models.IdentityUser, error)
	GetUser(ctx context.Context, id string) (*models.IdentityUser, error)
	UpdateUserMetadata(ctx context.Context, id string, metadata map[string]interface{}) (*models.IdentityUser, error)
	UpdateAppMetadata(ctx context.Context, id string, metadata map[string]interface{}) (*models.IdentityUser, error)
}

// TokenResolver turns a bearer token into the account it belongs to.
type TokenResolver interface {
	UserFromToken(ctx context.Context, token string) (*models.IdentityUser, error)
}

type IdentityClient struct {
	BaseURL    string
	ServiceKey string
	PageSize   int
	Client     *http.Client
	log        zerolog.Logger
}

type listUsersResponse struct {
	Users []models.IdentityUser `json:"users"`
}

func NewIdentityClient(baseURL, serviceKey string, log zerolog.Logger) *IdentityClient {
	return &IdentityClient{
		BaseURL:    baseURL,
		ServiceKey: serviceKey,
		PageSize:   constants.IdentityPageSize,
		Client: &http.Client{
			Timeout: constants.IdentityTimeout,
		},
		log: log.With().Str("component", "identity").Logger(),
	}
}

// ListUsers walks every admin listing page. The API has no server-side search.
func (c *IdentityClient) ListUsers(ctx context.Context) ([]models.IdentityUser, error) {
	var all []models.IdentityUser
	for page := 1; page <= constants.IdentityMaxPages; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(c.PageSize))

		var out listUsersResponse
		if err := c.do(ctx, http.MethodGet, "/auth/v1/admin/users?"+q.Encode(), c.ServiceKey, nil, &out); err != nil {
			return nil, err
		}
		all = append(all, out.Users...)
		if len(out.Users) < c.PageSize {
			break
		}
	}
	return all, nil
}

func (c *IdentityClient) GetUser(ctx context.Context, id string) (*models.IdentityUser, error) {
	var out models.IdentityUser
	if err := c.do(ctx, http.MethodGet, "/auth/v1/admin/users/"+url.PathEscape(id), c.ServiceKey, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUserMetadata merges metadata into the user's user_metadata bag.
func (c *IdentityClient) UpdateUserMetadata(ctx context.Context, id string, metadata map[string]interface{}) (*models.IdentityUser, error) {
	return c.updateUser(ctx, id, "user_metadata", metadata)
}

// UpdateAppMetadata merges metadata into app_metadata, which only the service
// role can write.
func (c *IdentityClient) UpdateAppMetadata(ctx context.Context, id string, metadata map[string]interface{}) (*models.IdentityUser, error) {
	return c.updateUser(ctx, id, "app_metadata", metadata)
}

func (c *IdentityClient) updateUser(ctx context.Context, id, bag string, metadata map[string]interface{}) (*models.IdentityUser, error) {
	body := map[string]interface{}{bag: metadata}
	var out models.IdentityUser
	if err := c.do(ctx, http.MethodPut, "/auth/v1/admin/users/"+url.PathEscape(id), c.ServiceKey, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserFromToken asks the auth server who owns an access token.
func (c *IdentityClient) UserFromToken(ctx context.Context, token string) (*models.IdentityUser, error) {
	var out models.IdentityUser
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", token, nil, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, ErrUnauthorized
	}
	return &out, nil
}

func (c *IdentityClient) do(ctx context.Context, method, path, bearer string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.ServiceKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: identity %s %s: %v", ErrUpstream, method, path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	c.log.Debug().
		Str("method", method).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("identity request")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return notFound("user")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: identity %s %s returned %d: %s", ErrUpstream, method, path, resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding identity response: %v", ErrUpstream, err)
	}
	return nil
}
