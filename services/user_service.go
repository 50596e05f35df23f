// services/user_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"crystaltides-web/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// UserService reads and edits accounts held by the identity source.
type UserService struct {
	Identity IdentitySource
	Audit    *AuditLog
	log      zerolog.Logger
}

func NewUserService(identity IdentitySource, audit *AuditLog, log zerolog.Logger) *UserService {
	return &UserService{
		Identity: identity,
		Audit:    audit,
		log:      log.With().Str("component", "users").Logger(),
	}
}

// SearchAccounts filters the full listing by a case-folded substring of the
// email, username or full name. An empty query returns everyone.
func (s *UserService) SearchAccounts(ctx context.Context, query string) ([]models.Account, error) {
	users, err := s.Identity.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	needle := fold(strings.TrimSpace(query))
	out := make([]models.Account, 0, len(users))
	for i := range users {
		u := &users[i]
		if needle != "" &&
			!containsFolded(u.Email, needle) &&
			!containsFolded(u.MetaString("username"), needle) &&
			!containsFolded(u.MetaString("full_name"), needle) {
			continue
		}
		out = append(out, toAccount(u))
	}
	return out, nil
}

// UpdateRole sets a user's role tag. Callers can neither hand out a role that
// outranks their own nor touch someone at or above their rank; the top rank
// is exempt from the second rule.
func (s *UserService) UpdateRole(ctx context.Context, caller *models.Caller, targetID, role string) (*models.Account, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return nil, invalid("role is required")
	}

	own := models.RolePriority(caller.Role)
	if models.RolePriority(role) > own {
		return nil, forbidden("cannot assign a role above your own")
	}

	target, err := s.Identity.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if own < 100 && models.RolePriority(target.Role()) >= own {
		return nil, forbidden("cannot modify a user of equal or higher rank")
	}

	updated, err := s.Identity.UpdateAppMetadata(ctx, targetID, map[string]interface{}{"role": role})
	if err != nil {
		return nil, err
	}

	s.Audit.Record(entryFor(caller, "UPDATE_ROLE",
		fmt.Sprintf("Changed role of %s from %s to %s", displayName(target), target.Role(), role)))

	acc := toAccount(updated)
	return &acc, nil
}

type metadataUpdate struct {
	Medals       *[]int         `json:"medals"`
	Achievements *[]interface{} `json:"achievements"`
}

// UpdateMetadata replaces medals and/or achievements on an account.
func (s *UserService) UpdateMetadata(ctx context.Context, caller *models.Caller, targetID string, req metadataUpdate) (*models.Account, error) {
	patch := map[string]interface{}{}
	if req.Medals != nil {
		patch["medals"] = *req.Medals
	}
	if req.Achievements != nil {
		for _, a := range *req.Achievements {
			switch a.(type) {
			case string, float64:
			default:
				return nil, invalid("achievements must be strings or numbers")
			}
		}
		patch["achievements"] = *req.Achievements
	}
	if len(patch) == 0 {
		return nil, invalid("medals or achievements is required")
	}

	updated, err := s.Identity.UpdateUserMetadata(ctx, targetID, patch)
	if err != nil {
		return nil, err
	}

	s.Audit.Record(entryFor(caller, "UPDATE_METADATA",
		fmt.Sprintf("Updated metadata of %s", displayName(updated))))

	acc := toAccount(updated)
	return &acc, nil
}

// nameVariants covers the ways a display name shows up in profile URLs.
func nameVariants(identifier string) []string {
	base := foldPlain(strings.TrimSpace(identifier))
	return []string{
		base,
		strings.ReplaceAll(base, "-", " "),
		strings.ReplaceAll(base, "_", " "),
		strings.ReplaceAll(base, " ", "_"),
		strings.ReplaceAll(base, " ", "-"),
		strings.ReplaceAll(base, "-", "_"),
		strings.ReplaceAll(base, "_", "-"),
	}
}

// PublicProfile finds an account by username, full name, minecraft nick or
// minecraft uuid.
func (s *UserService) PublicProfile(ctx context.Context, identifier string) (*models.PublicProfile, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, invalid("username is required")
	}
	users, err := s.Identity.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	variants := nameVariants(identifier)
	for i := range users {
		u := &users[i]
		if uuid := u.MetaString("minecraft_uuid"); uuid != "" && strings.EqualFold(uuid, identifier) {
			p := toPublicProfile(u)
			return &p, nil
		}
		for _, field := range []string{u.MetaString("username"), u.MetaString("full_name"), u.MetaString("minecraft_nick")} {
			if field == "" {
				continue
			}
			folded := foldPlain(field)
			for _, v := range variants {
				if folded == v {
					p := toPublicProfile(u)
					return &p, nil
				}
			}
		}
	}
	return nil, notFound("user")
}

// GiveKarma adds one reputation point from caller to target, once per voter.
func (s *UserService) GiveKarma(ctx context.Context, caller *models.Caller, targetID string) (int, error) {
	if caller.ID == targetID {
		return 0, invalid("you cannot give karma to yourself")
	}
	target, err := s.Identity.GetUser(ctx, targetID)
	if err != nil {
		return 0, err
	}

	voters := metaList(target, "voters")
	for _, v := range voters {
		if id, _ := v.(string); id == caller.ID {
			return 0, invalid("you already gave karma to this user")
		}
	}

	reputation := metaInt(target, "reputation") + 1
	_, err = s.Identity.UpdateUserMetadata(ctx, targetID, map[string]interface{}{
		"reputation": reputation,
		"voters":     append(voters, caller.ID),
	})
	if err != nil {
		return 0, err
	}
	return reputation, nil
}

func displayName(u *models.IdentityUser) string {
	if n := u.Username(); n != "" {
		return n
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

// SearchUsers handles GET /api/users?search=.
func (s *UserService) SearchUsers(c *fiber.Ctx) error {
	query := c.Query("search")
	if query == "" {
		query = c.Query("email")
	}
	accounts, err := s.SearchAccounts(c.UserContext(), query)
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(accounts)
}

// UpdateUserRole handles PATCH /api/users/:id/role.
func (s *UserService) UpdateUserRole(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return respondError(c, s.log, err)
	}
	var body struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, s.log, invalid("invalid request body"))
	}
	acc, err := s.UpdateRole(c.UserContext(), caller, c.Params("id"), body.Role)
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(fiber.Map{"success": true, "user": acc})
}

// UpdateUserMetadata handles PATCH /api/users/:id/metadata.
func (s *UserService) UpdateUserMetadata(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return respondError(c, s.log, err)
	}
	var body metadataUpdate
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, s.log, invalid("medals must be a list of numbers"))
	}
	acc, err := s.UpdateMetadata(c.UserContext(), caller, c.Params("id"), body)
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(fiber.Map{"success": true, "user": acc})
}

// GetPublicProfile handles GET /api/users/profile/:username.
func (s *UserService) GetPublicProfile(c *fiber.Ctx) error {
	profile, err := s.PublicProfile(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(profile)
}

// PostKarma handles POST /api/users/:id/karma.
func (s *UserService) PostKarma(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return respondError(c, s.log, err)
	}
	rep, err := s.GiveKarma(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(fiber.Map{"success": true, "reputation": rep})
}
