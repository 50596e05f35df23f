// services/staff_service.go
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"crystaltides-web/constants"
	"crystaltides-web/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// StaffService merges the live server, the plugin database and the identity
// listing into staff views.
type StaffService struct {
	Probe     PresenceProbe
	Plugins   PluginSource
	Identity  IdentitySource
	Overrides []models.RoleOverride
	Now       func() time.Time
	log       zerolog.Logger
}

func NewStaffService(probe PresenceProbe, plugins PluginSource, identity IdentitySource, log zerolog.Logger) *StaffService {
	return &StaffService{
		Probe:     probe,
		Plugins:   plugins,
		Identity:  identity,
		Overrides: models.DefaultRoleOverrides,
		Now:       time.Now,
		log:       log.With().Str("component", "staff").Logger(),
	}
}

type staffRecord struct {
	name   string
	uuid   string
	groups []string
}

func (r *staffRecord) addGroup(g string) {
	g = strings.TrimPrefix(g, "group.")
	if g == "" {
		return
	}
	for _, have := range r.groups {
		if have == g {
			return
		}
	}
	r.groups = append(r.groups, g)
}

// OnlineStaff lists staff members currently connected to the server.
func (s *StaffService) OnlineStaff(ctx context.Context) ([]models.StaffMember, error) {
	names := s.onlineNames(ctx)
	if len(names) == 0 {
		return []models.StaffMember{}, nil
	}
	if s.Plugins == nil {
		return nil, fmt.Errorf("%w: plugin database", ErrUnavailable)
	}

	rows, err := s.Plugins.PlayerGroups(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("loading permission groups: %w", err)
	}
	records := groupRows(rows)
	if len(records) == 0 {
		return []models.StaffMember{}, nil
	}

	uuids := make([]string, len(records))
	for i, r := range records {
		uuids[i] = r.uuid
	}
	skins, err := s.Plugins.Skins(ctx, uuids)
	if err != nil {
		s.log.Warn().Err(err).Msg("skin lookup failed, using uuid avatars")
		skins = map[string]string{}
	}
	starts, err := s.Plugins.OpenSessionStarts(ctx, uuids)
	if err != nil {
		s.log.Warn().Err(err).Msg("session lookup failed, using current time")
		starts = map[string]int64{}
	}

	now := s.now().UnixMilli()
	out := make([]models.StaffMember, 0, len(records))
	for _, rec := range records {
		role, image := s.resolveRole(rec)
		if !models.HasRole(role, models.StaffTierOrder) {
			continue
		}
		loginTime, ok := starts[rec.uuid]
		if !ok || loginTime == 0 {
			loginTime = now
		}
		out = append(out, models.StaffMember{
			Username:  rec.name,
			Role:      role,
			RoleImage: image,
			PlayerID:  rec.uuid,
			AvatarURL: avatarURL(skins[rec.uuid], rec.uuid),
			LoginTime: loginTime,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := models.RolePriority(out[i].Role), models.RolePriority(out[j].Role)
		if pi != pj {
			return pi > pj
		}
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return out, nil
}

// onlineNames unions the probe sample with open Plan sessions. Either source
// failing only shrinks the set.
func (s *StaffService) onlineNames(ctx context.Context) []string {
	var probed, sessions []string

	var g errgroup.Group
	if s.Probe != nil {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, constants.StatusProbeTimeout)
			defer cancel()
			st, err := s.Probe.Probe(pctx)
			if err != nil {
				s.log.Warn().Err(err).Msg("server probe failed")
				return nil
			}
			probed = st.Sample
			return nil
		})
	}
	if s.Plugins != nil {
		g.Go(func() error {
			names, err := s.Plugins.OnlinePlayerNames(ctx)
			if err != nil {
				s.log.Warn().Err(err).Msg("open session lookup failed")
				return nil
			}
			sessions = names
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool, len(probed)+len(sessions))
	out := make([]string, 0, len(probed)+len(sessions))
	for _, list := range [][]string{probed, sessions} {
		for _, n := range list {
			n = strings.ToLower(strings.TrimSpace(n))
			if n == "" || seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// groupRows folds the joined rows into one record per player, keeping the
// order players first appear. Secondary groups come before the primary one.
func groupRows(rows []models.PlayerGroupRow) []*staffRecord {
	byName := make(map[string]*staffRecord)
	primary := make(map[string]string)
	var order []*staffRecord

	for _, row := range rows {
		key := strings.ToLower(row.Username)
		rec, ok := byName[key]
		if !ok {
			rec = &staffRecord{name: row.Username, uuid: row.UUID}
			byName[key] = rec
			primary[key] = row.PrimaryGroup
			order = append(order, rec)
		}
		if row.Permission != nil {
			rec.addGroup(*row.Permission)
		}
	}
	for key, rec := range byName {
		rec.addGroup(primary[key])
	}
	return order
}

func pickRole(groups []string) string {
	for _, tier := range models.StaffTierOrder {
		for _, g := range groups {
			if strings.EqualFold(g, tier) {
				return tier
			}
		}
	}
	if len(groups) > 0 {
		return groups[0]
	}
	return "default"
}

func (s *StaffService) resolveRole(rec *staffRecord) (string, *string) {
	role := pickRole(rec.groups)
	var image *string
	for _, o := range s.Overrides {
		if o.Applies(rec.name, role) {
			role = o.Label
			img := o.Image
			image = &img
		}
	}
	return role, image
}

func avatarURL(skin, uuid string) string {
	id := skin
	if id == "" {
		id = uuid
	}
	return fmt.Sprintf("https://mc-heads.net/avatar/%s/100", id)
}

func (s *StaffService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// AllStaff lists every player holding a staff group, online or not, joined
// with their web account when the usernames match.
func (s *StaffService) AllStaff(ctx context.Context) ([]models.StaffDirectoryEntry, error) {
	if s.Plugins == nil {
		return nil, fmt.Errorf("%w: plugin database", ErrUnavailable)
	}
	members, err := s.Plugins.StaffByGroups(ctx, models.AllStaffGroups)
	if err != nil {
		return nil, fmt.Errorf("loading staff groups: %w", err)
	}
	if len(members) == 0 {
		return []models.StaffDirectoryEntry{}, nil
	}

	var missing []string
	for _, m := range members {
		if m.Name == "" {
			missing = append(missing, m.UUID)
		}
	}
	if len(missing) > 0 {
		names, err := s.Plugins.NamesByUUID(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("resolving staff names: %w", err)
		}
		for i := range members {
			if members[i].Name == "" {
				members[i].Name = names[members[i].UUID]
			}
		}
	}

	accounts := make(map[string]*models.IdentityUser)
	if s.Identity != nil {
		users, err := s.Identity.ListUsers(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("identity listing failed, staff without web accounts")
		}
		for i := range users {
			if name := users[i].Username(); name != "" {
				accounts[fold(name)] = &users[i]
			}
		}
	}

	out := make([]models.StaffDirectoryEntry, 0, len(members))
	for _, m := range members {
		if m.Name == "" {
			continue
		}
		entry := models.StaffDirectoryEntry{
			UUID:      m.UUID,
			Username:  m.Name,
			Role:      capitalize(m.Group),
			AvatarURL: avatarURL("", m.UUID),
		}
		if u, ok := accounts[fold(m.Name)]; ok {
			if a := u.MetaString("avatar_url"); a != "" {
				entry.AvatarURL = a
			}
			entry.Discord = discordAccount(u)
			entry.Twitch = twitchAccount(u)
			entry.WebID = u.ID
		}
		out = append(out, entry)
	}
	return out, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// GetOnlineStaff handles GET /api/server/staff.
func (s *StaffService) GetOnlineStaff(c *fiber.Ctx) error {
	staff, err := s.OnlineStaff(c.UserContext())
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(staff)
}

// GetAllStaff handles GET /api/server/all-staff and GET /api/users/staff.
func (s *StaffService) GetAllStaff(c *fiber.Ctx) error {
	staff, err := s.AllStaff(c.UserContext())
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(staff)
}
