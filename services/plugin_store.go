package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crystaltides-web/constants"
	"crystaltides-web/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PluginSource reads the LuckPerms, Plan and SkinRestorer tables.
type PluginSource interface {
	OnlinePlayerNames(ctx context.Context) ([]string, error)
	PlayerGroups(ctx context.Context, names []string) ([]models.PlayerGroupRow, error)
	Skins(ctx context.Context, uuids []string) (map[string]string, error)
	OpenSessionStarts(ctx context.Context, uuids []string) (map[string]int64, error)
	StaffByGroups(ctx context.Context, groups []string) ([]StaffGroupMember, error)
	NamesByUUID(ctx context.Context, uuids []string) (map[string]string, error)
	GlobalStats(ctx context.Context, since time.Time) (*PlanStats, error)
}

// StaffGroupMember is a player holding one of the staff groups. Name is
// empty when LuckPerms only knows the player through a permission row.
type StaffGroupMember struct {
	UUID  string
	Name  string
	Group string
}

type PlanStats struct {
	Online             int64 `json:"online"`
	TotalPlayers       int64 `json:"total_players"`
	NewPlayers         int64 `json:"new_players"`
	TotalPlaytimeHours int64 `json:"total_playtime_hours"`
}

type PluginStore struct {
	DB *gorm.DB
}

// OpenPluginStore connects to the plugin MySQL schema with a small bounded pool.
func OpenPluginStore(dsn string) (*PluginStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening plugin database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(constants.PluginDBMaxOpenConns)
	sqlDB.SetMaxIdleConns(constants.PluginDBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(constants.PluginDBConnMaxLifetime)

	return &PluginStore{DB: db}, nil
}

func NewPluginStore(db *gorm.DB) *PluginStore {
	return &PluginStore{DB: db}
}

func (s *PluginStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// OnlinePlayerNames lists players with an open Plan session.
func (s *PluginStore) OnlinePlayerNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.DB.WithContext(ctx).
		Table("plan_sessions ps").
		Joins("JOIN plan_users pu ON ps.user_id = pu.id").
		Where("ps.session_end IS NULL").
		Distinct().
		Pluck("pu.name", &names).Error
	return names, err
}

// PlayerGroups returns each named player once per group.* permission, or once
// with a nil permission when the player has none. Names match case-insensitively.
func (s *PluginStore) PlayerGroups(ctx context.Context, names []string) ([]models.PlayerGroupRow, error) {
	if len(names) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(names))
	for i, n := range names {
		lowered[i] = strings.ToLower(n)
	}

	var rows []models.PlayerGroupRow
	err := s.DB.WithContext(ctx).
		Table("luckperms_players lp").
		Select("lp.username AS username, lp.uuid AS uuid, lp.primary_group AS primary_group, up.permission AS permission").
		Joins("LEFT JOIN luckperms_user_permissions up ON lp.uuid = up.uuid AND up.permission LIKE ?", "group.%").
		Where("LOWER(lp.username) IN ?", lowered).
		Order("lp.username, up.id").
		Scan(&rows).Error
	return rows, err
}

func (s *PluginStore) Skins(ctx context.Context, uuids []string) (map[string]string, error) {
	out := make(map[string]string, len(uuids))
	if len(uuids) == 0 {
		return out, nil
	}
	var rows []models.SkinRestorerPlayer
	if err := s.DB.WithContext(ctx).Where("uuid IN ?", uuids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.SkinIdentifier != "" {
			out[r.UUID] = r.SkinIdentifier
		}
	}
	return out, nil
}

// OpenSessionStarts returns the latest open session start (epoch ms) per uuid.
func (s *PluginStore) OpenSessionStarts(ctx context.Context, uuids []string) (map[string]int64, error) {
	out := make(map[string]int64, len(uuids))
	if len(uuids) == 0 {
		return out, nil
	}
	var rows []struct {
		UUID         string
		SessionStart int64
	}
	err := s.DB.WithContext(ctx).
		Table("plan_sessions ps").
		Select("pu.uuid AS uuid, MAX(ps.session_start) AS session_start").
		Joins("JOIN plan_users pu ON ps.user_id = pu.id").
		Where("pu.uuid IN ? AND ps.session_end IS NULL", uuids).
		Group("pu.uuid").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.UUID] = r.SessionStart
	}
	return out, nil
}

// StaffByGroups finds players whose primary group, or failing that a
// group.<name> permission, is one of groups. Primary groups win.
func (s *PluginStore) StaffByGroups(ctx context.Context, groups []string) ([]StaffGroupMember, error) {
	if len(groups) == 0 {
		return nil, nil
	}

	var players []models.LuckPermsPlayer
	if err := s.DB.WithContext(ctx).Where("primary_group IN ?", groups).Order("username").Find(&players).Error; err != nil {
		return nil, err
	}

	perms := make([]string, len(groups))
	for i, g := range groups {
		perms[i] = "group." + g
	}
	var grants []models.LuckPermsUserPermission
	if err := s.DB.WithContext(ctx).Where("permission IN ?", perms).Order("id").Find(&grants).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(players)+len(grants))
	out := make([]StaffGroupMember, 0, len(players)+len(grants))
	for _, p := range players {
		seen[p.UUID] = true
		out = append(out, StaffGroupMember{UUID: p.UUID, Name: p.Username, Group: p.PrimaryGroup})
	}
	for _, g := range grants {
		if seen[g.UUID] {
			continue
		}
		seen[g.UUID] = true
		out = append(out, StaffGroupMember{UUID: g.UUID, Group: strings.TrimPrefix(g.Permission, "group.")})
	}
	return out, nil
}

func (s *PluginStore) NamesByUUID(ctx context.Context, uuids []string) (map[string]string, error) {
	out := make(map[string]string, len(uuids))
	if len(uuids) == 0 {
		return out, nil
	}
	var users []models.PlanUser
	if err := s.DB.WithContext(ctx).Where("uuid IN ?", uuids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.UUID] = u.Name
	}
	return out, nil
}

// GlobalStats summarises Plan: open sessions, registered players, players
// registered since the given time and total closed-session playtime.
func (s *PluginStore) GlobalStats(ctx context.Context, since time.Time) (*PlanStats, error) {
	db := s.DB.WithContext(ctx)
	stats := &PlanStats{}

	if err := db.Model(&models.PlanSession{}).Where("session_end IS NULL").Count(&stats.Online).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.PlanUser{}).Count(&stats.TotalPlayers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.PlanUser{}).Where("registered >= ?", since.UnixMilli()).Count(&stats.NewPlayers).Error; err != nil {
		return nil, err
	}

	var playtimeMs int64
	err := db.Model(&models.PlanSession{}).
		Where("session_end IS NOT NULL").
		Select("COALESCE(SUM(session_end - session_start), 0)").
		Scan(&playtimeMs).Error
	if err != nil {
		return nil, err
	}
	stats.TotalPlaytimeHours = playtimeMs / int64(time.Hour/time.Millisecond)

	return stats, nil
}
