package models

import "strings"

const DefaultPlayerUUID = "00000000-0000-0000-0000-000000000000"

// StaffMember is one row of the "online staff" view.
type StaffMember struct {
	Username  string  `json:"username"`
	Role      string  `json:"role"`
	RoleImage *string `json:"role_image"`
	PlayerID  string  `json:"player_id"`
	AvatarURL string  `json:"avatar_url"`
	LoginTime int64   `json:"login_time"` // epoch ms
}

// StaffDirectoryEntry is one row of the "all staff" view.
type StaffDirectoryEntry struct {
	UUID      string         `json:"uuid"`
	Username  string         `json:"username"`
	Role      string         `json:"role"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Discord   *LinkedAccount `json:"discord"`
	Twitch    *LinkedAccount `json:"twitch"`
	WebID     string         `json:"web_id,omitempty"`
}

// PlayerGroupRow is one LuckPerms player joined with one of its group.* permissions.
type PlayerGroupRow struct {
	Username     string
	UUID         string
	PrimaryGroup string
	Permission   *string
}

type OverrideMatch int

const (
	MatchUsername OverrideMatch = iota
	MatchRole
)

// RoleOverride gives specific accounts or roles a bespoke label and badge.
type RoleOverride struct {
	Match OverrideMatch
	Key   string
	Label string
	Image string
}

func (o RoleOverride) Applies(username, role string) bool {
	switch o.Match {
	case MatchUsername:
		return strings.EqualFold(username, o.Key)
	case MatchRole:
		return role == o.Key
	}
	return false
}

// DefaultRoleOverrides is applied in order; a later entry sees the role set by an earlier one.
var DefaultRoleOverrides = []RoleOverride{
	{Match: MatchUsername, Key: "ultraxn", Label: "Neroferno", Image: "/ranks/rank-neroferno.png"},
	{Match: MatchRole, Key: "neroferno", Label: "Neroferno", Image: "/ranks/rank-neroferno.png"},
	{Match: MatchRole, Key: "killuwu", Label: "Killuwu", Image: "/ranks/rank-killu.png"},
	{Match: MatchRole, Key: "developer", Label: "Developer", Image: "/ranks/developer.png"},
}
