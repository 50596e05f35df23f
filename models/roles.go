package models

import "strings"

const RoleUser = "user"

var (
	AdminRoles = []string{"admin", "neroferno", "killu", "killuwu", "developer", "staff"}
	StaffRoles = append(append([]string{}, AdminRoles...), "moderator", "mod", "helper")

	// CommentModeratorRoles may delete any news comment.
	CommentModeratorRoles = []string{"admin", "neroferno", "killu", "killuwu", "developer", "helper"}

	// StaffTierOrder is the precedence used to pick a player's displayed role,
	// highest first.
	StaffTierOrder = []string{"neroferno", "killuwu", "killu", "developer", "admin", "moderator", "mod", "helper", "staff"}

	// AllStaffGroups are the LuckPerms groups listed on the staff directory.
	AllStaffGroups = []string{"neroferno", "killuwu", "killu", "developer", "admin", "moderator", "helper"}
)

var rolePriority = map[string]int{
	"neroferno": 100,
	"killuwu":   95,
	"killu":     95,
	"developer": 90,
	"admin":     80,
	"staff":     70,
	"moderator": 60,
	"mod":       60,
	"helper":    40,
}

// RolePriority ranks a role tag; unknown roles, including "user", rank 0.
func RolePriority(role string) int {
	return rolePriority[strings.ToLower(strings.TrimSpace(role))]
}

// HasRole reports whether role is in allowed, ignoring case.
func HasRole(role string, allowed []string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
