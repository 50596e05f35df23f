package models

// CallerLocalsKey is the fiber Locals key holding the authenticated *Caller.
const CallerLocalsKey = "user"

// Caller is the authenticated account behind a request.
type Caller struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (c *Caller) IsStaff() bool {
	return c != nil && HasRole(c.Role, StaffRoles)
}

func (c *Caller) IsAdmin() bool {
	return c != nil && HasRole(c.Role, AdminRoles)
}

// CallerFromUser builds the request identity from an identity-source user.
func CallerFromUser(u *IdentityUser) *Caller {
	return &Caller{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username(),
		Role:      u.Role(),
		AvatarURL: u.MetaString("avatar_url"),
	}
}
