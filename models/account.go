package models

import "time"

// IdentityUser mirrors a Supabase Auth user as returned by the admin API.
type IdentityUser struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	AppMetadata  map[string]interface{} `json:"app_metadata"`
	Identities   []IdentityLink         `json:"identities"`
	CreatedAt    time.Time              `json:"created_at"`
	LastSignInAt *time.Time             `json:"last_sign_in_at"`
}

type IdentityLink struct {
	ID           string                 `json:"id"`
	Provider     string                 `json:"provider"`
	IdentityData map[string]interface{} `json:"identity_data"`
}

// MetaString reads a string value from user_metadata, "" when absent or not a string.
func (u *IdentityUser) MetaString(key string) string {
	if u.UserMetadata == nil {
		return ""
	}
	if s, ok := u.UserMetadata[key].(string); ok {
		return s
	}
	return ""
}

// Role is the role tag from app_metadata, "user" when unset. user_metadata is
// writable by the account owner and is never consulted.
func (u *IdentityUser) Role() string {
	if r, ok := u.AppMetadata["role"].(string); ok && r != "" {
		return r
	}
	return RoleUser
}

// Username prefers the chosen username over the provider full name.
func (u *IdentityUser) Username() string {
	if n := u.MetaString("username"); n != "" {
		return n
	}
	return u.MetaString("full_name")
}

func (u *IdentityUser) Identity(provider string) *IdentityLink {
	for i := range u.Identities {
		if u.Identities[i].Provider == provider {
			return &u.Identities[i]
		}
	}
	return nil
}

// LinkedAccount is an external identity as exposed to the UI.
type LinkedAccount struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Account is the admin-facing summary of an identity user.
type Account struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Username     string         `json:"username"`
	Role         string         `json:"role"`
	Medals       []int          `json:"medals"`
	Achievements []interface{}  `json:"achievements"`
	AvatarURL    string         `json:"avatar_url,omitempty"`
	Discord      *LinkedAccount `json:"discord"`
	Twitch       *LinkedAccount `json:"twitch"`
	CreatedAt    time.Time      `json:"created_at"`
	LastSignIn   *time.Time     `json:"last_sign_in"`
}

// PublicProfile is what anonymous visitors may see of an account.
type PublicProfile struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	MinecraftNick    string    `json:"minecraft_nick,omitempty"`
	OriginalUsername string    `json:"original_username,omitempty"`
	FullName         string    `json:"full_name,omitempty"`
	Role             string    `json:"role"`
	Medals           []int     `json:"medals"`
	AvatarURL        string    `json:"avatar_url,omitempty"`
	BannerURL        string    `json:"profile_banner_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	PublicStats      bool      `json:"public_stats"`
	Bio              string    `json:"bio,omitempty"`
	Reputation       int       `json:"reputation"`
	SocialDiscord    string    `json:"social_discord,omitempty"`
	SocialTwitter    string    `json:"social_twitter,omitempty"`
	SocialTwitch     string    `json:"social_twitch,omitempty"`
	SocialYoutube    string    `json:"social_youtube,omitempty"`
	MinecraftUUID    string    `json:"minecraft_uuid,omitempty"`
	SocialAvatarURL  string    `json:"social_avatar_url,omitempty"`
	AvatarPreference string    `json:"avatar_preference"`
}
