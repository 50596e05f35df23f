package services

import (
	"strings"
	"unicode"

	"crystaltides-web/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold case-folds s for case-insensitive comparison.
func fold(s string) string {
	return cases.Fold().String(s)
}

// foldPlain case-folds s and drops combining marks, so "Núñez" matches "nunez".
func foldPlain(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return fold(out)
}

func containsFolded(haystack, foldedNeedle string) bool {
	return haystack != "" && strings.Contains(fold(haystack), foldedNeedle)
}

func linkedAccount(u *models.IdentityUser, provider string, nameKeys ...string) *models.LinkedAccount {
	link := u.Identity(provider)
	if link == nil {
		return nil
	}
	out := &models.LinkedAccount{ID: link.ID}
	for _, key := range nameKeys {
		if v, ok := link.IdentityData[key].(string); ok && v != "" {
			out.Username = v
			break
		}
	}
	return out
}

func discordAccount(u *models.IdentityUser) *models.LinkedAccount {
	return linkedAccount(u, "discord", "full_name", "name", "global_name")
}

func twitchAccount(u *models.IdentityUser) *models.LinkedAccount {
	return linkedAccount(u, "twitch", "full_name", "name", "preferred_username")
}

// metaInts reads a numeric list from user_metadata; JSON numbers decode as float64.
func metaInts(u *models.IdentityUser, key string) []int {
	out := []int{}
	list, ok := u.UserMetadata[key].([]interface{})
	if !ok {
		return out
	}
	for _, v := range list {
		switch n := v.(type) {
		case float64:
			out = append(out, int(n))
		case int:
			out = append(out, n)
		}
	}
	return out
}

func metaList(u *models.IdentityUser, key string) []interface{} {
	if list, ok := u.UserMetadata[key].([]interface{}); ok {
		return list
	}
	return []interface{}{}
}

func metaInt(u *models.IdentityUser, key string) int {
	switch n := u.UserMetadata[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

func toAccount(u *models.IdentityUser) models.Account {
	username := u.Username()
	if username == "" {
		username = "Sin Nick"
	}
	return models.Account{
		ID:           u.ID,
		Email:        u.Email,
		Username:     username,
		Role:         u.Role(),
		Medals:       metaInts(u, "medals"),
		Achievements: metaList(u, "achievements"),
		AvatarURL:    u.MetaString("avatar_url"),
		Discord:      discordAccount(u),
		Twitch:       twitchAccount(u),
		CreatedAt:    u.CreatedAt,
		LastSignIn:   u.LastSignInAt,
	}
}

func toPublicProfile(u *models.IdentityUser) models.PublicProfile {
	display := u.MetaString("minecraft_nick")
	if display == "" {
		display = u.MetaString("username")
	}
	if display == "" {
		display = u.MetaString("full_name")
	}
	if display == "" {
		display = "Usuario"
	}

	discord := u.MetaString("social_discord")
	if discord == "" {
		discord = u.MetaString("discord")
	}
	socialAvatar := u.MetaString("picture")
	if socialAvatar == "" {
		socialAvatar = u.MetaString("avatar_url")
	}
	pref := u.MetaString("avatar_preference")
	if pref == "" {
		pref = "minecraft"
	}
	publicStats, _ := u.UserMetadata["public_stats"].(bool)

	return models.PublicProfile{
		ID:               u.ID,
		Username:         display,
		MinecraftNick:    u.MetaString("minecraft_nick"),
		OriginalUsername: u.MetaString("username"),
		FullName:         u.MetaString("full_name"),
		Role:             u.Role(),
		Medals:           metaInts(u, "medals"),
		AvatarURL:        u.MetaString("avatar_url"),
		BannerURL:        u.MetaString("profile_banner_url"),
		CreatedAt:        u.CreatedAt,
		PublicStats:      publicStats,
		Bio:              u.MetaString("bio"),
		Reputation:       metaInt(u, "reputation"),
		SocialDiscord:    discord,
		SocialTwitter:    u.MetaString("social_twitter"),
		SocialTwitch:     u.MetaString("social_twitch"),
		SocialYoutube:    u.MetaString("social_youtube"),
		MinecraftUUID:    u.MetaString("minecraft_uuid"),
		SocialAvatarURL:  socialAvatar,
		AvatarPreference: pref,
	}
}
