package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/crystaltides")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co/")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, "https://example.supabase.co", cfg.Identity.URL)
	assert.Equal(t, 25565, cfg.Minecraft.Port)
	assert.Equal(t, "https://panel.holy.gg", cfg.Panel.Host)
	assert.False(t, cfg.Panel.Configured())
	assert.False(t, cfg.R2.Configured())
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")

	_, err := Load(zerolog.Nop())
	require.Error(t, err)
}

func TestLoadParsesOriginsAndWebhookFallback(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.example/hook")
	t.Setenv("DISCORD_FORUM_WEBHOOK_URL", "https://discord.example/forum")
	t.Setenv("MC_SERVER_PORT", "not-a-number")

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "https://discord.example/hook", cfg.Discord.NewsWebhookURL)
	assert.Equal(t, "https://discord.example/forum", cfg.Discord.ForumWebhookURL)
	assert.Equal(t, 25565, cfg.Minecraft.Port)
}

func TestPluginDSN(t *testing.T) {
	p := PluginDB{Host: "db", Port: 3306, User: "mc", Password: "pw", Name: "smp"}
	assert.Equal(t, "mc:pw@tcp(db:3306)/smp?charset=utf8mb4&parseTime=true&loc=UTC", p.DSN())
	assert.True(t, p.Configured())
}
