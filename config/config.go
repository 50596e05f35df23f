package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	Port           string
	LogLevel       string
	AllowedOrigins []string
	DatabaseURL    string

	Plugin    PluginDB
	Identity  Identity
	Minecraft Minecraft
	Panel     Panel
	Discord   Discord
	Translate Translate
	R2        R2

	RedisURL    string
	BridgeToken string
	SiteURL     string
}

// PluginDB points at the MySQL schema shared by LuckPerms, Plan and SkinRestorer.
type PluginDB struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

func (p PluginDB) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		p.User, p.Password, p.Host, p.Port, p.Name)
}

func (p PluginDB) Configured() bool {
	return p.Host != "" && p.Name != ""
}

type Identity struct {
	URL            string
	ServiceRoleKey string
	JWTSecret      string
}

type Minecraft struct {
	Host string
	Port int
}

type Panel struct {
	Host     string
	APIKey   string
	ServerID string
}

func (p Panel) Configured() bool {
	return p.APIKey != "" && p.ServerID != ""
}

type Discord struct {
	NewsWebhookURL  string
	NewsRoleID      string
	ForumWebhookURL string
}

type Translate struct {
	URL    string
	APIKey string
}

type R2 struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

func (r R2) Configured() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "3001"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		Plugin: PluginDB{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnvInt("DB_PORT", 3306),
			User:     getEnv("DB_USER", ""),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", ""),
		},
		Identity: Identity{
			URL:            strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			ServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			JWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		},
		Minecraft: Minecraft{
			Host: getEnv("MC_SERVER_HOST", "localhost"),
			Port: getEnvInt("MC_SERVER_PORT", 25565),
		},
		Panel: Panel{
			Host:     strings.TrimRight(getEnv("PTERODACTYL_HOST", "https://panel.holy.gg"), "/"),
			APIKey:   getEnv("PTERODACTYL_API_KEY", ""),
			ServerID: getEnv("PTERODACTYL_SERVER_ID", ""),
		},
		Discord: Discord{
			NewsWebhookURL:  getEnv("DISCORD_NEWS_WEBHOOK_URL", getEnv("DISCORD_WEBHOOK_URL", "")),
			NewsRoleID:      getEnv("DISCORD_NEWS_ROLE_ID", ""),
			ForumWebhookURL: getEnv("DISCORD_FORUM_WEBHOOK_URL", ""),
		},
		Translate: Translate{
			URL:    strings.TrimRight(getEnv("TRANSLATE_URL", ""), "/"),
			APIKey: getEnv("TRANSLATE_API_KEY", ""),
		},
		R2: R2{
			AccountID:       getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			AccessKeySecret: getEnv("R2_ACCESS_KEY_SECRET", ""),
			Bucket:          getEnv("R2_BUCKET_NAME", ""),
			CDNBaseURL:      strings.TrimRight(getEnv("CDN_BASE_URL", ""), "/"),
		},
		RedisURL:    getEnv("REDIS_URL", ""),
		BridgeToken: getEnv("BRIDGE_TOKEN", ""),
		SiteURL:     strings.TrimRight(getEnv("SITE_URL", "https://crystaltidessmp.net"), "/"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("plugin_db", cfg.Plugin.Configured()).
		Bool("panel", cfg.Panel.Configured()).
		Bool("r2", cfg.R2.Configured()).
		Bool("redis", cfg.RedisURL != "").
		Bool("local_jwt", cfg.Identity.JWTSecret != "").
		Msg("configuration loaded")

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Identity.URL == "" || c.Identity.ServiceRoleKey == "" {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required")
	}
	if c.Minecraft.Port <= 0 || c.Minecraft.Port > 65535 {
		return fmt.Errorf("MC_SERVER_PORT out of range: %d", c.Minecraft.Port)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
