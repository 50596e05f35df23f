package constants

import "time"

const (
	StatusProbeTimeout     = 4 * time.Second
	LiveStatusProbeTimeout = 3 * time.Second
	PanelTimeout           = 10 * time.Second
	IdentityTimeout        = 10 * time.Second
	WebhookTimeout         = 10 * time.Second
	TranslateTimeout       = 8 * time.Second
	SideEffectTimeout      = 15 * time.Second
	ShutdownTimeout        = 10 * time.Second
)

const (
	StatusCacheTTL    = 45 * time.Second
	ResourcesCacheTTL = 10 * time.Second
	StatusRefreshRate = 30 * time.Second
)

const (
	PluginDBMaxOpenConns    = 10
	PluginDBMaxIdleConns    = 2
	PluginDBConnMaxLifetime = 5 * time.Minute
)

const (
	IdentityPageSize   = 1000
	IdentityMaxPages   = 50
	DefaultPageLimit   = 10
	MaxPageLimit       = 50
	MaxUploadSize      = 5 * 1024 * 1024
	LogRetention       = 15 * 24 * time.Hour
	StaleNewsAge       = 7 * 24 * time.Hour
	StaleNewsMaxViews  = 10
	DiscordDescription = 200
)

const (
	APIRateLimit        = 300
	APIRateWindow       = 15 * time.Minute
	SensitiveRateLimit  = 10
	SensitiveRateWindow = time.Hour
)
