package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"crystaltides-web/config"
	"crystaltides-web/constants"
	"crystaltides-web/handlers"
	"crystaltides-web/logger"
	"crystaltides-web/middleware"
	"crystaltides-web/models"
	"crystaltides-web/services"
	"crystaltides-web/utils"
	"crystaltides-web/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	boot := logger.New(os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load(boot)
	if err != nil {
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.AutoMigrate(
		&models.Poll{},
		&models.PollOption{},
		&models.News{},
		&models.Comment{},
		&models.WikiArticle{},
		&models.Ticket{},
		&models.TicketMessage{},
		&models.Suggestion{},
		&models.SystemLog{},
		&models.ForumThread{},
		&models.ForumPost{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	// Optional backends. Interfaces stay nil when a backend is not configured.
	var plugins services.PluginSource
	if cfg.Plugin.Configured() {
		store, err := services.OpenPluginStore(cfg.Plugin.DSN())
		if err != nil {
			log.Error().Err(err).Msg("plugin database unavailable, staff views disabled")
		} else {
			defer store.Close()
			plugins = store
		}
	} else {
		log.Warn().Msg("⚠️ plugin database not configured")
	}

	var cache services.Cache = services.NewMemoryCache()
	var limiterStorage fiber.Storage
	if cfg.RedisURL != "" {
		rc, err := services.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Error().Err(err).Msg("redis unavailable, using in-process cache")
		} else {
			defer rc.Close()
			cache = rc
			limiterStorage = rc
		}
	}

	var panel services.PanelAPI
	if cfg.Panel.Configured() {
		panel = services.NewPanelClient(cfg.Panel.Host, cfg.Panel.APIKey, cfg.Panel.ServerID)
	}

	var objects services.ObjectStore
	if cfg.R2.Configured() {
		r2, err := utils.NewR2Uploader(ctx, cfg.R2.AccountID, cfg.R2.AccessKeyID, cfg.R2.AccessKeySecret, cfg.R2.Bucket, cfg.R2.CDNBaseURL)
		if err != nil {
			log.Error().Err(err).Msg("R2 unavailable, uploads disabled")
		} else {
			objects = r2
		}
	}

	identity := services.NewIdentityClient(cfg.Identity.URL, cfg.Identity.ServiceRoleKey, log)
	verifier := services.NewTokenVerifier(cfg.Identity.JWTSecret, identity)
	probe := services.NewServerListProbe(cfg.Minecraft.Host, cfg.Minecraft.Port)

	audit := services.NewAuditLog(db, log)
	translator := services.NewTranslator(cfg.Translate.URL, cfg.Translate.APIKey, log)
	discord := services.NewDiscordNotifier(cfg.Discord.NewsWebhookURL, cfg.Discord.NewsRoleID, cfg.SiteURL, log)
	discord.ForumWebhookURL = cfg.Discord.ForumWebhookURL

	staffService := services.NewStaffService(probe, plugins, identity, log)
	userService := services.NewUserService(identity, audit, log)
	pollService := services.NewPollService(db, translator, audit, log)
	newsService := services.NewNewsService(db, translator, discord, audit, log)
	wikiService := services.NewWikiService(db, translator, audit, log)
	forumService := services.NewForumService(db, pollService, discord, audit, log)
	ticketService := services.NewTicketService(db, panel, audit, log)
	suggestionService := services.NewSuggestionService(db, log)
	serverService := services.NewServerService(panel, plugins, probe, cache, log)
	uploadService := services.NewUploadService(objects, log)

	app := fiber.New(fiber.Config{
		AppName:   "CrystalTides Web",
		BodyLimit: constants.MaxUploadSize + 1024*1024,
		ErrorHandler: handlers.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger(log))
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		ExposeHeaders:    "Content-Length, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	api := app.Group("/api")
	api.Use(limiter.New(limiter.Config{
		Max:        constants.APIRateLimit,
		Expiration: constants.APIRateWindow,
		Storage:    limiterStorage,
	}))
	sensitive := limiter.New(limiter.Config{
		Max:        constants.SensitiveRateLimit,
		Expiration: constants.SensitiveRateWindow,
		Storage:    limiterStorage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "sensitive:" + c.IP()
		},
	})

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	guards := handlers.NewGuards(verifier, sensitive, log)
	handlers.SetupServerRoutes(api, guards, staffService, serverService)
	handlers.SetupUserRoutes(api, guards, userService, staffService)
	handlers.SetupPollRoutes(api, guards, pollService)
	handlers.SetupNewsRoutes(api, guards, newsService)
	handlers.SetupWikiRoutes(api, guards, wikiService)
	handlers.SetupForumRoutes(api, guards, forumService)
	handlers.SetupTicketRoutes(api, guards, ticketService)
	handlers.SetupSuggestionRoutes(api, guards, suggestionService)
	handlers.SetupLogRoutes(api, guards, audit, cfg.BridgeToken, log)
	handlers.SetupUploadRoutes(api, guards, uploadService)

	sched, err := services.NewMaintenance(pollService, newsService, audit, log).Start()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	statusWorker := workers.NewStatusWorker(serverService, constants.StatusRefreshRate, log)
	statusWorker.Start(ctx)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()
	log.Info().Str("port", cfg.Port).Strs("origins", cfg.AllowedOrigins).Msg("✅ server running")

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	if err := app.ShutdownWithTimeout(constants.ShutdownTimeout); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	if err := sched.Shutdown(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown failed")
	}
	<-statusWorker.Done()
	audit.Wait()
}
