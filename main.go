package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webmail/config"
	"webmail/handlers/api"
	"webmail/jobs"
	"webmail/mailer"
	"webmail/middleware"
	"webmail/storage"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "webmail",
	Short: "Webmail backend: REST API over MySQL with SMTP submission",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		db, err := storage.OpenDB(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := storage.Migrate(ctx, db); err != nil {
			return err
		}
		utils.Log.Info("Database is up to date")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to the TOML configuration")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		utils.Log.Error("%v", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", configPath, err)
	}
	utils.Log.SetLevel(utils.ParseLogLevel(cfg.Log.Level))
	return cfg, nil
}

func newSessionStorage(cfg *config.Config, db *sqlx.DB) storage.SessionStorage {
	if cfg.Session.Driver == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return storage.NewRedisSessionStorage(client, cfg.Session.RedisKeyPrefix)
	}
	return storage.NewMySQLSessionStorage(db)
}

func serve(cfg *config.Config) error {
	utils.Log.Info("Initializing webmail...")

	if err := utils.InitI18n(cfg.I18n.DefaultLanguage); err != nil {
		return fmt.Errorf("failed to initialize i18n: %w", err)
	}

	ctx := context.Background()
	db, err := storage.OpenDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.Migrate(ctx, db); err != nil {
		return err
	}

	files, err := storage.NewFileStore(cfg.Storage.Root, cfg.Storage.UsageTTLDuration())
	if err != nil {
		return err
	}
	defer files.Close()

	blocker, err := storage.NewIPBlocker(cfg.Security.BoltPath, cfg.Security.MaxLoginAttempts, cfg.Security.BlockDurationValue())
	if err != nil {
		return err
	}
	defer blocker.Close()

	sessionStorage := newSessionStorage(cfg, db)
	defer sessionStorage.Close()
	sessions := session.New(session.Config{
		Storage:        sessionStorage,
		Expiration:     cfg.Session.ExpirationDuration(),
		KeyLookup:      "cookie:" + cfg.Session.CookieName,
		CookieSecure:   cfg.Session.CookieSecure,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
	})

	users := storage.NewUserStore(db)
	folders := storage.NewFolderStore(db)
	tags := storage.NewTagStore(db)
	emails := storage.NewEmailStore(db, utils.NewEmailCipher(cfg.Encryption.Secret), files)
	tokens := utils.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TTLDuration())
	auth := middleware.NewAuth(sessions, users, tokens)
	notifications := api.NewNotificationHandler()

	handlers := &api.Handlers{
		Auth:          api.NewAuthHandler(sessions, auth, users, files, blocker, tokens, cfg),
		User:          api.NewUserHandler(users, files),
		Folder:        api.NewFolderHandler(folders),
		Tag:           api.NewTagHandler(tags, emails),
		Email:         api.NewEmailHandler(emails, folders, notifications),
		Send:          api.NewSendHandler(sessions, emails, files, mailer.NewSender(cfg.SMTP), notifications, cfg),
		Search:        api.NewSearchHandler(emails, folders),
		Draft:         api.NewDraftHandler(emails),
		Alias:         api.NewAliasHandler(storage.NewAliasStore(db)),
		Blocked:       api.NewBlockedSenderHandler(storage.NewBlockedSenderStore(db)),
		Attachment:    api.NewAttachmentHandler(files, cfg.Storage.DefaultQuota),
		Storage:       api.NewStorageHandler(users, files, cfg.Storage.DefaultQuota),
		DateTime:      api.NewDateTimeHandler(cfg.DateTime),
		Notifications: notifications,
	}

	app := fiber.New(fiber.Config{
		AppName:      "webmail",
		ErrorHandler: middleware.ErrorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ProxyHeader:  proxyHeader(cfg),
		ReadTimeout:  time.Minute,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "no-referrer",
	}))
	app.Use(middleware.LocaleMiddleware())

	metrics := middleware.NewMetrics()
	if cfg.Metrics.Enabled {
		app.Use(metrics.Middleware())
		app.Get(cfg.Metrics.Path, metrics.Handler())
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.WindowDuration())
	app.Use(limiter.Handler(func(c *fiber.Ctx) bool {
		return c.Path() == "/health" || c.Path() == "/api/health" || c.Path() == cfg.Metrics.Path
	}))

	if cfg.Security.CSRF {
		csrf := middleware.DefaultCSRFConfig()
		csrf.CookieSecure = cfg.Session.CookieSecure
		app.Use(middleware.CSRFProtection(csrf))
	}

	api.RegisterRoutes(app, handlers, auth, blocker)
	app.Use(middleware.NotFound)

	scheduler := jobs.New(metrics.Registry())
	schedule := []struct {
		name, when string
		fn         func() error
	}{
		{"ip-cleanup", cfg.Security.CleanupSchedule, jobs.IPCleanup(blocker)},
		{"session-gc", cfg.Session.GCSchedule, jobs.SessionGC(sessionStorage, 30*time.Second)},
		{"rate-limit-cleanup", "@every 10m", jobs.RateLimitCleanup(limiter, 10*time.Minute)},
	}
	for _, job := range schedule {
		if err := scheduler.Add(job.name, job.when, job.fn); err != nil {
			return err
		}
	}
	scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		utils.Log.Info("Starting server on %s...", cfg.Server.Address())
		errCh <- app.Listen(cfg.Server.Address())
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		utils.Log.Info("Received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	return app.ShutdownWithContext(shutdownCtx)
}

func proxyHeader(cfg *config.Config) string {
	if cfg.Server.TrustProxy {
		return fiber.HeaderXForwardedFor
	}
	return ""
}
