package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"domainpanel/internal/config"
	"domainpanel/internal/crypto"
	"domainpanel/internal/database"
	"domainpanel/internal/handlers"
	"domainpanel/internal/routes"
	"domainpanel/internal/services"
)

func main() {
	// JSON structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting domainpanel", "version", handlers.Version)

	// ─── Config ──────────────────────────────────────────────────────────
	cfg := config.Load()

	// ─── Database ────────────────────────────────────────────────────────
	if err := database.Connect(cfg); err != nil {
		slog.Error("Database connection failed", "error", err)
		os.Exit(1)
	}

	if err := database.Migrate(); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	db := database.DB

	// ─── Encryption ─────────────────────────────────────────────────────
	var encryptor *crypto.Encryptor
	if cfg.SSHEncryptionKey != "" {
		var err error
		encryptor, err = crypto.NewEncryptor(cfg.SSHEncryptionKey)
		if err != nil {
			slog.Error("Failed to create encryptor", "error", err)
			os.Exit(1)
		}
		slog.Info("SSH credential encryption initialized")
	} else {
		slog.Warn("SSH_ENCRYPTION_KEY not set, credentials will not be protected")
		// dummy encryptor with a default key for development
		encryptor, _ = crypto.NewEncryptor("0000000000000000000000000000000000000000000000000000000000000000")
	}

	// ─── Staging area ───────────────────────────────────────────────────
	staging, err := services.NewStagingStore(cfg.StagingDir, time.Duration(cfg.StagingTTLMinutes)*time.Minute)
	if err != nil {
		slog.Error("Failed to create staging directory", "error", err)
		os.Exit(1)
	}
	staging.Start()

	// ─── Deployment services ────────────────────────────────────────────
	store := services.NewGormStore(db)
	connectTimeout := time.Duration(cfg.SSHConnectTimeoutSec) * time.Second
	deployTimeout := time.Duration(cfg.DeployTimeoutMin) * time.Minute
	preparer := services.NewPreparer(store, staging)
	executor := services.NewExecutor(store, staging, encryptor, services.DialSSH, connectTimeout, deployTimeout)
	deleter := services.NewDeleter(store, staging, encryptor, services.DialSSH, connectTimeout, deployTimeout)

	// ─── Handlers ───────────────────────────────────────────────────────
	authHandler := handlers.NewAuthHandler(cfg)
	serverHandler := handlers.NewServerHandler(db, encryptor, services.DialSSH, connectTimeout)
	templateHandler := handlers.NewTemplateHandler(db)
	domainHandler := handlers.NewDomainHandler(db)
	deployHandler := handlers.NewDeployHandler(db, preparer, executor, deleter, staging)
	settingHandler := handlers.NewSettingHandler(db)
	systemHandler := handlers.NewSystemHandler(db)
	auditHandler := handlers.NewAuditHandler(db)

	// ─── Fiber App ──────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      "domainpanel v" + handlers.Version,
		ServerHeader: "domainpanel",
		BodyLimit:    10 * 1024 * 1024, // 10MB for template uploads
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal server error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"error":   message,
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, PATCH, OPTIONS",
	}))

	app.Use(recover.New(recover.Config{
		EnableStackTrace: false,
	}))

	// Security headers
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Request logger
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if c.Path() == "/api/health" {
			return err
		}
		slog.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
		)
		return err
	})

	// ─── Routes ─────────────────────────────────────────────────────────
	routes.Setup(app, cfg, authHandler, serverHandler, templateHandler, domainHandler,
		deployHandler, settingHandler, systemHandler, auditHandler)

	// ─── Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down domainpanel...")

		staging.Stop()

		if err := app.Shutdown(); err != nil {
			slog.Error("Fiber shutdown error", "error", err)
		}

		if sqlDB, err := database.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	// ─── Start ──────────────────────────────────────────────────────────
	listenAddr := ":" + cfg.Port
	slog.Info("domainpanel listening", "addr", listenAddr)

	if err := app.Listen(listenAddr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
