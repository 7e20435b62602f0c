package routes

import (
	"github.com/gofiber/fiber/v2"

	"domainpanel/internal/config"
	"domainpanel/internal/handlers"
	"domainpanel/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	serverHandler *handlers.ServerHandler,
	templateHandler *handlers.TemplateHandler,
	domainHandler *handlers.DomainHandler,
	deployHandler *handlers.DeployHandler,
	settingHandler *handlers.SettingHandler,
	systemHandler *handlers.SystemHandler,
	auditHandler *handlers.AuditHandler,
) {
	// ─── Public ──────────────────────────────────────────────────────────
	app.Get("/api/health", systemHandler.Health)

	// ─── Auth ────────────────────────────────────────────────────────────
	app.Post("/api/auth/login", authHandler.Login)
	app.Post("/api/auth/refresh", authHandler.Refresh)

	// ─── Protected routes ────────────────────────────────────────────────
	api := app.Group("/api", middleware.JWTProtected(cfg.JWTSecret))

	// Auth (protected)
	api.Get("/auth/me", authHandler.Me)
	api.Put("/auth/password", authHandler.ChangePassword)

	// Dashboard
	api.Get("/dashboard/overview", systemHandler.DashboardOverview)

	// Servers
	api.Get("/servers", serverHandler.List)
	api.Post("/servers", serverHandler.Create)
	api.Get("/servers/:id", serverHandler.Get)
	api.Put("/servers/:id", serverHandler.Update)
	api.Delete("/servers/:id", serverHandler.Delete)
	api.Post("/servers/:id/test", serverHandler.TestConnection)
	api.Get("/servers/:id/nginx", serverHandler.NginxStatus)

	// Templates
	api.Get("/templates", templateHandler.List)
	api.Post("/templates", templateHandler.Create)
	api.Get("/templates/:id", templateHandler.Get)
	api.Put("/templates/:id", templateHandler.Update)
	api.Delete("/templates/:id", templateHandler.Delete)

	// Domains
	api.Get("/domains", domainHandler.List)
	api.Post("/domains", domainHandler.Create)
	api.Get("/domains/:id", domainHandler.Get)
	api.Put("/domains/:id", domainHandler.Update)
	api.Delete("/domains/:id", domainHandler.Delete)

	// Deployment
	api.Post("/deploy/check-domain", deployHandler.CheckDomain)
	api.Post("/deploy/prepare", deployHandler.Prepare)
	api.Post("/deploy/execute", deployHandler.Execute)
	api.Post("/deploy/delete", deployHandler.Delete)
	api.Get("/deploy/records", deployHandler.Deployments)
	api.Get("/deploy/records/:id", deployHandler.Deployment)
	api.Get("/deploy/:fileId/log", deployHandler.Log)

	// Deployment log follow (WebSocket)
	api.Use("/deploy/:fileId/log/follow", deployHandler.LogUpgradeCheck())
	api.Get("/deploy/:fileId/log/follow", deployHandler.FollowLog())

	// Settings
	api.Get("/settings", settingHandler.List)
	api.Put("/settings", settingHandler.Put)

	// Audit log
	api.Get("/audit", auditHandler.List)
}
