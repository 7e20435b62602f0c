package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var startTime = time.Now()
var Version = "1.0.0"

type SystemHandler struct {
	db *gorm.DB
}

func NewSystemHandler(db *gorm.DB) *SystemHandler {
	return &SystemHandler{db: db}
}

func (h *SystemHandler) Health(c *fiber.Ctx) error {
	dbStatus := "ok"
	statusCode := fiber.StatusOK

	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		statusCode = fiber.StatusServiceUnavailable
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "unreachable: " + err.Error()
		statusCode = fiber.StatusServiceUnavailable
	}

	overall := "ok"
	if statusCode != fiber.StatusOK {
		overall = "degraded"
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":  overall,
		"service": "domainpanel",
		"version": Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"uptime":  time.Since(startTime).String(),
		"db":      dbStatus,
	})
}

func (h *SystemHandler) DashboardOverview(c *fiber.Ctx) error {
	var serverTotal, serverOnline, serverOffline int64
	h.db.Table("servers").Where("deleted_at IS NULL").Count(&serverTotal)
	h.db.Table("servers").Where("deleted_at IS NULL AND status = ?", "online").Count(&serverOnline)
	h.db.Table("servers").Where("deleted_at IS NULL AND status = ?", "offline").Count(&serverOffline)

	var domainTotal int64
	h.db.Table("domains").Where("deleted_at IS NULL").Count(&domainTotal)

	var templateTotal int64
	h.db.Table("templates").Where("deleted_at IS NULL").Count(&templateTotal)

	var deployTotal, deployRecent int64
	h.db.Table("deployments").Count(&deployTotal)
	h.db.Table("deployments").
		Where("deploy_date > ?", time.Now().Add(-7*24*time.Hour)).
		Count(&deployRecent)

	return c.JSON(fiber.Map{
		"success": true,
		"servers": fiber.Map{
			"total":   serverTotal,
			"online":  serverOnline,
			"offline": serverOffline,
		},
		"domains": fiber.Map{
			"total": domainTotal,
		},
		"templates": fiber.Map{
			"total": templateTotal,
		},
		"deployments": fiber.Map{
			"total":       deployTotal,
			"last_7_days": deployRecent,
		},
		"uptime": time.Since(startTime).String(),
	})
}
