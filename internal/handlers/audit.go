package handlers

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"domainpanel/internal/models"
)

type AuditHandler struct {
	db *gorm.DB
}

func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{db: db}
}

func (h *AuditHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit < 1 || limit > 500 {
		limit = 100
	}

	var logs []models.AuditLog
	if err := h.db.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"logs":    logs,
	})
}

// recordAudit writes an audit entry; failures are logged, never surfaced.
func recordAudit(db *gorm.DB, c *fiber.Ctx, action, target string, details fiber.Map) {
	actor, _ := c.Locals("username").(string)
	var payload datatypes.JSON
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			payload = datatypes.JSON(data)
		}
	}
	entry := models.AuditLog{
		Actor:   actor,
		Action:  action,
		Target:  target,
		Details: payload,
	}
	if err := db.Create(&entry).Error; err != nil {
		slog.Warn("failed to record audit entry", "action", action, "target", target, "error", err)
	}
}
