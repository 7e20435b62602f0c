package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"domainpanel/internal/models"
)

type SettingHandler struct {
	db *gorm.DB
}

func NewSettingHandler(db *gorm.DB) *SettingHandler {
	return &SettingHandler{db: db}
}

func (h *SettingHandler) List(c *fiber.Ctx) error {
	var settings []models.Setting
	if err := h.db.Order("key").Find(&settings).Error; err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"settings": settings,
	})
}

// Put upserts a batch of key/value pairs in one request.
func (h *SettingHandler) Put(c *fiber.Ctx) error {
	var req map[string]string
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req) == 0 {
		return badRequest(c, "no settings provided")
	}

	for key, value := range req {
		setting := models.Setting{Key: key, Value: value}
		err := h.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&setting).Error
		if err != nil {
			return fail(c, err)
		}
	}
	recordAudit(h.db, c, "settings_update", "", fiber.Map{"count": len(req)})
	return c.JSON(fiber.Map{
		"success": true,
		"message": "settings saved",
	})
}
