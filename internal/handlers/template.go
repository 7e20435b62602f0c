package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"domainpanel/internal/apperr"
	"domainpanel/internal/models"
)

type TemplateHandler struct {
	db *gorm.DB
}

func NewTemplateHandler(db *gorm.DB) *TemplateHandler {
	return &TemplateHandler{db: db}
}

type templateRequest struct {
	Name     string `json:"name"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

func (h *TemplateHandler) List(c *fiber.Ctx) error {
	var templates []models.Template
	if err := h.db.Order("created_at DESC").Find(&templates).Error; err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"templates": templates,
	})
}

func (h *TemplateHandler) Get(c *fiber.Ctx) error {
	tmpl, err := h.find(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"template": tmpl,
	})
}

func (h *TemplateHandler) Create(c *fiber.Ctx) error {
	var req templateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" || req.Filename == "" {
		return badRequest(c, "name and filename are required")
	}
	if err := models.ValidateTemplateFilename(req.Filename); err != nil {
		return fail(c, err)
	}

	tmpl := models.Template{
		Name:     req.Name,
		Filename: req.Filename,
		Content:  req.Content,
	}
	if err := h.db.Create(&tmpl).Error; err != nil {
		return fail(c, err)
	}
	recordAudit(h.db, c, "template_create", tmpl.Name, nil)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"template": tmpl,
	})
}

func (h *TemplateHandler) Update(c *fiber.Ctx) error {
	tmpl, err := h.find(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	var req templateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name != "" {
		tmpl.Name = req.Name
	}
	if req.Filename != "" {
		if err := models.ValidateTemplateFilename(req.Filename); err != nil {
			return fail(c, err)
		}
		tmpl.Filename = req.Filename
	}
	if req.Content != "" {
		tmpl.Content = req.Content
	}
	if err := h.db.Save(tmpl).Error; err != nil {
		return fail(c, err)
	}
	recordAudit(h.db, c, "template_update", tmpl.Name, nil)
	return c.JSON(fiber.Map{
		"success":  true,
		"template": tmpl,
	})
}

func (h *TemplateHandler) Delete(c *fiber.Ctx) error {
	tmpl, err := h.find(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if err := h.db.Delete(tmpl).Error; err != nil {
		return fail(c, err)
	}
	recordAudit(h.db, c, "template_delete", tmpl.Name, nil)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "template deleted",
	})
}

func (h *TemplateHandler) find(id string) (*models.Template, error) {
	if id == "" {
		return nil, apperr.Validation("template id is required")
	}
	var tmpl models.Template
	if err := h.db.First(&tmpl, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("template not found")
		}
		return nil, err
	}
	return &tmpl, nil
}
