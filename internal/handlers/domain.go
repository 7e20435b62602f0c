package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"domainpanel/internal/apperr"
	"domainpanel/internal/models"
)

type DomainHandler struct {
	db *gorm.DB
}

func NewDomainHandler(db *gorm.DB) *DomainHandler {
	return &DomainHandler{db: db}
}

type domainRequest struct {
	Name       string `json:"name"`
	Registrar  string `json:"registrar"`
	ExpiryDate string `json:"expiry_date"`
	Status     string `json:"status"`
	Notes      string `json:"notes"`
}

func (h *DomainHandler) List(c *fiber.Ctx) error {
	var domains []models.Domain
	if err := h.db.Order("created_at DESC").Find(&domains).Error; err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"domains": domains,
	})
}

func (h *DomainHandler) Get(c *fiber.Ctx) error {
	domain, err := h.find(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"domain":  domain,
	})
}

func (h *DomainHandler) Create(c *fiber.Ctx) error {
	var req domainRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	req.Name = strings.TrimSpace(strings.ToLower(req.Name))
	if req.Name == "" {
		return badRequest(c, "domain name is required")
	}

	domain := models.Domain{
		Name:       req.Name,
		Registrar:  req.Registrar,
		ExpiryDate: req.ExpiryDate,
		Status:     req.Status,
		Notes:      req.Notes,
	}
	if domain.Status == "" {
		domain.Status = "active"
	}
	if err := h.db.Create(&domain).Error; err != nil {
		return fail(c, err)
	}
	recordAudit(h.db, c, "domain_create", domain.Name, nil)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"domain":  domain,
	})
}

func (h *DomainHandler) Update(c *fiber.Ctx) error {
	domain, err := h.find(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	var req domainRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name != "" {
		domain.Name = strings.TrimSpace(strings.ToLower(req.Name))
	}
	if req.Registrar != "" {
		domain.Registrar = req.Registrar
	}
	if req.ExpiryDate != "" {
		domain.ExpiryDate = req.ExpiryDate
	}
	if req.Status != "" {
		domain.Status = req.Status
	}
	if req.Notes != "" {
		domain.Notes = req.Notes
	}
	if err := h.db.Save(domain).Error; err != nil {
		return fail(c, err)
	}
	recordAudit(h.db, c, "domain_update", domain.Name, nil)
	return c.JSON(fiber.Map{
		"success": true,
		"domain":  domain,
	})
}

func (h *DomainHandler) Delete(c *fiber.Ctx) error {
	domain, err := h.find(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if err := h.db.Delete(domain).Error; err != nil {
		return fail(c, err)
	}
	recordAudit(h.db, c, "domain_delete", domain.Name, nil)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "domain deleted",
	})
}

func (h *DomainHandler) find(id string) (*models.Domain, error) {
	if id == "" {
		return nil, apperr.Validation("domain id is required")
	}
	var domain models.Domain
	if err := h.db.First(&domain, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("domain not found")
		}
		return nil, err
	}
	return &domain, nil
}
