package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"domainpanel/internal/apperr"
	"domainpanel/internal/crypto"
	"domainpanel/internal/models"
	"domainpanel/internal/services"
)

type ServerHandler struct {
	db             *gorm.DB
	enc            *crypto.Encryptor
	dial           services.Dialer
	connectTimeout time.Duration
}

func NewServerHandler(db *gorm.DB, enc *crypto.Encryptor, dial services.Dialer, connectTimeout time.Duration) *ServerHandler {
	return &ServerHandler{db: db, enc: enc, dial: dial, connectTimeout: connectTimeout}
}

type serverRequest struct {
	Name       string `json:"name"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	AuthType   string `json:"auth_type"`
	Password   string `json:"password"`
	PrivateKey string `json:"private_key"`
	Passphrase string `json:"passphrase"`
	Webroot    string `json:"webroot"`
	Notes      string `json:"notes"`
}

func (h *ServerHandler) List(c *fiber.Ctx) error {
	var servers []models.Server
	if err := h.db.Order("created_at DESC").Find(&servers).Error; err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"servers": servers,
	})
}

func (h *ServerHandler) Get(c *fiber.Ctx) error {
	server, err := h.find(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"server":  server,
	})
}

func (h *ServerHandler) Create(c *fiber.Ctx) error {
	var req serverRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" || req.Username == "" {
		return badRequest(c, "name and username are required")
	}
	if err := models.ValidateServerAddress(req.Host); err != nil {
		return fail(c, err)
	}

	server := models.Server{
		Name:     req.Name,
		Host:     req.Host,
		Port:     req.Port,
		Username: req.Username,
		AuthType: req.AuthType,
		Webroot:  req.Webroot,
		Notes:    req.Notes,
	}
	if server.Port == 0 {
		server.Port = 22
	}
	if server.AuthType == "" {
		server.AuthType = "password"
	}
	if server.Webroot == "" {
		server.Webroot = "/var/www/html"
	}
	if err := h.applyCredentials(&server, &req); err != nil {
		return fail(c, err)
	}

	if err := h.db.Create(&server).Error; err != nil {
		return fail(c, err)
	}
	recordAudit(h.db, c, "server_create", server.Name, fiber.Map{"host": server.Host})
	slog.Info("server created", "id", server.ID, "name", server.Name, "host", server.Host)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"server":  server,
	})
}

func (h *ServerHandler) Update(c *fiber.Ctx) error {
	server, err := h.find(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	var req serverRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Host != "" {
		if err := models.ValidateServerAddress(req.Host); err != nil {
			return fail(c, err)
		}
		server.Host = req.Host
		// a changed address invalidates the probed hostname and fingerprint
		server.Hostname = ""
		server.Fingerprint = ""
		server.Status = "unknown"
	}
	if req.Name != "" {
		server.Name = req.Name
	}
	if req.Port != 0 {
		server.Port = req.Port
	}
	if req.Username != "" {
		server.Username = req.Username
	}
	if req.AuthType != "" {
		server.AuthType = req.AuthType
	}
	if req.Webroot != "" {
		server.Webroot = req.Webroot
	}
	if req.Notes != "" {
		server.Notes = req.Notes
	}
	if err := h.applyCredentials(server, &req); err != nil {
		return fail(c, err)
	}

	if err := h.db.Save(server).Error; err != nil {
		return fail(c, err)
	}
	recordAudit(h.db, c, "server_update", server.Name, fiber.Map{"host": server.Host})
	return c.JSON(fiber.Map{
		"success": true,
		"server":  server,
	})
}

func (h *ServerHandler) Delete(c *fiber.Ctx) error {
	server, err := h.find(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if err := h.db.Delete(server).Error; err != nil {
		return fail(c, err)
	}
	recordAudit(h.db, c, "server_delete", server.Name, fiber.Map{"host": server.Host})
	slog.Info("server deleted", "id", server.ID, "name", server.Name)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "server deleted",
	})
}

// TestConnection dials the server, records the host key fingerprint and
// updates the connection status.
func (h *ServerHandler) TestConnection(c *fiber.Ctx) error {
	server, err := h.find(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	target, err := services.BuildTarget(server, h.enc, h.connectTimeout)
	if err != nil {
		return fail(c, err)
	}

	fingerprint, err := services.TestConnection(*target)
	now := time.Now()
	if err != nil {
		server.Status = "offline"
		h.db.Save(server)
		return fail(c, err)
	}
	server.Status = "online"
	server.Fingerprint = fingerprint
	server.LastConnectedAt = &now
	if err := h.db.Save(server).Error; err != nil {
		return fail(c, err)
	}
	recordAudit(h.db, c, "server_test", server.Name, fiber.Map{"fingerprint": fingerprint})
	return c.JSON(fiber.Map{
		"success":     true,
		"fingerprint": fingerprint,
		"message":     "connection successful",
	})
}

// NginxStatus probes the nginx install on the server over a fresh SSH session.
func (h *ServerHandler) NginxStatus(c *fiber.Ctx) error {
	server, err := h.find(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	target, err := services.BuildTarget(server, h.enc, h.connectTimeout)
	if err != nil {
		return fail(c, err)
	}
	session, err := h.dial(*target)
	if err != nil {
		return fail(c, err)
	}
	defer session.Close()

	status, err := services.CheckNginxStatus(session)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"nginx":   status,
	})
}

func (h *ServerHandler) find(id string) (*models.Server, error) {
	if id == "" {
		return nil, apperr.Validation("server id is required")
	}
	var server models.Server
	if err := h.db.First(&server, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("server not found")
		}
		return nil, err
	}
	return &server, nil
}

// applyCredentials encrypts any plaintext credentials present in the request.
// Empty fields leave the stored values untouched.
func (h *ServerHandler) applyCredentials(server *models.Server, req *serverRequest) error {
	if req.Password != "" {
		enc, err := h.enc.Encrypt(req.Password)
		if err != nil {
			return apperr.Internal("failed to encrypt password", err)
		}
		server.EncryptedPassword = enc
	}
	if req.PrivateKey != "" {
		enc, err := h.enc.Encrypt(req.PrivateKey)
		if err != nil {
			return apperr.Internal("failed to encrypt private key", err)
		}
		server.EncryptedPrivateKey = enc
	}
	if req.Passphrase != "" {
		enc, err := h.enc.Encrypt(req.Passphrase)
		if err != nil {
			return apperr.Internal("failed to encrypt passphrase", err)
		}
		server.EncryptedPassphrase = enc
	}
	return nil
}
