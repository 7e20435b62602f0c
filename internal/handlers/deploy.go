package handlers

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"domainpanel/internal/apperr"
	"domainpanel/internal/models"
	"domainpanel/internal/services"
)

type DeployHandler struct {
	db       *gorm.DB
	preparer *services.Preparer
	executor *services.Executor
	deleter  *services.Deleter
	staging  *services.StagingStore
}

func NewDeployHandler(db *gorm.DB, preparer *services.Preparer, executor *services.Executor, deleter *services.Deleter, staging *services.StagingStore) *DeployHandler {
	return &DeployHandler{
		db:       db,
		preparer: preparer,
		executor: executor,
		deleter:  deleter,
		staging:  staging,
	}
}

// CheckDomain reports whether a deployment record already exists for the
// given domain so the caller can warn before overwriting it.
func (h *DeployHandler) CheckDomain(c *fiber.Ctx) error {
	var req struct {
		DomainName string `json:"domainName"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	name := strings.TrimSpace(strings.ToLower(req.DomainName))
	if name == "" {
		return badRequest(c, "domainName is required")
	}

	var record models.Deployment
	err := h.db.First(&record, "domain_name = ?", name).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(fiber.Map{
				"success": true,
				"exists":  false,
			})
		}
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"exists":  true,
		"domain":  record,
	})
}

type prepareBody struct {
	Domain struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"domain"`
	Server struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"server"`
	Certificate struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"certificate"`
	Template struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"template"`
}

func (h *DeployHandler) Prepare(c *fiber.Ctx) error {
	var body prepareBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	req := services.PrepareRequest{
		DomainName: body.Domain.Name,
		ServerID:   body.Server.ID,
		TemplateID: body.Template.ID,
		CertType:   body.Certificate.Type,
	}

	fileID, err := h.preparer.Prepare(req)
	if err != nil {
		return fail(c, err)
	}
	recordAudit(h.db, c, "prepare", req.DomainName, fiber.Map{"fileId": fileID})
	return c.JSON(fiber.Map{
		"success": true,
		"fileId":  fileID,
		"message": "部署文件已准备好",
	})
}

func (h *DeployHandler) Execute(c *fiber.Ctx) error {
	var req struct {
		FileID string `json:"fileId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.FileID == "" {
		return badRequest(c, "fileId is required")
	}

	slog.Info("deployment execution requested", "fileId", req.FileID)
	result, err := h.executor.Execute(req.FileID)
	recordAudit(h.db, c, "deploy", req.FileID, fiber.Map{
		"success": result != nil && result.Success,
	})
	if err != nil {
		// a partial result still carries salvaged output worth returning
		if result != nil {
			return c.Status(apperr.HTTPStatus(err)).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
				"result":  result,
			})
		}
		return fail(c, err)
	}
	return c.JSON(result)
}

func (h *DeployHandler) Delete(c *fiber.Ctx) error {
	var id services.DeleteIdentity
	if err := c.BodyParser(&id); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := h.deleter.Delete(id)
	if err != nil {
		return fail(c, err)
	}
	recordAudit(h.db, c, "delete", id.BCID, fiber.Map{
		"success":   result.Success,
		"confirmed": result.DeletionConfirmed,
	})
	return c.JSON(result)
}

func (h *DeployHandler) Deployments(c *fiber.Ctx) error {
	var records []models.Deployment
	if err := h.db.Order("deploy_date DESC").Find(&records).Error; err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"deployments": records,
	})
}

func (h *DeployHandler) Deployment(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "deployment id is required")
	}
	var record models.Deployment
	if err := h.db.First(&record, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fail(c, apperr.NotFound("deployment not found"))
		}
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"deployment": record,
	})
}

// Log serves the captured deployment log for a finished or in-flight run.
func (h *DeployHandler) Log(c *fiber.Ctx) error {
	fileID := c.Params("fileId")
	if _, err := uuid.Parse(fileID); err != nil {
		return badRequest(c, "fileId must be a valid id")
	}
	data, err := os.ReadFile(h.staging.LogPath(fileID))
	if err != nil {
		if os.IsNotExist(err) {
			return fail(c, apperr.NotFound("deployment log not found"))
		}
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"log":     string(data),
	})
}

// LogUpgradeCheck rejects plain HTTP requests on the follow endpoint.
func (h *DeployHandler) LogUpgradeCheck() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// FollowLog streams the local deployment log over a websocket, tailing the
// file until it has been idle for thirty seconds or the client disconnects.
func (h *DeployHandler) FollowLog() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		fileID := c.Params("fileId")
		if _, err := uuid.Parse(fileID); err != nil {
			c.WriteMessage(websocket.TextMessage, []byte("invalid fileId"))
			return
		}
		path := h.staging.LogPath(fileID)

		var offset int64
		idle := 0
		for {
			f, err := os.Open(path)
			if err != nil {
				if os.IsNotExist(err) {
					// the log appears once execution finishes the remote run
					time.Sleep(time.Second)
					idle++
					if idle > 30 {
						c.WriteMessage(websocket.TextMessage, []byte("log not available"))
						return
					}
					continue
				}
				c.WriteMessage(websocket.TextMessage, []byte("error: "+err.Error()))
				return
			}

			if _, err := f.Seek(offset, io.SeekStart); err != nil {
				f.Close()
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return
			}
			if len(data) > 0 {
				offset += int64(len(data))
				idle = 0
				if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			} else {
				idle++
				if idle > 30 {
					return
				}
			}
			time.Sleep(time.Second)
		}
	})
}
