package services

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"domainpanel/internal/apperr"
	"domainpanel/internal/models"
)

// StagedConfig is the config.json written into each staging directory. It
// carries no credentials; the executor re-resolves the server from the
// database right before connecting.
type StagedConfig struct {
	Domain struct {
		Name string `json:"name"`
	} `json:"domain"`
	Server struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		IP       string `json:"ip"`
		Port     int    `json:"port"`
		Username string `json:"username"`
		AuthType string `json:"auth_type"`
		Webroot  string `json:"webroot"`
		Hostname string `json:"hostname,omitempty"`
	} `json:"server"`
	Certificate struct {
		Type string `json:"type"`
	} `json:"certificate"`
	Template struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Filename string `json:"filename"`
	} `json:"template"`
	Flavor Flavor `json:"flavor"`
}

// PrepareRequest is the input for staging a deployment.
type PrepareRequest struct {
	DomainName string `json:"domainName"`
	ServerID   string `json:"serverId"`
	TemplateID string `json:"templateId"`
	CertType   string `json:"certType"`
}

// Preparer stages everything a deployment needs into a staging directory:
// config.json, the site template under its original filename and the
// rendered deploy.sh.
type Preparer struct {
	store   Store
	staging *StagingStore
}

func NewPreparer(store Store, staging *StagingStore) *Preparer {
	return &Preparer{store: store, staging: staging}
}

// Prepare validates the request, resolves the server and template, renders
// the flavor-appropriate script and writes the staging directory. It returns
// the fileID that Execute later consumes.
func (p *Preparer) Prepare(req PrepareRequest) (string, error) {
	if req.DomainName == "" {
		return "", apperr.Validation("domain name is required")
	}
	if req.ServerID == "" {
		return "", apperr.Validation("server id is required")
	}
	if req.TemplateID == "" {
		return "", apperr.Validation("template id is required")
	}
	if req.CertType == "" {
		return "", apperr.Validation("certificate type is required")
	}

	server, err := p.store.ServerByID(req.ServerID)
	if err != nil {
		return "", err
	}
	tmpl, err := p.store.TemplateByID(req.TemplateID)
	if err != nil {
		return "", err
	}
	// Stored templates predating the filename check could still carry one.
	if err := models.ValidateTemplateFilename(tmpl.Filename); err != nil {
		return "", err
	}

	fileID := uuid.New().String()
	dir, err := p.staging.Create(fileID)
	if err != nil {
		return "", err
	}

	webroot := server.Webroot
	if webroot == "" {
		webroot = "/var/www/html"
	}

	var cfg StagedConfig
	cfg.Domain.Name = req.DomainName
	cfg.Server.ID = server.ID.String()
	cfg.Server.Name = server.Name
	cfg.Server.IP = server.Host
	cfg.Server.Port = server.Port
	cfg.Server.Username = server.Username
	cfg.Server.AuthType = server.AuthType
	cfg.Server.Webroot = webroot
	cfg.Server.Hostname = server.Hostname
	cfg.Certificate.Type = req.CertType
	cfg.Template.ID = tmpl.ID.String()
	cfg.Template.Name = tmpl.Name
	cfg.Template.Filename = tmpl.Filename
	cfg.Flavor = ClassifyStatic(server.Host, server.Name, server.Hostname)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		p.staging.Remove(fileID)
		return "", apperr.Internal("failed to encode staged config", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644); err != nil {
		p.staging.Remove(fileID)
		return "", apperr.Internal("failed to write staged config", err)
	}

	if err := os.WriteFile(filepath.Join(dir, tmpl.Filename), []byte(tmpl.Content), 0o644); err != nil {
		p.staging.Remove(fileID)
		return "", apperr.Internal("failed to write staged template", err)
	}

	script, err := RenderDeployScript(cfg.Flavor, DeployScriptParams{
		Domain:       req.DomainName,
		Webroot:      webroot,
		TemplateFile: tmpl.Filename,
		CertType:     req.CertType,
		ServerIP:     server.Host,
	})
	if err != nil {
		p.staging.Remove(fileID)
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "deploy.sh"), []byte(script), 0o755); err != nil {
		p.staging.Remove(fileID)
		return "", apperr.Internal("failed to write staged deploy script", err)
	}

	slog.Info("deployment staged",
		"fileId", fileID,
		"domain", req.DomainName,
		"server", server.Name,
		"flavor", cfg.Flavor)
	return fileID, nil
}

func loadStagedConfig(staging *StagingStore, fileID string) (*StagedConfig, error) {
	// fileIDs are always UUIDs; anything else never names a staging dir and
	// must not be joined into a path.
	if _, err := uuid.Parse(fileID); err != nil {
		return nil, apperr.NotFound("staged deployment expired or not found")
	}
	if !staging.Exists(fileID) {
		return nil, apperr.NotFound("staged deployment expired or not found")
	}
	data, err := os.ReadFile(filepath.Join(staging.Dir(fileID), "config.json"))
	if err != nil {
		return nil, apperr.NotFound("staged config missing")
	}
	var cfg StagedConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, apperr.Internal("staged config is corrupt", err)
	}
	return &cfg, nil
}
