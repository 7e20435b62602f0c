package services

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"domainpanel/internal/apperr"
	"domainpanel/internal/models"
)

// Store is the persistence surface the deployment orchestrators use.
// Lookups return a NotFound error when nothing matches.
type Store interface {
	ServerByID(id string) (*models.Server, error)
	// ServerByExact matches host, name or hostname equality.
	ServerByExact(value string) (*models.Server, error)
	ServerByName(name string) (*models.Server, error)
	Servers() ([]models.Server, error)
	SaveServerHostname(id uuid.UUID, hostname string) error

	TemplateByID(id string) (*models.Template, error)

	DeploymentByDomain(name string) (*models.Deployment, error)
	DeploymentByBCID(bcid string) (*models.Deployment, error)
	DeploymentByID(id string) (*models.Deployment, error)
	SaveDeployment(d *models.Deployment) error
	DeleteDeployment(id uuid.UUID) error
}

// GormStore backs Store with the application database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ServerByID(id string) (*models.Server, error) {
	var server models.Server
	if err := s.db.First(&server, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("server not found")
		}
		return nil, apperr.Internal("failed to load server", err)
	}
	return &server, nil
}

func (s *GormStore) ServerByExact(value string) (*models.Server, error) {
	var server models.Server
	err := s.db.First(&server, "host = ? OR name = ? OR hostname = ?", value, value, value).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("server not found")
		}
		return nil, apperr.Internal("failed to look up server", err)
	}
	return &server, nil
}

func (s *GormStore) ServerByName(name string) (*models.Server, error) {
	var server models.Server
	if err := s.db.First(&server, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("server not found")
		}
		return nil, apperr.Internal("failed to look up server", err)
	}
	return &server, nil
}

func (s *GormStore) Servers() ([]models.Server, error) {
	var servers []models.Server
	if err := s.db.Find(&servers).Error; err != nil {
		return nil, apperr.Internal("failed to list servers", err)
	}
	return servers, nil
}

func (s *GormStore) SaveServerHostname(id uuid.UUID, hostname string) error {
	return s.db.Model(&models.Server{}).Where("id = ?", id).Update("hostname", hostname).Error
}

func (s *GormStore) TemplateByID(id string) (*models.Template, error) {
	var tmpl models.Template
	if err := s.db.First(&tmpl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("template not found")
		}
		return nil, apperr.Internal("failed to load template", err)
	}
	return &tmpl, nil
}

func (s *GormStore) DeploymentByDomain(name string) (*models.Deployment, error) {
	var d models.Deployment
	if err := s.db.First(&d, "domain_name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("deployment not found")
		}
		return nil, apperr.Internal("failed to load deployment", err)
	}
	return &d, nil
}

func (s *GormStore) DeploymentByBCID(bcid string) (*models.Deployment, error) {
	var d models.Deployment
	if err := s.db.First(&d, "bcid = ?", bcid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("deployment record not found")
		}
		return nil, apperr.Internal("failed to load deployment", err)
	}
	return &d, nil
}

func (s *GormStore) DeploymentByID(id string) (*models.Deployment, error) {
	var d models.Deployment
	if err := s.db.First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("deployment record not found")
		}
		return nil, apperr.Internal("failed to load deployment", err)
	}
	return &d, nil
}

func (s *GormStore) SaveDeployment(d *models.Deployment) error {
	return s.db.Save(d).Error
}

func (s *GormStore) DeleteDeployment(id uuid.UUID) error {
	return s.db.Delete(&models.Deployment{}, "id = ?", id).Error
}
