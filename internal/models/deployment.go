package models

import (
	"time"

	"github.com/google/uuid"
)

// Deployment is the persistent record of a successfully deployed site.
// DomainName is the natural key: a second successful deployment of the same
// domain overwrites the prior record. BCID is an opaque correlation id that
// stays valid across domain-name collisions and is the handle for deletion.
type Deployment struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DomainName     string    `gorm:"not null;uniqueIndex" json:"domain_name"`
	ServerName     string    `json:"server_name"`
	ServerIP       string    `json:"server_ip"`
	SNIIP          string    `gorm:"column:sni_ip" json:"sni_ip"` // constrained hosting: externally visible IP
	CertExpiryDate string    `json:"cert_expiry_date"`
	CertType       string    `json:"cert_type"`
	TemplateName   string    `json:"template_name"`
	DeployDate     time.Time `json:"deploy_date"`
	Status         string    `json:"status"`
	Notes          string    `gorm:"type:text" json:"notes"`
	BCID           string    `gorm:"column:bcid;uniqueIndex" json:"bcid"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
