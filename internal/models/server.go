package models

import (
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"domainpanel/internal/apperr"
)

type Server struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name                string         `gorm:"not null" json:"name"`
	Host                string         `gorm:"not null" json:"host"` // ip or hostname used for SSH
	Hostname            string         `json:"hostname"`             // reported by the live `hostname` probe
	Port                int            `gorm:"default:22" json:"port"`
	Username            string         `gorm:"not null" json:"username"`
	AuthType            string         `gorm:"not null;default:'password'" json:"auth_type"` // password or key
	EncryptedPassword   string         `gorm:"" json:"-"`
	EncryptedPrivateKey string         `gorm:"type:text" json:"-"`
	EncryptedPassphrase string         `gorm:"" json:"-"`
	Fingerprint         string         `gorm:"" json:"fingerprint"`
	Webroot             string         `gorm:"default:'/var/www/html'" json:"webroot"`
	Status              string         `gorm:"default:'unknown'" json:"status"`
	Notes               string         `gorm:"type:text" json:"notes"`
	LastConnectedAt     *time.Time     `json:"last_connected_at"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// hostnameRE per RFC 1123: dot-separated labels of letters, digits and
// hyphens, no leading/trailing hyphen.
var hostnameRE = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// ValidateServerAddress enforces the server address invariant: a syntactically
// valid IPv4 address, "localhost", or a valid hostname.
func ValidateServerAddress(addr string) error {
	if addr == "" {
		return apperr.Validation("server address is required")
	}
	if addr == "localhost" {
		return nil
	}
	if ip := net.ParseIP(addr); ip != nil {
		if ip.To4() == nil {
			return apperr.Validation("server address must be IPv4, localhost, or a hostname")
		}
		return nil
	}
	if len(addr) > 253 || !hostnameRE.MatchString(addr) || !strings.ContainsAny(addr, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		return apperr.Validation("server address must be IPv4, localhost, or a hostname")
	}
	return nil
}
