package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"domainpanel/internal/apperr"
)

// Template is a site page placed verbatim into the site root and served as
// the index. Size is derived from Content, never taken from input.
type Template struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Filename  string         `gorm:"not null" json:"filename"`
	Content   string         `gorm:"type:text" json:"content"`
	Size      int64          `json:"size"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (t *Template) BeforeSave(tx *gorm.DB) error {
	t.Size = int64(len(t.Content))
	return nil
}

// ValidateTemplateFilename enforces that the filename names a single file:
// no path separators, no directory references. The filename is written into
// the staging directory and the remote site root verbatim.
func ValidateTemplateFilename(name string) error {
	if name == "" {
		return apperr.Validation("template filename is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return apperr.Validation("template filename must be a bare file name")
	}
	return nil
}
