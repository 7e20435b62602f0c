package models

import (
	"errors"
	"testing"

	"domainpanel/internal/apperr"
)

func TestValidateTemplateFilename(t *testing.T) {
	valid := []string{"index.html", "landing.html", "page-2.htm", "a.b.c.html"}
	for _, name := range valid {
		if err := ValidateTemplateFilename(name); err != nil {
			t.Errorf("ValidateTemplateFilename(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "a/b.html", "../x.html", "..", ".", `a\b.html`, "/etc/passwd"}
	for _, name := range invalid {
		err := ValidateTemplateFilename(name)
		if err == nil {
			t.Errorf("ValidateTemplateFilename(%q) = nil, want error", name)
			continue
		}
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("ValidateTemplateFilename(%q) = %v, want validation error", name, err)
		}
	}
}
