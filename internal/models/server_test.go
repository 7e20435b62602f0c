package models

import (
	"errors"
	"strings"
	"testing"

	"domainpanel/internal/apperr"
)

func TestValidateServerAddress(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"ipv4", "192.168.1.10", false},
		{"ipv4 public", "89.47.113.196", false},
		{"localhost", "localhost", false},
		{"hostname", "s16.serv00.com", false},
		{"hostname with hyphen", "my-server.example.com", false},
		{"single label", "gateway", false},
		{"empty", "", true},
		{"ipv6 rejected", "2001:db8::1", true},
		{"leading hyphen", "-bad.example.com", true},
		{"trailing dot label", "host..example.com", true},
		{"all numeric non-ip", "300.300.300.300", true},
		{"too long", strings.Repeat("a", 250) + ".com", true},
		{"spaces", "my server", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServerAddress(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateServerAddress(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("error kind = %v, want validation", err)
			}
		})
	}
}
