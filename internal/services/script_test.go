package services

import (
	"strings"
	"testing"
)

func TestRenderDeployScriptStandard(t *testing.T) {
	p := DeployScriptParams{
		Domain:       "example.com",
		Webroot:      "/var/www/html",
		TemplateFile: "landing.html",
		CertType:     "acme",
		ServerIP:     "203.0.113.7",
	}
	script, err := RenderDeployScript(FlavorStandard, p)
	if err != nil {
		t.Fatalf("RenderDeployScript: %v", err)
	}

	for _, want := range []string{
		`DOMAIN="example.com"`,
		`TARGET_DIR="/var/www/html/example.com"`,
		`TEMPLATE_FILE_NAME="landing.html"`,
		`CERT_TYPE="acme"`,
		`SERVER_IP="203.0.113.7"`,
		// acme path and the self-signed fallback must both be present
		"--set-default-ca --server letsencrypt",
		"--issue -d $DOMAIN -w $TARGET_DIR",
		"openssl req -x509 -nodes -days 365",
		"证书类型是 自签名证书",
		"===== 部署完成 =====",
		"请添加以下DNS记录",
		"sites-available",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("standard script missing %q", want)
		}
	}
	if !strings.HasPrefix(script, "#!/bin/bash") {
		t.Error("script missing shebang")
	}
	if strings.Contains(script, "devil www add") {
		t.Error("standard script must not use devil commands")
	}
}

func TestRenderDeployScriptConstrained(t *testing.T) {
	p := DeployScriptParams{
		Domain:       "example.com",
		Webroot:      "/usr/home/user",
		TemplateFile: "landing.html",
		CertType:     "acme",
		ServerIP:     "128.204.223.76",
	}
	script, err := RenderDeployScript(FlavorConstrained, p)
	if err != nil {
		t.Fatalf("RenderDeployScript: %v", err)
	}

	for _, want := range []string{
		`DOMAIN="example.com"`,
		"devil www add $DOMAIN php",
		"devil ssl www add $SNI_IP le le $DOMAIN",
		"SNI_IP=$SNI_IP",
		"renew_cert_$DOMAIN.sh",
		"0 0 1 * *",
		"0 9 * * *",
		"=== 部署完成 ===",
		"请添加以下DNS记录",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("constrained script missing %q", want)
		}
	}
	// No self-signed fallback on shared hosting.
	if strings.Contains(script, "openssl req -x509") {
		t.Error("constrained script must not generate self-signed certificates")
	}
	if strings.Contains(script, "sites-available") {
		t.Error("constrained script must not touch nginx site configs")
	}
}

func TestRenderDeleteScript(t *testing.T) {
	p := DeleteScriptParams{
		Domain:   "example.com",
		Webroot:  "/var/www/html",
		ServerIP: "203.0.113.7",
		SNIIP:    "128.204.223.76",
	}
	script, err := RenderDeleteScript(p)
	if err != nil {
		t.Fatalf("RenderDeleteScript: %v", err)
	}

	for _, want := range []string{
		`WEBROOT_DIR="/var/www/html"`,
		`DOMAIN="example.com"`,
		`SNI_IP="128.204.223.76"`,
		"command -v devil",
		`devil ssl www del "${SNI_IP}" "${DOMAIN}"`,
		`devil www remove "${DOMAIN}"`,
		`sudo rm -rf "${TARGET_DIR}"`,
		"=== 部署已删除 ===",
		"请移除以下DNS记录",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("delete script missing %q", want)
		}
	}

	// Rendering must be deterministic.
	again, err := RenderDeleteScript(p)
	if err != nil {
		t.Fatalf("RenderDeleteScript second run: %v", err)
	}
	if script != again {
		t.Error("delete script rendering is not deterministic")
	}
}
