package services

import (
	"bytes"
	"embed"
	"path"
	"text/template"

	"domainpanel/internal/apperr"
)

//go:embed scripts/*.sh.tmpl
var scriptFS embed.FS

var scriptTemplates = template.Must(template.ParseFS(scriptFS, "scripts/*.sh.tmpl"))

// DeployScriptParams fill the deployment script for one domain. TargetDir is
// derived from Webroot and Domain; on constrained hosts the script picks its
// own paths and ignores it.
type DeployScriptParams struct {
	Domain       string
	Webroot      string
	TemplateFile string
	CertType     string
	ServerIP     string
}

func (p DeployScriptParams) TargetDir() string {
	return path.Join(p.Webroot, p.Domain)
}

// RenderDeployScript produces the deployment script for the given flavor.
// Rendering is deterministic for identical inputs.
func RenderDeployScript(flavor Flavor, p DeployScriptParams) (string, error) {
	name := "deploy_standard.sh.tmpl"
	if flavor == FlavorConstrained {
		name = "deploy_constrained.sh.tmpl"
	}
	var buf bytes.Buffer
	if err := scriptTemplates.ExecuteTemplate(&buf, name, p); err != nil {
		return "", apperr.Internal("failed to render deploy script", err)
	}
	return buf.String(), nil
}

// DeleteScriptParams fill the unified delete script. The script detects the
// environment at runtime, so there is only one delete template.
type DeleteScriptParams struct {
	Domain   string
	Webroot  string
	ServerIP string
	SNIIP    string
}

func RenderDeleteScript(p DeleteScriptParams) (string, error) {
	var buf bytes.Buffer
	if err := scriptTemplates.ExecuteTemplate(&buf, "delete.sh.tmpl", p); err != nil {
		return "", apperr.Internal("failed to render delete script", err)
	}
	return buf.String(), nil
}
