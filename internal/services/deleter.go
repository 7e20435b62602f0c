package services

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"domainpanel/internal/apperr"
	"domainpanel/internal/crypto"
	"domainpanel/internal/models"
)

// DeleteResult reports a deletion run. Success requires both a clean script
// run and the double confirmation markers in the output; only then is the
// deployment record removed.
type DeleteResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	ScriptOutput      string `json:"scriptOutput"`
	ScriptError       string `json:"scriptError"`
	DeletionConfirmed bool   `json:"deletionConfirmed"`
}

// DeleteIdentity selects the deployment to remove. BCID wins when both are
// set.
type DeleteIdentity struct {
	BCID         string `json:"bcid"`
	DeploymentID string `json:"domainId"`
}

const (
	deletionDoneMarker = "=== 部署已删除 ==="
	dnsRemovalMarker   = "请移除以下DNS记录"
	deleteErrorMarker  = "[ERROR]"
)

// Deleter tears down a deployed domain on its server and, on confirmed
// success, removes the deployment record.
type Deleter struct {
	store          Store
	staging        *StagingStore
	enc            *crypto.Encryptor
	dial           Dialer
	connectTimeout time.Duration
	timeout        time.Duration
}

func NewDeleter(store Store, staging *StagingStore, enc *crypto.Encryptor, dial Dialer, connectTimeout, timeout time.Duration) *Deleter {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Deleter{store: store, staging: staging, enc: enc, dial: dial, connectTimeout: connectTimeout, timeout: timeout}
}

// Delete runs the unified delete script on the server that holds the
// deployment. The script detects the hosting flavor itself, so one script
// covers both standard and constrained servers.
func (d *Deleter) Delete(id DeleteIdentity) (*DeleteResult, error) {
	record, err := d.findRecord(id)
	if err != nil {
		return nil, err
	}

	server, err := d.resolveServer(record)
	if err != nil {
		return nil, err
	}

	webroot := server.Webroot
	if webroot == "" {
		webroot = "/var/www"
	}
	script, err := RenderDeleteScript(DeleteScriptParams{
		Domain:   record.DomainName,
		Webroot:  webroot,
		ServerIP: record.ServerIP,
		SNIIP:    record.SNIIP,
	})
	if err != nil {
		return nil, err
	}

	scriptName := fmt.Sprintf("delete_%s_%s.sh", sanitizeScriptName(record.DomainName), uuid.New().String())
	localScript := filepath.Join(d.staging.root, scriptName)
	if err := os.WriteFile(localScript, []byte(script), 0o755); err != nil {
		return nil, apperr.Internal("failed to write delete script", err)
	}
	defer os.Remove(localScript)

	target, err := BuildTarget(server, d.enc, d.connectTimeout)
	if err != nil {
		return nil, err
	}
	session, err := d.dial(*target)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	remoteScript := "/tmp/" + scriptName
	if err := session.Upload(localScript, remoteScript); err != nil {
		return nil, err
	}

	cmd := fmt.Sprintf("sudo bash %s %q", remoteScript, record.DomainName)
	res, err := session.Run(cmd, d.timeout)
	if err != nil {
		return nil, err
	}

	if _, err := session.Run("sudo rm -f "+remoteScript, time.Minute); err != nil {
		slog.Warn("failed to remove remote delete script", "path", remoteScript, "error", err)
	}

	success := res.ExitCode == 0 && !strings.Contains(res.Stderr, deleteErrorMarker)
	deploymentDeleted := strings.Contains(res.Stdout, deletionDoneMarker)
	dnsRemovalRequested := strings.Contains(res.Stdout, dnsRemovalMarker) || strings.Contains(res.Stderr, dnsRemovalMarker)
	confirmed := deploymentDeleted && dnsRemovalRequested

	result := &DeleteResult{
		Success:           success && confirmed,
		ScriptOutput:      res.Stdout,
		ScriptError:       res.Stderr,
		DeletionConfirmed: confirmed,
	}

	switch {
	case success && confirmed:
		result.Message = fmt.Sprintf("域名 %s 删除脚本执行成功，确认部署已被删除", record.DomainName)
		if err := d.store.DeleteDeployment(record.ID); err != nil {
			slog.Error("failed to remove deployment record", "domain", record.DomainName, "error", err)
		}
	case success:
		result.Message = fmt.Sprintf("域名 %s 删除脚本执行完成，但未确认部署已被删除 (退出码: %d)。", record.DomainName, res.ExitCode)
	default:
		result.Message = fmt.Sprintf("域名 %s 删除脚本执行完成，但存在问题 (退出码: %d)。请检查日志和脚本输出。", record.DomainName, res.ExitCode)
	}

	slog.Info("domain deletion finished",
		"domain", record.DomainName,
		"exitCode", res.ExitCode,
		"success", success,
		"confirmed", confirmed)
	return result, nil
}

func (d *Deleter) findRecord(id DeleteIdentity) (*models.Deployment, error) {
	if id.BCID == "" && id.DeploymentID == "" {
		return nil, apperr.Validation("bcid or domainId is required")
	}
	if id.BCID != "" {
		return d.store.DeploymentByBCID(id.BCID)
	}
	return d.store.DeploymentByID(id.DeploymentID)
}

// resolveServer finds the server a deployment lives on from the snapshot in
// the record. The stored ip/name may have gone stale, so exact match,
// substring match in either direction and name lookup are tried in order.
func (d *Deleter) resolveServer(record *models.Deployment) (*models.Server, error) {
	server, err := d.store.ServerByExact(record.ServerIP)
	if err == nil {
		return server, nil
	}
	if apperr.KindOf(err) != apperr.KindNotFound {
		return nil, err
	}

	all, err := d.store.Servers()
	if err != nil {
		return nil, err
	}
	for i := range all {
		s := &all[i]
		if fuzzyMatch(s.Host, record.ServerIP) ||
			fuzzyMatch(s.Name, record.ServerIP) ||
			fuzzyMatch(s.Hostname, record.ServerIP) {
			slog.Info("resolved server by fuzzy match", "server", s.Name, "recordedIp", record.ServerIP)
			return s, nil
		}
	}

	if record.ServerName != "" {
		if server, err := d.store.ServerByName(record.ServerName); err == nil {
			return server, nil
		}
	}

	return nil, apperr.Resolution(fmt.Sprintf(
		"no server matches recorded ip %q or name %q", record.ServerIP, record.ServerName))
}

func fuzzyMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

var scriptNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_]`)

func sanitizeScriptName(domain string) string {
	return scriptNameSanitizer.ReplaceAllString(domain, "_")
}
