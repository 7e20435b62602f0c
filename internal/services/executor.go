package services

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"domainpanel/internal/apperr"
	"domainpanel/internal/crypto"
	"domainpanel/internal/models"
)

// ExecuteResult is what a deployment run reports back to the caller. Success
// means the script exited 0 and the session log carries the success exit
// marker; HasCompletionMessage additionally gates whether a deployment
// record was written.
type ExecuteResult struct {
	Success              bool   `json:"success"`
	HasCompletionMessage bool   `json:"hasCompletionMessage"`
	Message              string `json:"message"`
	Output               string `json:"output"`
	LogFile              string `json:"logFile"`
}

// Executor runs a staged deployment on its target server.
type Executor struct {
	store          Store
	staging        *StagingStore
	enc            *crypto.Encryptor
	dial           Dialer
	connectTimeout time.Duration
	deployTimeout  time.Duration
}

func NewExecutor(store Store, staging *StagingStore, enc *crypto.Encryptor, dial Dialer, connectTimeout, deployTimeout time.Duration) *Executor {
	if deployTimeout <= 0 {
		deployTimeout = 10 * time.Minute
	}
	return &Executor{store: store, staging: staging, enc: enc, dial: dial, connectTimeout: connectTimeout, deployTimeout: deployTimeout}
}

// Execute uploads the staged files to the server and runs the deployment
// script, climbing down a capture ladder until it has usable output:
// script(1) session recording first, then plain redirection, then direct
// execution. The local log copy is written in every case, including
// mid-flight transport failures.
func (e *Executor) Execute(fileID string) (*ExecuteResult, error) {
	cfg, err := loadStagedConfig(e.staging, fileID)
	if err != nil {
		return nil, err
	}
	dir := e.staging.Dir(fileID)
	domain := cfg.Domain.Name

	target, server, err := e.resolveTarget(cfg)
	if err != nil {
		return nil, err
	}

	session, err := e.dial(*target)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	scriptPath := filepath.Join(dir, "deploy.sh")
	if err := e.reconcileFlavor(session, cfg, scriptPath, server); err != nil {
		slog.Warn("hostname probe failed, keeping staged script", "fileId", fileID, "error", err)
	}

	targetDir := path.Join(cfg.Server.Webroot, domain)
	remoteScript := targetDir + "/deploy.sh"

	var output, errOutput string
	salvage := func(runErr error) (*ExecuteResult, error) {
		e.salvageRemoteLogs(session, targetDir, &output, &errOutput)
		logFile := e.writeLocalLog(fileID, output, errOutput)
		e.cleanupRemote(session, remoteScript, targetDir)
		e.staging.Remove(fileID)
		return &ExecuteResult{
			Success: false,
			Message: "部署脚本执行失败",
			Output:  output,
			LogFile: logFile,
		}, runErr
	}

	if _, err := session.Run(fmt.Sprintf("mkdir -p %s", targetDir), time.Minute); err != nil {
		return salvage(apperr.Wrap(apperr.KindCommand, "failed to create target directory", err))
	}
	if err := session.Upload(filepath.Join(dir, cfg.Template.Filename), targetDir+"/"+cfg.Template.Filename); err != nil {
		return salvage(err)
	}
	if err := session.Upload(scriptPath, remoteScript); err != nil {
		return salvage(err)
	}
	if _, err := session.Run(fmt.Sprintf("chmod +x %s", remoteScript), time.Minute); err != nil {
		return salvage(apperr.Wrap(apperr.KindCommand, "failed to set script permissions", err))
	}

	exitCode, runErr := e.runWithCapture(session, targetDir, &output, &errOutput)
	if runErr != nil {
		return salvage(runErr)
	}

	logFile := e.writeLocalLog(fileID, output, errOutput)
	e.cleanupRemote(session, remoteScript, targetDir)
	e.staging.Remove(fileID)

	// The script may log error lines on its way to success; only the exit
	// code and the session trailer decide.
	deploySuccess := exitCode == 0 && strings.Contains(output, successExitMarker)
	slog.Info("deployment finished",
		"fileId", fileID,
		"domain", domain,
		"exitCode", exitCode,
		"success", deploySuccess)

	if !deploySuccess {
		return &ExecuteResult{
			Success: false,
			Message: "部署脚本执行失败",
			Output:  output,
			LogFile: logFile,
		}, nil
	}

	if !hasCompletion(output) {
		return &ExecuteResult{
			Success:              true,
			HasCompletionMessage: false,
			Message:              "部署可能已执行，但未收到完成消息",
			Output:               output,
			LogFile:              logFile,
		}, nil
	}

	facts := extractFacts(output, domain)
	if err := e.recordDeployment(cfg, facts); err != nil {
		slog.Error("failed to record deployment", "domain", domain, "error", err)
	}

	return &ExecuteResult{
		Success:              true,
		HasCompletionMessage: true,
		Message:              "部署成功",
		Output:               output,
		LogFile:              logFile,
	}, nil
}

// resolveTarget re-reads the server from the database so stale staged data
// never supplies credentials or an outdated address.
func (e *Executor) resolveTarget(cfg *StagedConfig) (*Target, *models.Server, error) {
	server, err := e.store.ServerByID(cfg.Server.ID)
	if err != nil {
		return nil, nil, err
	}
	if server.Host == "" {
		return nil, nil, apperr.Validation(fmt.Sprintf("server %s has no address; update it before deploying", server.Name))
	}

	target, err := BuildTarget(server, e.enc, e.connectTimeout)
	if err != nil {
		return nil, nil, err
	}

	// Keep the staged view current for script regeneration and recording.
	cfg.Server.IP = server.Host
	cfg.Server.Port = server.Port
	cfg.Server.Username = server.Username
	cfg.Server.Name = server.Name
	if server.Webroot != "" {
		cfg.Server.Webroot = server.Webroot
	}
	return target, server, nil
}

// reconcileFlavor probes the live hostname and regenerates the staged script
// when the static classification got it wrong.
func (e *Executor) reconcileFlavor(session RemoteSession, cfg *StagedConfig, scriptPath string, server *models.Server) error {
	res, err := session.Run("hostname", 30*time.Second)
	if err != nil {
		return err
	}
	hostname := strings.TrimSpace(res.Stdout)
	if hostname == "" {
		return nil
	}
	cfg.Server.Hostname = hostname
	if server.Hostname != hostname {
		server.Hostname = hostname
		if err := e.store.SaveServerHostname(server.ID, hostname); err != nil {
			slog.Warn("failed to persist probed hostname", "server", server.Name, "error", err)
		}
	}

	liveFlavor := ClassifyHostname(hostname)
	staged, err := os.ReadFile(scriptPath)
	if err != nil {
		return apperr.Internal("staged deploy script missing", err)
	}
	stagedConstrained := strings.Contains(string(staged), "devil www add")

	if (liveFlavor == FlavorConstrained) == stagedConstrained {
		return nil
	}

	slog.Info("rebuilding deploy script after hostname probe",
		"hostname", hostname,
		"flavor", liveFlavor)
	script, err := RenderDeployScript(liveFlavor, DeployScriptParams{
		Domain:       cfg.Domain.Name,
		Webroot:      cfg.Server.Webroot,
		TemplateFile: cfg.Template.Filename,
		CertType:     cfg.Certificate.Type,
		ServerIP:     cfg.Server.IP,
	})
	if err != nil {
		return err
	}
	cfg.Flavor = liveFlavor
	return os.WriteFile(scriptPath, []byte(script), 0o755)
}

// runWithCapture climbs the capture ladder and always reads output back.
// Returns the exit code of whichever run produced the output.
func (e *Executor) runWithCapture(session RemoteSession, targetDir string, output, errOutput *string) (int, error) {
	fullLog := targetDir + "/deploy_full.log"
	scriptCmd := fmt.Sprintf(`cd %s && script -q -c "bash ./deploy.sh" -f %s`, targetDir, fullLog)

	res, err := session.Run(scriptCmd, e.deployTimeout)
	if err != nil {
		return 0, err
	}

	if res.ExitCode != 0 {
		// script(1) unavailable or failed; fall back to plain redirection.
		plainLog := targetDir + "/deploy.log"
		fallback, err := session.Run(fmt.Sprintf("cd %s && bash ./deploy.sh > %s 2>&1", targetDir, plainLog), e.deployTimeout)
		if err != nil {
			return 0, err
		}
		logRes, err := session.Run("cat "+plainLog, time.Minute)
		if err != nil {
			return 0, err
		}
		*output = logRes.Stdout
		*errOutput = logRes.Stderr
		if strings.TrimSpace(*output) == "" {
			return e.runDirect(session, targetDir, output, errOutput)
		}
		return fallback.ExitCode, nil
	}

	logRes, err := session.Run("cat "+fullLog, time.Minute)
	if err != nil {
		return 0, err
	}
	*output = logRes.Stdout
	*errOutput = logRes.Stderr
	if strings.TrimSpace(*output) == "" {
		return e.runDirect(session, targetDir, output, errOutput)
	}
	return res.ExitCode, nil
}

// runDirect is the last rung of the ladder: run the script again and take
// the session's own stdout/stderr.
func (e *Executor) runDirect(session RemoteSession, targetDir string, output, errOutput *string) (int, error) {
	direct, err := session.Run(fmt.Sprintf("cd %s && bash ./deploy.sh", targetDir), e.deployTimeout)
	if err != nil {
		return 0, err
	}
	*output = direct.Stdout
	*errOutput = direct.Stderr
	return direct.ExitCode, nil
}

// salvageRemoteLogs tries to recover whatever log files a failed run left
// behind so the local copy is as complete as possible.
func (e *Executor) salvageRemoteLogs(session RemoteSession, targetDir string, output, errOutput *string) {
	for _, candidate := range []string{targetDir + "/deploy_full.log", targetDir + "/deploy.log"} {
		res, err := session.Run("cat "+candidate, time.Minute)
		if err != nil {
			continue
		}
		if strings.TrimSpace(res.Stdout) != "" {
			if *output != "" {
				*output += "\n"
			}
			*output += fmt.Sprintf("=== 来自 %s 的日志 ===\n%s", candidate, res.Stdout)
		}
		if strings.TrimSpace(res.Stderr) != "" {
			if *errOutput != "" {
				*errOutput += "\n"
			}
			*errOutput += fmt.Sprintf("=== 来自 %s 的标准错误 ===\n%s", candidate, res.Stderr)
		}
	}
}

// writeLocalLog persists the captured output next to the staging dirs and
// returns the log file's base name.
func (e *Executor) writeLocalLog(fileID, output, errOutput string) string {
	content := output
	if errOutput != "" {
		content += "\n=== STDERR ===\n" + errOutput
	}
	logPath := e.staging.LogPath(fileID)
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		slog.Error("failed to write local deploy log", "path", logPath, "error", err)
		return ""
	}
	return filepath.Base(logPath)
}

func (e *Executor) cleanupRemote(session RemoteSession, remoteScript, targetDir string) {
	cmd := fmt.Sprintf("rm -f %s %s/deploy.log %s/deploy_full.log", remoteScript, targetDir, targetDir)
	if _, err := session.Run(cmd, time.Minute); err != nil {
		slog.Warn("failed to clean up remote deploy files", "error", err)
	}
}

// recordDeployment upserts the deployment record keyed by domain name. A
// fresh bcid is issued on every write.
func (e *Executor) recordDeployment(cfg *StagedConfig, facts DeployFacts) error {
	certType := facts.CertType
	if certType == "" {
		switch cfg.Certificate.Type {
		case "acme", "lets_encrypt":
			certType = "Let's Encrypt"
		default:
			certType = cfg.Certificate.Type
		}
	}

	record := models.Deployment{
		DomainName:     cfg.Domain.Name,
		ServerName:     cfg.Server.Name,
		ServerIP:       cfg.Server.IP,
		SNIIP:          facts.SNIIP,
		CertExpiryDate: facts.CertExpiry,
		CertType:       certType,
		TemplateName:   cfg.Template.Name,
		DeployDate:     time.Now(),
		Status:         "在线",
		Notes:          "自动部署",
		BCID:           uuid.New().String(),
	}

	existing, err := e.store.DeploymentByDomain(record.DomainName)
	switch {
	case err == nil:
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	case apperr.KindOf(err) == apperr.KindNotFound:
		// first deployment of this domain
	default:
		return err
	}
	return e.store.SaveDeployment(&record)
}
