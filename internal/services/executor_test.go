package services

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"domainpanel/internal/apperr"
	"domainpanel/internal/models"
)

func stageDeployment(t *testing.T, store *fakeStore, staging *StagingStore, serverID, templateID, certType string) string {
	t.Helper()
	p := NewPreparer(store, staging)
	fileID, err := p.Prepare(PrepareRequest{
		DomainName: "example.com",
		ServerID:   serverID,
		TemplateID: templateID,
		CertType:   certType,
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return fileID
}

// standardDeployLog mimics a full script(1) session of a successful standard
// deployment.
func standardDeployLog() string {
	return strings.Join([]string{
		"[信息] 当前主机名: debian-web-1",
		"[信息] ===== 开始为 example.com 部署 =====",
		"[成功] acme.sh证书签发成功",
		"[信息] 证书类型是 Let's Encrypt",
		"example.com 证书到期时间是 notBefore=May  1 00:00:00 2025 GMT notAfter=Jul 30 23:59:59 2025 GMT",
		"[成功] ===== 部署完成 =====",
		"[成功] 网站现在可通过以下地址访问:",
		"[成功] https://example.com",
		`Script done on 2025-05-01 12:00:00 [COMMAND_EXIT_CODE="0"]`,
	}, "\n")
}

func constrainedDeployLog() string {
	return strings.Join([]string{
		"=== 开始为 example.com 部署 (serv00/hostuno环境) ===",
		"证书申请成功 example.com！",
		"证书类型是 Let's Encrypt",
		"example.com 证书到期时间是 notAfter=Jun 15 08:30:00 2025 GMT",
		"SNI_IP=128.204.223.76",
		"=== 部署完成 ===",
		`Script done on 2025-05-01 12:00:00 [COMMAND_EXIT_CODE="0"]`,
	}, "\n")
}

// deployHandler simulates a server where script(1) works and the full log
// has the given content.
func deployHandler(hostname, log string) func(string) (*CommandResult, error) {
	return func(cmd string) (*CommandResult, error) {
		switch {
		case cmd == "hostname":
			return &CommandResult{Stdout: hostname + "\n"}, nil
		case strings.Contains(cmd, "script -q -c"):
			return &CommandResult{}, nil
		case strings.HasPrefix(cmd, "cat ") && strings.Contains(cmd, "deploy_full.log"):
			return &CommandResult{Stdout: log}, nil
		}
		return &CommandResult{}, nil
	}
}

func TestExecuteStandardSuccess(t *testing.T) {
	enc := newTestEncryptor()
	server := testServer(enc, "203.0.113.7", "web-1", "")
	tmpl := testTemplate()
	store := &fakeStore{servers: []models.Server{server}, templates: []models.Template{tmpl}}
	staging := newTestStaging(t)
	fileID := stageDeployment(t, store, staging, server.ID.String(), tmpl.ID.String(), "acme")

	session := newFakeSession(deployHandler("debian-web-1", standardDeployLog()))
	ex := NewExecutor(store, staging, enc, fakeDialer(session), 0, time.Minute)

	res, err := ex.Execute(fileID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success || !res.HasCompletionMessage {
		t.Fatalf("result = %+v, want success with completion", res)
	}
	if res.Message != "部署成功" {
		t.Errorf("message = %q", res.Message)
	}

	// Record written with extracted facts.
	rec, err := store.DeploymentByDomain("example.com")
	if err != nil {
		t.Fatalf("deployment record missing: %v", err)
	}
	if rec.CertType != "Let's Encrypt" {
		t.Errorf("cert type = %q, want Let's Encrypt", rec.CertType)
	}
	if rec.CertExpiryDate != "2025-07-30" {
		t.Errorf("cert expiry = %q, want 2025-07-30", rec.CertExpiryDate)
	}
	if rec.SNIIP != "" {
		t.Errorf("sni ip = %q, want empty", rec.SNIIP)
	}
	if rec.Status != "在线" || rec.BCID == "" {
		t.Errorf("record = %+v, want online status and a bcid", rec)
	}

	// Uploads, remote cleanup, staging removal and local log.
	if _, ok := session.uploads["/var/www/html/example.com/deploy.sh"]; !ok {
		t.Error("deploy script was not uploaded")
	}
	if _, ok := session.uploads["/var/www/html/example.com/landing.html"]; !ok {
		t.Error("template was not uploaded")
	}
	if !session.ran("rm -f /var/www/html/example.com/deploy.sh") {
		t.Error("remote cleanup did not run")
	}
	if !session.closed {
		t.Error("session was not closed")
	}
	if staging.Exists(fileID) {
		t.Error("staging dir not removed after execution")
	}
	if _, err := os.Stat(staging.LogPath(fileID)); err != nil {
		t.Errorf("local deploy log missing: %v", err)
	}
}

func TestExecuteConstrainedSuccess(t *testing.T) {
	enc := newTestEncryptor()
	server := testServer(enc, "s16.serv00.com", "shared-1", "")
	server.Webroot = "/usr/home/deploy/domains"
	tmpl := testTemplate()
	store := &fakeStore{servers: []models.Server{server}, templates: []models.Template{tmpl}}
	staging := newTestStaging(t)
	fileID := stageDeployment(t, store, staging, server.ID.String(), tmpl.ID.String(), "acme")

	session := newFakeSession(deployHandler("s16.serv00.com", constrainedDeployLog()))
	ex := NewExecutor(store, staging, enc, fakeDialer(session), 0, time.Minute)

	res, err := ex.Execute(fileID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}

	rec, err := store.DeploymentByDomain("example.com")
	if err != nil {
		t.Fatalf("deployment record missing: %v", err)
	}
	if rec.SNIIP != "128.204.223.76" {
		t.Errorf("sni ip = %q, want 128.204.223.76", rec.SNIIP)
	}
	if rec.CertExpiryDate != "2025-06-15" {
		t.Errorf("cert expiry = %q, want 2025-06-15", rec.CertExpiryDate)
	}

	// The probed hostname is persisted on the server record.
	if store.servers[0].Hostname != "s16.serv00.com" {
		t.Errorf("server hostname = %q, want probed value", store.servers[0].Hostname)
	}
}

func TestExecuteRegeneratesScriptAfterHostnameProbe(t *testing.T) {
	enc := newTestEncryptor()
	// Stored as a plain IP, so static classification stages the standard
	// script. The live hostname reveals constrained hosting.
	server := testServer(enc, "128.204.223.76", "mislabeled", "")
	tmpl := testTemplate()
	store := &fakeStore{servers: []models.Server{server}, templates: []models.Template{tmpl}}
	staging := newTestStaging(t)
	fileID := stageDeployment(t, store, staging, server.ID.String(), tmpl.ID.String(), "acme")

	session := newFakeSession(deployHandler("s16.serv00.com", constrainedDeployLog()))
	ex := NewExecutor(store, staging, enc, fakeDialer(session), 0, time.Minute)

	if _, err := ex.Execute(fileID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	uploaded, ok := session.uploads["/var/www/html/example.com/deploy.sh"]
	if !ok {
		t.Fatal("deploy script was not uploaded")
	}
	if !strings.Contains(uploaded, "devil www add") {
		t.Error("uploaded script was not regenerated for constrained hosting")
	}
}

func TestExecuteScriptFailure(t *testing.T) {
	enc := newTestEncryptor()
	server := testServer(enc, "203.0.113.7", "web-1", "")
	tmpl := testTemplate()
	store := &fakeStore{servers: []models.Server{server}, templates: []models.Template{tmpl}}
	staging := newTestStaging(t)
	fileID := stageDeployment(t, store, staging, server.ID.String(), tmpl.ID.String(), "acme")

	failLog := "[错误] Nginx安装失败，请在运行此脚本前手动安装"
	session := newFakeSession(func(cmd string) (*CommandResult, error) {
		switch {
		case cmd == "hostname":
			return &CommandResult{Stdout: "debian-web-1\n"}, nil
		case strings.Contains(cmd, "script -q -c"):
			return &CommandResult{ExitCode: 1}, nil
		case strings.Contains(cmd, "> /var/www/html/example.com/deploy.log"):
			return &CommandResult{ExitCode: 1}, nil
		case strings.HasPrefix(cmd, "cat ") && strings.Contains(cmd, "deploy.log"):
			return &CommandResult{Stdout: failLog}, nil
		}
		return &CommandResult{}, nil
	})
	ex := NewExecutor(store, staging, enc, fakeDialer(session), 0, time.Minute)

	res, err := ex.Execute(fileID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Success {
		t.Error("failed deployment reported success")
	}
	if _, err := store.DeploymentByDomain("example.com"); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("failed deployment must not write a record")
	}
	if !strings.Contains(res.Output, "Nginx安装失败") {
		t.Error("failure output not propagated")
	}
}

func TestExecuteErrorLinesDoNotFlipSuccess(t *testing.T) {
	enc := newTestEncryptor()
	server := testServer(enc, "203.0.113.7", "web-1", "")
	tmpl := testTemplate()
	store := &fakeStore{servers: []models.Server{server}, templates: []models.Template{tmpl}}
	staging := newTestStaging(t)
	fileID := stageDeployment(t, store, staging, server.ID.String(), tmpl.ID.String(), "acme")

	// The log carries error lines from a recoverable acme fallback, but the
	// run exits 0 with the success trailer. That counts as success.
	log := strings.Join([]string{
		"[错误] example.com 的acme.sh证书签发失败，退出代码: 1",
		"[警告] 将为 example.com 回退到自签名证书",
		"[信息] 证书类型是 自签名证书",
		"example.com 证书到期时间是 无法获取证书信息",
		"[成功] ===== 部署完成 =====",
		`Script done [COMMAND_EXIT_CODE="0"]`,
	}, "\n")
	session := newFakeSession(deployHandler("debian-web-1", log))
	ex := NewExecutor(store, staging, enc, fakeDialer(session), 0, time.Minute)

	res, err := ex.Execute(fileID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success {
		t.Fatal("error lines in the log must not flip a successful exit")
	}

	rec, err := store.DeploymentByDomain("example.com")
	if err != nil {
		t.Fatalf("deployment record missing: %v", err)
	}
	if rec.CertType != "自签名证书" {
		t.Errorf("cert type = %q, want 自签名证书", rec.CertType)
	}
	// Self-signed with unknown expiry defaults to one year out.
	want := time.Now().AddDate(1, 0, 0).Format("2006-01-02")
	if rec.CertExpiryDate != want {
		t.Errorf("cert expiry = %q, want %q", rec.CertExpiryDate, want)
	}
}

func TestExecuteRedeployKeepsOneRecordPerDomain(t *testing.T) {
	enc := newTestEncryptor()
	server := testServer(enc, "203.0.113.7", "web-1", "")
	tmpl := testTemplate()
	store := &fakeStore{servers: []models.Server{server}, templates: []models.Template{tmpl}}
	staging := newTestStaging(t)

	run := func() models.Deployment {
		fileID := stageDeployment(t, store, staging, server.ID.String(), tmpl.ID.String(), "acme")
		session := newFakeSession(deployHandler("debian-web-1", standardDeployLog()))
		ex := NewExecutor(store, staging, enc, fakeDialer(session), 0, time.Minute)
		if _, err := ex.Execute(fileID); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		rec, err := store.DeploymentByDomain("example.com")
		if err != nil {
			t.Fatalf("deployment record missing: %v", err)
		}
		return *rec
	}

	first := run()

	// Same domain, server moved to a new address: last write wins.
	store.servers[0].Host = "198.51.100.9"
	second := run()

	if len(store.deployments) != 1 {
		t.Fatalf("deployments = %d, want 1 (domain is the natural key)", len(store.deployments))
	}
	if first.BCID == second.BCID {
		t.Error("redeploy must issue a fresh bcid")
	}
	if second.ServerIP != "198.51.100.9" {
		t.Errorf("server ip = %q, want the latest deployment's 198.51.100.9", second.ServerIP)
	}
}

func TestExecuteExpiredStaging(t *testing.T) {
	enc := newTestEncryptor()
	store := &fakeStore{}
	staging := newTestStaging(t)

	dialed := false
	ex := NewExecutor(store, staging, enc, func(Target) (RemoteSession, error) {
		dialed = true
		return nil, nil
	}, 0, time.Minute)

	_, err := ex.Execute("never-staged")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("got %v, want not-found error", err)
	}
	if dialed {
		t.Error("must not dial when staging is missing")
	}
}

func TestExecuteRejectsNonUUIDFileID(t *testing.T) {
	enc := newTestEncryptor()
	store := &fakeStore{}
	staging := newTestStaging(t)

	dialed := false
	ex := NewExecutor(store, staging, enc, func(Target) (RemoteSession, error) {
		dialed = true
		return nil, nil
	}, 0, time.Minute)

	for _, id := range []string{"../../etc/passwd", "..", "x/y", "not-a-uuid"} {
		if _, err := ex.Execute(id); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Execute(%q) = %v, want not-found error", id, err)
		}
	}
	if dialed {
		t.Error("must not dial for a malformed fileId")
	}
}

func TestExecuteConnectTimeoutReachesDialer(t *testing.T) {
	enc := newTestEncryptor()
	server := testServer(enc, "203.0.113.7", "web-1", "")
	tmpl := testTemplate()
	store := &fakeStore{servers: []models.Server{server}, templates: []models.Template{tmpl}}
	staging := newTestStaging(t)
	fileID := stageDeployment(t, store, staging, server.ID.String(), tmpl.ID.String(), "acme")

	session := newFakeSession(deployHandler("debian-web-1", standardDeployLog()))
	var dialed Target
	dial := func(tg Target) (RemoteSession, error) {
		dialed = tg
		return session, nil
	}
	ex := NewExecutor(store, staging, enc, dial, 5*time.Second, time.Minute)

	if _, err := ex.Execute(fileID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if dialed.ConnectTimeout != 5*time.Second {
		t.Errorf("dialed connect timeout = %v, want 5s", dialed.ConnectTimeout)
	}
}

func TestExecuteConnectionFailure(t *testing.T) {
	enc := newTestEncryptor()
	server := testServer(enc, "203.0.113.7", "web-1", "")
	tmpl := testTemplate()
	store := &fakeStore{servers: []models.Server{server}, templates: []models.Template{tmpl}}
	staging := newTestStaging(t)
	fileID := stageDeployment(t, store, staging, server.ID.String(), tmpl.ID.String(), "acme")

	ex := NewExecutor(store, staging, enc, func(Target) (RemoteSession, error) {
		return nil, apperr.Connection("failed to connect", nil)
	}, 0, time.Minute)

	_, err := ex.Execute(fileID)
	if !errors.Is(err, apperr.ErrConnection) {
		t.Errorf("got %v, want connection error", err)
	}
}
