package services

import (
	"regexp"
	"strings"
	"time"
)

// NginxStatus summarizes the nginx installation on a server.
type NginxStatus struct {
	Installed    bool   `json:"installed"`
	Running      bool   `json:"running"`
	Version      string `json:"version"`
	ConfigStatus string `json:"config_status"` // ok, error or unknown
}

var nginxVersionRE = regexp.MustCompile(`nginx/(\d+\.\d+\.\d+)`)

// CheckNginxStatus probes nginx over an existing session: version, process
// state and config syntax. Probe commands that fail are reported as the
// corresponding zero state, not as errors.
func CheckNginxStatus(session RemoteSession) (*NginxStatus, error) {
	status := &NginxStatus{ConfigStatus: "unknown"}

	version, err := session.Run(`nginx -v 2>&1 || echo "Nginx not found"`, 30*time.Second)
	if err != nil {
		return nil, err
	}
	combined := version.Stdout + version.Stderr
	if strings.Contains(combined, "not found") {
		return status, nil
	}
	status.Installed = true
	if m := nginxVersionRE.FindStringSubmatch(combined); m != nil {
		status.Version = m[1]
	}

	state, err := session.Run("systemctl status nginx || service nginx status || ps aux | grep nginx | grep -v grep", 30*time.Second)
	if err == nil {
		if strings.Contains(state.Stdout, "active (running)") ||
			strings.Contains(state.Stdout, "is running") ||
			strings.Contains(state.Stdout, "nginx: master process") {
			status.Running = true
		}
	}

	cfg, err := session.Run("nginx -t 2>&1", 30*time.Second)
	if err == nil {
		switch {
		case strings.Contains(cfg.Stdout, "syntax is ok") || strings.Contains(cfg.Stderr, "syntax is ok"):
			status.ConfigStatus = "ok"
		case cfg.Stderr != "" || cfg.ExitCode != 0:
			status.ConfigStatus = "error"
		}
	}

	return status, nil
}
