package services

import (
	"regexp"
	"strings"
	"time"
)

// successExitMarker appears in the session trailer written by script(1)
// when the wrapped command exits 0.
const successExitMarker = `COMMAND_EXIT_CODE="0"`

// completionPhrases signal that a deployment script ran to its end. Any one
// of them is enough; absence means the record must not be written even when
// the script exited 0.
var completionPhrases = []string{
	"部署完成",
	"===== 部署完成 =====",
	"[成功] ===== 部署完成 =====",
	"[信息] ===== 部署完成 =====",
	"Deployment completed",
	"网站现在可通过以下地址访问",
	"[成功] 网站现在可通过以下地址访问",
	"请添加以下DNS记录",
	"Script done",
	successExitMarker,
}

func hasCompletion(log string) bool {
	for _, phrase := range completionPhrases {
		if strings.Contains(log, phrase) {
			return true
		}
	}
	return false
}

// DeployFacts are the values a deployment script reports through its output.
type DeployFacts struct {
	CertType   string
	SNIIP      string
	CertExpiry string
}

var logLineSplit = regexp.MustCompile(`[\r\n]+`)

// extractFacts scans the deployment log line by line for the reported
// certificate type, SNI IP and certificate expiry. Later occurrences win.
func extractFacts(log, domain string) DeployFacts {
	var facts DeployFacts
	for _, line := range logLineSplit.Split(log, -1) {
		if idx := strings.Index(line, "证书类型是"); idx >= 0 {
			if v := strings.TrimSpace(line[idx+len("证书类型是"):]); v != "" {
				facts.CertType = v
			}
		}
		if idx := strings.Index(line, "SNI_IP="); idx >= 0 {
			if v := strings.TrimSpace(line[idx+len("SNI_IP="):]); v != "" {
				facts.SNIIP = v
			}
		}
		if strings.Contains(line, domain) && strings.Contains(line, "证书到期时间是") {
			idx := strings.Index(line, "证书到期时间是")
			raw := strings.TrimSpace(line[idx+len("证书到期时间是"):])
			facts.CertExpiry = parseExpiry(raw, facts.CertType)
		}
	}
	return facts
}

const opensslDateLayout = "Jan _2 15:04:05 2006 MST"

// parseExpiry normalizes the raw expiry text from openssl output to
// YYYY-MM-DD. Unavailable expiry on a self-signed certificate defaults to
// one year from now; anything unparseable is kept verbatim.
func parseExpiry(raw, certType string) string {
	if strings.Contains(raw, "无法获取证书信息") || strings.Contains(raw, "未知") {
		if certType == "自签名证书" {
			return time.Now().AddDate(1, 0, 0).Format("2006-01-02")
		}
		return ""
	}

	value := raw
	if idx := strings.Index(value, "notAfter="); idx >= 0 {
		value = strings.TrimSpace(value[idx+len("notAfter="):])
	}

	if t, err := time.Parse(opensslDateLayout, value); err == nil {
		return t.Format("2006-01-02")
	}
	return value
}
