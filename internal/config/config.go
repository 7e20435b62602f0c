package config

import (
	"os"
	"strconv"
)

type Config struct {
	// Server
	Port string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Auth (single user)
	AdminUsername    string
	AdminPassword    string
	AdminDisplayName string
	JWTSecret        string

	// SSH
	SSHEncryptionKey     string // 32-byte hex for AES-256-GCM
	SSHConnectTimeoutSec int

	// Deployment
	StagingDir        string
	StagingTTLMinutes int
	DeployTimeoutMin  int
}

func Load() *Config {
	connectTimeout, _ := strconv.Atoi(getEnv("SSH_CONNECT_TIMEOUT_SECONDS", "30"))
	stagingTTL, _ := strconv.Atoi(getEnv("STAGING_TTL_MINUTES", "60"))
	deployTimeout, _ := strconv.Atoi(getEnv("DEPLOY_TIMEOUT_MINUTES", "10"))
	return &Config{
		Port:                 getEnv("PORT", "8090"),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "5432"),
		DBUser:               getEnv("DB_USER", "postgres"),
		DBPassword:           getEnv("DB_PASSWORD", ""),
		DBName:               getEnv("DB_NAME", "domainpanel"),
		DBSSLMode:            getEnv("DB_SSLMODE", "disable"),
		AdminUsername:        getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:        getEnv("ADMIN_PASSWORD", ""),
		AdminDisplayName:     getEnv("ADMIN_DISPLAY_NAME", "Administrator"),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		SSHEncryptionKey:     getEnv("SSH_ENCRYPTION_KEY", ""),
		SSHConnectTimeoutSec: connectTimeout,
		StagingDir:           getEnv("STAGING_DIR", "temp"),
		StagingTTLMinutes:    stagingTTL,
		DeployTimeoutMin:     deployTimeout,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
