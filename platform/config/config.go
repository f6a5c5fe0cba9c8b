// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultReportCron runs the organization reports once a day. Each run covers
// the previous UTC day, so the schedule must stay daily for full coverage.
const DefaultReportCron = "0 7 * * *"

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// OpsConfig provides the shared secret used by scheduler-triggered endpoints.
type OpsConfig interface {
	GetOpsCronSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq worker and periodic jobs.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetOutboxCron() string
	GetOutboxSweepCron() string
	GetSLAScanCron() string
	GetReportCron() string
}

// OutboxConfig provides tuning for the notification outbox worker.
type OutboxConfig interface {
	GetOutboxBatchSize() int
	GetOutboxProcessingLease() time.Duration
	GetOutboxPendingTTL() time.Duration
}

// SLAConfig provides the SLA monitor thresholds.
type SLAConfig interface {
	GetSLAWarningWindow() time.Duration
}

// EmailConfig provides platform-level email sender defaults.
// Organizations override these with their own channel settings.
type EmailConfig interface {
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetAppBaseURL() string
}

// SecurityConfig provides key material for encrypted organization secrets.
type SecurityConfig interface {
	GetSecretEncryptionKey() string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketReports() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	JWTAccessSecret       string
	OpsCronSecret         string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	AppBaseURL            string
	EmailFromName         string
	EmailFromAddress      string
	SecretEncryptionKey   string
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	OutboxCron            string
	OutboxSweepCron       string
	SLAScanCron           string
	ReportCron            string
	OutboxBatchSize       int
	OutboxProcessingLease time.Duration
	OutboxPendingTTL      time.Duration
	SLAWarningWindow      time.Duration
	MinIOEndpoint         string
	MinIOAccessKey        string
	MinIOSecretKey        string
	MinIOUseSSL           bool
	MinioBucketReports    string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// OpsConfig implementation
func (c *Config) GetOpsCronSecret() string { return c.OpsCronSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetOutboxCron() string      { return c.OutboxCron }
func (c *Config) GetOutboxSweepCron() string { return c.OutboxSweepCron }
func (c *Config) GetSLAScanCron() string     { return c.SLAScanCron }
func (c *Config) GetReportCron() string      { return c.ReportCron }

// OutboxConfig implementation
func (c *Config) GetOutboxBatchSize() int                 { return c.OutboxBatchSize }
func (c *Config) GetOutboxProcessingLease() time.Duration { return c.OutboxProcessingLease }
func (c *Config) GetOutboxPendingTTL() time.Duration      { return c.OutboxPendingTTL }

// SLAConfig implementation
func (c *Config) GetSLAWarningWindow() time.Duration { return c.SLAWarningWindow }

// EmailConfig implementation
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// SecurityConfig implementation
func (c *Config) GetSecretEncryptionKey() string { return c.SecretEncryptionKey }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string      { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string     { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string     { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool          { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketReports() string { return c.MinioBucketReports }
func (c *Config) IsMinIOEnabled() bool          { return c.MinIOEndpoint != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		OpsCronSecret:         getEnv("OPS_CRON_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:            getEnv("APP_BASE_URL", "http://localhost:4200"),
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "Helpdesk"),
		EmailFromAddress:      getEnv("EMAIL_FROM_ADDRESS", ""),
		SecretEncryptionKey:   getEnv("SECRET_ENCRYPTION_KEY", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10"), 10),
		OutboxCron:            getEnv("OUTBOX_CRON", "@every 1m"),
		OutboxSweepCron:       getEnv("OUTBOX_SWEEP_CRON", "*/10 * * * *"),
		SLAScanCron:           getEnv("SLA_SCAN_CRON", "*/15 * * * *"),
		ReportCron:            getEnv("REPORT_CRON", DefaultReportCron),
		OutboxBatchSize:       mustInt(getEnv("OUTBOX_BATCH_SIZE", "50"), 50),
		OutboxProcessingLease: mustDuration(getEnv("OUTBOX_PROCESSING_LEASE", "15m")),
		OutboxPendingTTL:      mustDuration(getEnv("OUTBOX_PENDING_TTL", "168h")),
		SLAWarningWindow:      mustDuration(getEnv("SLA_WARNING_WINDOW", "2h")),
		MinIOEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:           strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketReports:    getEnv("MINIO_BUCKET_REPORTS", "helpdesk-reports"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.OpsCronSecret == "" {
		return nil, fmt.Errorf("OPS_CRON_SECRET is required")
	}
	if cfg.SecretEncryptionKey != "" && len(cfg.SecretEncryptionKey) != 64 {
		return nil, fmt.Errorf("SECRET_ENCRYPTION_KEY must be 32 bytes hex-encoded")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.OutboxBatchSize <= 0 {
		cfg.OutboxBatchSize = 50
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string, fallback int) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
