package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/helpdesk")
	t.Setenv("JWT_ACCESS_SECRET", "access")
	t.Setenv("OPS_CRON_SECRET", "cron")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := fromEnv()
	require.NoError(t, err)
	require.Equal(t, 50, cfg.GetOutboxBatchSize())
	require.Equal(t, 15*time.Minute, cfg.GetOutboxProcessingLease())
	require.Equal(t, 2*time.Hour, cfg.GetSLAWarningWindow())
	require.False(t, cfg.IsMinIOEnabled())
}

func TestFromEnvRequiresCronSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OPS_CRON_SECRET", "")

	_, err := fromEnv()
	require.Error(t, err)
}

func TestFromEnvRejectsShortEncryptionKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SECRET_ENCRYPTION_KEY", "abcd")

	_, err := fromEnv()
	require.Error(t, err)
}

func TestFromEnvWildcardCORSConflictsWithCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")

	_, err := fromEnv()
	require.Error(t, err)
}
