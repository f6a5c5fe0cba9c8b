package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithContextAddsKnownKeys(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter("production", &buf)

	ctx := context.WithValue(context.Background(), OrganizationIDKey, "org-1")
	ctx = context.WithValue(ctx, TaskIDKey, "task-9")
	log.WithContext(ctx).Info("hello")

	out := buf.String()
	require.Contains(t, out, `"organization_id":"org-1"`)
	require.Contains(t, out, `"task_id":"task-9"`)
	require.NotContains(t, out, "request_id")
}

func TestDeliveryAttemptFailureIncludesError(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter("production", &buf)

	log.DeliveryAttempt("EMAIL", "SMTP", "n-1", false, "dial tcp: refused")

	require.Contains(t, buf.String(), `"level":"WARN"`)
	require.Contains(t, buf.String(), "dial tcp: refused")
}
