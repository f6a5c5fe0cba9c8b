package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "helpdesk_backend/internal/http"
	"helpdesk_backend/internal/notification/worker"
	"helpdesk_backend/internal/sla"
	"helpdesk_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processorFunc func(context.Context) (worker.BatchResult, error)

func (f processorFunc) ProcessBatch(ctx context.Context) (worker.BatchResult, error) { return f(ctx) }

type scannerFunc func(context.Context) (sla.ScanResult, error)

func (f scannerFunc) Scan(ctx context.Context) (sla.ScanResult, error) { return f(ctx) }

func newEngine(jobs Jobs) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	ops := engine.Group("/api/v1/ops")
	NewModule(jobs, logger.Discard()).RegisterRoutes(&apphttp.RouterContext{Engine: engine, Ops: ops})
	return engine
}

func post(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	return rec
}

func TestProcessOutboxReturnsBatchResult(t *testing.T) {
	engine := newEngine(Jobs{Outbox: processorFunc(func(context.Context) (worker.BatchResult, error) {
		return worker.BatchResult{Selected: 3, Claimed: 2, Sent: 2}, nil
	})})

	rec := post(engine, "/api/v1/ops/outbox/process")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Job    string             `json:"job"`
		Result worker.BatchResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "outbox.process", resp.Job)
	assert.Equal(t, worker.BatchResult{Selected: 3, Claimed: 2, Sent: 2}, resp.Result)
}

func TestJobErrorsBecomeInternalErrors(t *testing.T) {
	engine := newEngine(Jobs{SLA: scannerFunc(func(context.Context) (sla.ScanResult, error) {
		return sla.ScanResult{}, errors.New("db down")
	})})

	rec := post(engine, "/api/v1/ops/sla/scan")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestUnconfiguredJobIsUnavailable(t *testing.T) {
	engine := newEngine(Jobs{})

	assert.Equal(t, http.StatusServiceUnavailable, post(engine, "/api/v1/ops/reports/run").Code)
	assert.Equal(t, http.StatusServiceUnavailable, post(engine, "/api/v1/ops/outbox/sweep").Code)
}
