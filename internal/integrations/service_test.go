package integrations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk_backend/platform/logger"
)

type fakeConfigs map[Provider]Config

func (f fakeConfigs) GetEnabled(_ context.Context, _ uuid.UUID, p Provider) (Config, error) {
	cfg, ok := f[p]
	if !ok {
		return Config{}, ErrNotEnabled
	}
	return cfg, nil
}

type fakeLogs struct {
	started  []LogEntry
	finished []LogCompletion
}

func (f *fakeLogs) Start(_ context.Context, e LogEntry) (uuid.UUID, error) {
	f.started = append(f.started, e)
	return uuid.New(), nil
}

func (f *fakeLogs) Finish(_ context.Context, _ uuid.UUID, c LogCompletion) error {
	f.finished = append(f.finished, c)
	return nil
}

type stubAdapter struct {
	outcome Outcome
	err     error
}

func (stubAdapter) Provider() Provider { return ProviderTypebot }

func (s stubAdapter) Execute(context.Context, *Client, Config, Request) (Outcome, error) {
	return s.outcome, s.err
}

func newTestService(configs fakeConfigs, logs *fakeLogs, adapter Adapter) *Service {
	svc := NewService(configs, logs, testClient(), logger.Discard())
	svc.adapters = map[Provider]Adapter{adapter.Provider(): adapter}
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		tick = tick.Add(250 * time.Millisecond)
		return tick
	}
	return svc
}

func TestTriggerNotEnabledWritesNoLog(t *testing.T) {
	logs := &fakeLogs{}
	svc := newTestService(fakeConfigs{}, logs, stubAdapter{})

	_, err := svc.Trigger(context.Background(), uuid.New(), ProviderTypebot, Request{Ticket: testTicket()})
	assert.ErrorIs(t, err, ErrNotEnabled)
	assert.Empty(t, logs.started)
}

func TestTriggerSuccessClosesLog(t *testing.T) {
	logs := &fakeLogs{}
	svc := newTestService(fakeConfigs{ProviderTypebot: {Provider: ProviderTypebot}}, logs, stubAdapter{
		outcome: Outcome{ExternalID: "s-1", Response: map[string]any{"sessionId": "s-1"}},
	})

	out, err := svc.Trigger(context.Background(), uuid.New(), ProviderTypebot, Request{Ticket: testTicket(), WorkflowName: "Urgent"})
	require.NoError(t, err)

	assert.Equal(t, "s-1", out.ExternalID)
	require.Len(t, logs.started, 1)
	assert.Equal(t, ActionTrigger, logs.started[0].Action)
	require.Len(t, logs.finished, 1)
	assert.Equal(t, LogSuccess, logs.finished[0].Status)
	assert.Equal(t, 250*time.Millisecond, logs.finished[0].Duration)
}

func TestTriggerFailureRecordsRedactedError(t *testing.T) {
	logs := &fakeLogs{}
	svc := newTestService(fakeConfigs{ProviderTypebot: {Provider: ProviderTypebot}}, logs, stubAdapter{
		err: errors.New("unauthorized: Bearer tb_live_abcdef"),
	})

	_, err := svc.Trigger(context.Background(), uuid.New(), ProviderTypebot, Request{Ticket: testTicket()})
	require.Error(t, err)

	require.Len(t, logs.finished, 1)
	assert.Equal(t, LogFailed, logs.finished[0].Status)
	assert.NotContains(t, logs.finished[0].Error, "tb_live_abcdef")
}
