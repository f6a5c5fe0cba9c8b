package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk_backend/internal/notification/outbox"
	"helpdesk_backend/platform/logger"
)

type fakeSweepStore struct {
	leaseCutoff, now, retryAt, expireCutoff time.Time
}

func (f *fakeSweepStore) RecoverStale(_ context.Context, leaseCutoff, now, retryAt time.Time) (int, int, error) {
	f.leaseCutoff, f.now, f.retryAt = leaseCutoff, now, retryAt
	return 2, 1, nil
}

func (f *fakeSweepStore) ExpireStale(_ context.Context, cutoff time.Time) (int64, error) {
	f.expireCutoff = cutoff
	return 4, nil
}

func TestSweepUsesLeaseAndTTL(t *testing.T) {
	store := &fakeSweepStore{}
	s := NewSweeper(store, logger.Discard(), 0, 0)
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.backoff = noJitter()

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SweepResult{Recovered: 2, Failed: 1, Expired: 4}, res)
	assert.Equal(t, now.Add(-15*time.Minute), store.leaseCutoff)
	assert.Equal(t, now.Add(60*time.Second), store.retryAt)
	assert.Equal(t, now.Add(-7*24*time.Hour), store.expireCutoff)
}

func TestRequeuedOldRowKeepsItsRetryBudget(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := newMemStore()
	store.now = clk.Now

	old := clk.Now().Add(-8 * 24 * time.Hour)
	row := outbox.Notification{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		RecipientEmail: "a@example.com",
		Channel:        outbox.ChannelEmail,
		EventType:      "x",
		Status:         outbox.StatusFailed,
		RetryCount:     3,
		MaxRetries:     3,
		CreatedAt:      old,
		UpdatedAt:      old,
	}
	store.put(row)

	ok, err := store.Requeue(ctx, row.OrganizationID, row.ID)
	require.NoError(t, err)
	require.True(t, ok)

	w := newTestWorker(store, &fakeDispatcher{fail: errors.New("connection reset")}, fakeDirectory{}, nil, clk)
	_, err = w.ProcessBatch(ctx)
	require.NoError(t, err)

	s := NewSweeper(store, logger.Discard(), 0, 0)
	s.now = clk.Now
	clk.Advance(10 * time.Minute)
	res, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Expired)

	got := store.get(row.ID)
	assert.Equal(t, outbox.StatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)

	// Untouched for longer than the TTL after the requeue.
	clk.Advance(8 * 24 * time.Hour)
	res, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Expired)
	assert.Equal(t, outbox.StatusExpired, store.get(row.ID).Status)
}
