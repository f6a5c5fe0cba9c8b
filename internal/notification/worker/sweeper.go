package worker

import (
	"context"
	"fmt"
	"time"

	"helpdesk_backend/internal/notification/outbox"
	"helpdesk_backend/platform/logger"
	"helpdesk_backend/platform/metrics"
)

const (
	DefaultProcessingLease = 15 * time.Minute
	DefaultPendingTTL      = 7 * 24 * time.Hour
)

// SweepStore is the subset of the outbox repository the sweeper needs.
type SweepStore interface {
	RecoverStale(ctx context.Context, leaseCutoff, now time.Time, retryAt time.Time) (recovered, failed int, err error)
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper releases rows abandoned in PROCESSING by a crashed worker and
// expires PENDING rows that have waited too long.
type Sweeper struct {
	store      SweepStore
	log        *logger.Logger
	lease      time.Duration
	pendingTTL time.Duration
	backoff    Backoff
	now        func() time.Time
}

func NewSweeper(store SweepStore, log *logger.Logger, lease, pendingTTL time.Duration) *Sweeper {
	if lease <= 0 {
		lease = DefaultProcessingLease
	}
	if pendingTTL <= 0 {
		pendingTTL = DefaultPendingTTL
	}
	return &Sweeper{
		store:      store,
		log:        log,
		lease:      lease,
		pendingTTL: pendingTTL,
		backoff:    DefaultBackoff(),
		now:        time.Now,
	}
}

type SweepResult struct {
	Recovered int   `json:"recovered"`
	Failed    int   `json:"failed"`
	Expired   int64 `json:"expired"`
}

func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now()
	var result SweepResult

	recovered, failed, err := s.store.RecoverStale(ctx, now.Add(-s.lease), now, now.Add(s.backoff.Next(1)))
	if err != nil {
		return result, fmt.Errorf("recover stale notifications: %w", err)
	}
	result.Recovered, result.Failed = recovered, failed
	if failed > 0 {
		metrics.NotificationsTerminal.WithLabelValues(string(outbox.StatusFailed)).Add(float64(failed))
	}

	expired, err := s.store.ExpireStale(ctx, now.Add(-s.pendingTTL))
	if err != nil {
		return result, fmt.Errorf("expire stale notifications: %w", err)
	}
	result.Expired = expired
	if expired > 0 {
		metrics.NotificationsTerminal.WithLabelValues(string(outbox.StatusExpired)).Add(float64(expired))
	}

	if recovered+failed > 0 || expired > 0 {
		s.log.Info("outbox sweep finished", "recovered", recovered, "failed", failed, "expired", expired)
	}
	return result, nil
}
