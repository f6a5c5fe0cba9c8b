package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"helpdesk_backend/internal/notification/outbox"
)

// memStore mirrors the conditional updates of the outbox repository.
type memStore struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*outbox.Notification
	seq   time.Time
	claim int
	// now stamps UpdatedAt; nil keeps the insert sequence clock.
	now func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		rows: map[uuid.UUID]*outbox.Notification{},
		seq:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) Insert(_ context.Context, p outbox.InsertParams) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = s.seq.Add(time.Second)
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = outbox.DefaultMaxRetries
	}
	n := &outbox.Notification{
		ID:             uuid.New(),
		OrganizationID: p.OrganizationID,
		TicketID:       p.TicketID,
		RecipientID:    p.RecipientID,
		RecipientEmail: p.RecipientEmail,
		RecipientPhone: p.RecipientPhone,
		Channel:        p.Channel,
		EventType:      p.EventType,
		Subject:        p.Subject,
		Body:           p.Body,
		TemplateData:   p.TemplateData,
		Status:         outbox.StatusPending,
		MaxRetries:     maxRetries,
		CreatedAt:      s.seq,
		UpdatedAt:      s.seq,
	}
	s.rows[n.ID] = n
	return n.ID, nil
}

func (s *memStore) InsertMany(ctx context.Context, params []outbox.InsertParams) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(params))
	for _, p := range params {
		id, err := s.Insert(ctx, p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memStore) get(id uuid.UUID) outbox.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.rows[id]
}

func (s *memStore) ListDue(_ context.Context, now time.Time, limit int) ([]outbox.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []outbox.Notification
	for _, n := range s.rows {
		if n.Status != outbox.StatusPending {
			continue
		}
		if n.NextRetryAt != nil && n.NextRetryAt.After(now) {
			continue
		}
		due = append(due, *n)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *memStore) stamp() time.Time {
	if s.now != nil {
		return s.now()
	}
	return s.seq
}

func (s *memStore) Claim(_ context.Context, id uuid.UUID) (outbox.Notification, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok || n.Status != outbox.StatusPending {
		return outbox.Notification{}, false, nil
	}
	n.Status = outbox.StatusProcessing
	n.UpdatedAt = s.stamp()
	s.claim++
	return *n, true, nil
}

func (s *memStore) Requeue(_ context.Context, organizationID, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok || n.OrganizationID != organizationID {
		return false, nil
	}
	switch n.Status {
	case outbox.StatusPending, outbox.StatusFailed, outbox.StatusCancelled, outbox.StatusExpired:
	default:
		return false, nil
	}
	n.Status = outbox.StatusPending
	n.RetryCount = 0
	n.NextRetryAt = nil
	n.ErrorMessage = ""
	n.FailedAt = nil
	n.UpdatedAt = s.stamp()
	return true, nil
}

func (s *memStore) RecoverStale(_ context.Context, leaseCutoff, now, retryAt time.Time) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var recovered, failed int
	for _, n := range s.rows {
		if n.Status != outbox.StatusProcessing || !n.UpdatedAt.Before(leaseCutoff) {
			continue
		}
		n.RetryCount++
		n.ErrorMessage = "processing lease expired"
		n.UpdatedAt = s.stamp()
		if n.RetryCount >= n.MaxRetries {
			n.Status = outbox.StatusFailed
			n.FailedAt = &now
			n.NextRetryAt = nil
			failed++
			continue
		}
		n.Status = outbox.StatusPending
		n.NextRetryAt = &retryAt
		recovered++
	}
	return recovered, failed, nil
}

func (s *memStore) ExpireStale(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired int64
	for _, n := range s.rows {
		if n.Status == outbox.StatusPending && n.UpdatedAt.Before(cutoff) {
			n.Status = outbox.StatusExpired
			n.NextRetryAt = nil
			n.UpdatedAt = s.stamp()
			expired++
		}
	}
	return expired, nil
}

// put stores a row as-is, for states producers outside the worker can create.
func (s *memStore) put(n outbox.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[n.ID] = &n
}

func (s *memStore) MarkSent(_ context.Context, id uuid.UUID, externalID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.rows[id]
	if n.Status != outbox.StatusProcessing {
		return nil
	}
	n.Status = outbox.StatusSent
	n.UpdatedAt = s.stamp()
	n.ExternalID = externalID
	n.SentAt = &sentAt
	n.NextRetryAt = nil
	n.ErrorMessage = ""
	return nil
}

func (s *memStore) ScheduleRetry(_ context.Context, id uuid.UUID, retryCount int, nextRetryAt time.Time, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.rows[id]
	if n.Status != outbox.StatusProcessing {
		return nil
	}
	n.Status = outbox.StatusPending
	n.UpdatedAt = s.stamp()
	n.RetryCount = retryCount
	n.NextRetryAt = &nextRetryAt
	n.ErrorMessage = msg
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id uuid.UUID, retryCount int, failedAt time.Time, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.rows[id]
	if n.Status != outbox.StatusProcessing {
		return nil
	}
	n.Status = outbox.StatusFailed
	n.UpdatedAt = s.stamp()
	n.RetryCount = retryCount
	n.FailedAt = &failedAt
	n.NextRetryAt = nil
	n.ErrorMessage = msg
	return nil
}
