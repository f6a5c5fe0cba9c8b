package settings

import (
	"context"
	"sync"
	"time"

	"helpdesk_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	cacheTTL = 5 * time.Minute

	// InvalidationChannel is the Redis pub/sub channel carrying organization ids
	// whose settings changed.
	InvalidationChannel = "helpdesk:settings:invalidate"
)

// Store is the persistence the service needs.
type Store interface {
	Load(ctx context.Context, organizationID uuid.UUID) (ChannelSettings, error)
	Save(ctx context.Context, organizationID uuid.UUID, s ChannelSettings) error
}

type cachedSettings struct {
	value     ChannelSettings
	expiresAt time.Time
}

// Service resolves settings per call with a 5 minute per-organization cache.
// When a Redis client is set, saves are broadcast so other processes drop
// their cached copy.
type Service struct {
	store Store
	redis *redis.Client
	log   *logger.Logger
	cache sync.Map
	now   func() time.Time
}

func NewService(store Store, rdb *redis.Client, log *logger.Logger) *Service {
	return &Service{store: store, redis: rdb, log: log, now: time.Now}
}

// Get returns the organization's settings, from cache when fresh.
func (s *Service) Get(ctx context.Context, organizationID uuid.UUID) (ChannelSettings, error) {
	if cached, ok := s.cache.Load(organizationID); ok {
		entry := cached.(cachedSettings)
		if s.now().Before(entry.expiresAt) {
			return entry.value, nil
		}
		s.cache.Delete(organizationID)
	}

	value, err := s.store.Load(ctx, organizationID)
	if err != nil {
		return ChannelSettings{}, err
	}
	s.cache.Store(organizationID, cachedSettings{value: value, expiresAt: s.now().Add(cacheTTL)})
	return value, nil
}

// Save persists new settings and invalidates every cached copy.
func (s *Service) Save(ctx context.Context, organizationID uuid.UUID, value ChannelSettings) error {
	if err := s.store.Save(ctx, organizationID, value); err != nil {
		return err
	}
	s.Invalidate(organizationID)
	if s.redis != nil {
		if err := s.redis.Publish(ctx, InvalidationChannel, organizationID.String()).Err(); err != nil {
			s.log.Warn("failed to broadcast settings invalidation", "orgId", organizationID, "error", err)
		}
	}
	return nil
}

// Invalidate drops the cached settings of one organization.
func (s *Service) Invalidate(organizationID uuid.UUID) {
	s.cache.Delete(organizationID)
}

// ListenInvalidations drops cache entries announced by other processes until ctx ends.
func (s *Service) ListenInvalidations(ctx context.Context) {
	if s.redis == nil {
		return
	}
	sub := s.redis.Subscribe(ctx, InvalidationChannel)
	defer func() { _ = sub.Close() }()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			orgID, err := uuid.Parse(msg.Payload)
			if err != nil {
				s.log.Warn("ignoring malformed settings invalidation", "payload", msg.Payload)
				continue
			}
			s.Invalidate(orgID)
		}
	}
}
