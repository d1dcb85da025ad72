package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/enginex/gate/domain"
)

// MemorySessionStore implements SessionStore using ttlcache. Sessions expire
// after the configured TTL of inactivity; reads refresh the TTL.
type MemorySessionStore struct {
	cache *ttlcache.Cache[string, *domain.Session]
	ttl   time.Duration
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *domain.Session](ttl),
	)

	go cache.Start()

	return &MemorySessionStore{
		cache: cache,
		ttl:   ttl,
	}
}

// Set stores the session under its id.
func (s *MemorySessionStore) Set(_ context.Context, session *domain.Session) error {
	entry := *session
	s.cache.Set(session.ID, &entry, ttlcache.DefaultTTL)
	return nil
}

// Get returns a copy of the stored session.
func (s *MemorySessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, ErrSessionNotFound
	}

	entry := *item.Value()
	return &entry, nil
}

// Delete removes a session.
func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.cache.Delete(id)

	return nil
}

// Clear removes all sessions.
func (s *MemorySessionStore) Clear(_ context.Context) error {
	s.cache.DeleteAll()

	return nil
}

// Close stops the cleanup goroutine.
func (s *MemorySessionStore) Close() error {
	s.cache.Stop()

	return nil
}
