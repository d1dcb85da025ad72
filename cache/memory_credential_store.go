package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/enginex/gate/domain"
)

// MemoryCredentialStore implements CredentialStore using ttlcache.
type MemoryCredentialStore struct {
	cache *ttlcache.Cache[string, *domain.Credential]
}

// NewMemoryCredentialStore creates a new in-memory credential store with
// automatic cleanup. The sweep runs for the lifetime of the store; call Close
// to stop it.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *domain.Credential](time.Minute),
		ttlcache.WithDisableTouchOnHit[string, *domain.Credential](),
	)

	// Start the cleanup process
	go cache.Start()

	return &MemoryCredentialStore{
		cache: cache,
	}
}

// Set stores a credential until its expiry.
func (s *MemoryCredentialStore) Set(_ context.Context, cred *domain.Credential) error {
	entry := *cred
	s.cache.Set(cred.ID, &entry, time.Until(cred.ExpiresAt))
	return nil
}

// Get returns a copy of the stored credential, or ErrCredentialNotFound for
// unknown and expired ids alike.
func (s *MemoryCredentialStore) Get(_ context.Context, id string) (*domain.Credential, error) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, ErrCredentialNotFound
	}

	entry := *item.Value()
	return &entry, nil
}

// Delete removes a credential from the store.
func (s *MemoryCredentialStore) Delete(_ context.Context, id string) error {
	s.cache.Delete(id)

	return nil
}

// DeleteExpired removes all expired credentials from the store.
func (s *MemoryCredentialStore) DeleteExpired(_ context.Context) error {
	// ttlcache handles expiration automatically
	s.cache.DeleteExpired()

	return nil
}

// Count counts the number of live credentials in the store.
func (s *MemoryCredentialStore) Count(_ context.Context) int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemoryCredentialStore) Close() error {
	s.cache.Stop()

	return nil
}
