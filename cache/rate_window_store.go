package cache

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/enginex/gate/domain"
)

// RateWindowStore tracks per-client request pressure, keyed by client IP.
// Entries are created lazily on first observation and evicted by ttlcache once
// a client has been idle for the eviction interval. Touch-on-hit is left
// enabled on purpose: an active client keeps its window alive.
type RateWindowStore struct {
	mu         sync.Mutex
	cache      *ttlcache.Cache[string, *domain.RateWindow]
	resetAfter time.Duration
}

// NewRateWindowStore creates a rate window store. resetAfter is the gap after
// which a client's count restarts at 1; idleEviction is how long an idle
// client's entry survives before the sweep removes it.
func NewRateWindowStore(resetAfter, idleEviction time.Duration) *RateWindowStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *domain.RateWindow](idleEviction),
	)

	go cache.Start()

	return &RateWindowStore{
		cache:      cache,
		resetAfter: resetAfter,
	}
}

// Observe records one request for the client and returns the updated window.
// The read-modify-write runs under the store mutex so concurrent handlers
// cannot lose counts.
func (s *RateWindowStore) Observe(clientIP string) domain.RateWindow {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	var window *domain.RateWindow
	if item := s.cache.Get(clientIP); item != nil {
		window = item.Value()
	}

	if window == nil || now.Sub(window.LastSeenAt) > s.resetAfter {
		window = &domain.RateWindow{Count: 1}
	} else {
		window.Count++
	}
	window.LastSeenAt = now

	s.cache.Set(clientIP, window, ttlcache.DefaultTTL)

	return *window
}

// Len counts the currently tracked client identities.
func (s *RateWindowStore) Len() int {
	return s.cache.Len()
}

// Close stops the eviction goroutine.
func (s *RateWindowStore) Close() error {
	s.cache.Stop()

	return nil
}
