package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/enginex/gate/cache"
	"github.com/enginex/gate/domain"
)

// SessionStore implements the SessionStore interface using Redis.
type SessionStore struct {
	client *redis.Client
	prefix string // Optional prefix for keys
	ttl    time.Duration
}

// NewSessionStore creates a new [SessionStore] instance. The client is owned
// by the caller and is not closed by this store.
func NewSessionStore(client *redis.Client, prefix string, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// redisKey returns the Redis key for a given session id.
func (r *SessionStore) redisKey(id string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, id)
}

// Set stores a session as JSON with the configured expiry.
func (r *SessionStore) Set(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, r.redisKey(session.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session in Redis: %w", err)
	}

	return nil
}

// Get retrieves a session from Redis.
func (r *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, r.redisKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, cache.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// Delete removes a session from Redis.
func (r *SessionStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.redisKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}

	return nil
}

// Clear removes every session under this store's prefix. Called once at
// startup so a restart invalidates all previously bound sessions.
func (r *SessionStore) Clear(ctx context.Context) error {
	pattern := fmt.Sprintf("%s:session:*", r.prefix)

	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan sessions in Redis: %w", err)
		}

		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete sessions from Redis: %w", err)
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close is a no-op; the Redis client lifecycle belongs to the caller.
func (r *SessionStore) Close() error {
	return nil
}
