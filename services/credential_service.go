package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/enginex/gate/cache"
	"github.com/enginex/gate/domain"
)

const (
	// DefaultCredentialTTL applies when the caller does not request a TTL.
	DefaultCredentialTTL = time.Hour
	// MaxCredentialTTL caps every issued credential regardless of the
	// requested TTL.
	MaxCredentialTTL = 24 * time.Hour
)

// CredentialService issues and validates capability credentials. When
// singleUse is enabled, consuming a credential marks it used and a used
// credential fails validation; the default keeps the reference behavior where
// credentials stay valid until expiry.
type CredentialService struct {
	store     cache.CredentialStore
	singleUse bool
}

// NewCredentialService creates a credential service on top of the given store.
func NewCredentialService(store cache.CredentialStore, singleUse bool) *CredentialService {
	return &CredentialService{
		store:     store,
		singleUse: singleUse,
	}
}

// Issue generates a fresh credential bound to the given value. A non-positive
// ttl selects the default; anything above the cap is clamped to it. Issue does
// not fail under normal operation.
func (s *CredentialService) Issue(ctx context.Context, boundValue string, ttl time.Duration) (*domain.Credential, error) {
	if ttl <= 0 {
		ttl = DefaultCredentialTTL
	}
	if ttl > MaxCredentialTTL {
		ttl = MaxCredentialTTL
	}

	id, err := generateCredentialID()
	if err != nil {
		return nil, fmt.Errorf("generate credential id: %w", err)
	}

	now := time.Now()
	cred := &domain.Credential{
		ID:         id,
		BoundValue: boundValue,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}

	if err := s.store.Set(ctx, cred); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	return cred, nil
}

// IsValid reports whether the id names a live credential. Unknown ids are
// simply invalid, never an error. Each check counts as an attempt.
func (s *CredentialService) IsValid(ctx context.Context, id string) bool {
	cred, err := s.store.Get(ctx, id)
	if err != nil {
		return false
	}

	if cred.Expired(time.Now()) {
		return false
	}
	if s.singleUse && cred.Used {
		return false
	}

	cred.Attempts++
	_ = s.store.Set(ctx, cred)

	return true
}

// Consume marks a credential used. Without single-use mode this is a no-op,
// matching the reference flow where nothing ever sets the usage fields.
func (s *CredentialService) Consume(ctx context.Context, id string) {
	if !s.singleUse {
		return
	}

	cred, err := s.store.Get(ctx, id)
	if err != nil {
		return
	}

	cred.Used = true
	_ = s.store.Set(ctx, cred)
}

// generateCredentialID returns 128 bits of entropy, hex encoded.
func generateCredentialID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
