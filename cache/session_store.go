package cache

import (
	"context"
	"errors"

	"github.com/enginex/gate/domain"
)

// ErrSessionNotFound is returned by Get for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists per-visitor session bindings, keyed by the browser-held
// session identifier. Clear wipes all sessions; it is called once at process
// start so restarts invalidate every previously bound session.
type SessionStore interface {
	Set(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Close() error
}
