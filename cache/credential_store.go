package cache

import (
	"context"
	"errors"

	"github.com/enginex/gate/domain"
)

// ErrCredentialNotFound is returned by Get for unknown or expired ids.
var ErrCredentialNotFound = errors.New("credential not found")

// CredentialStore is the registry of issued credentials. Implementations must
// be safe for concurrent use and expire entries on their own background sweep.
type CredentialStore interface {
	Set(ctx context.Context, cred *domain.Credential) error
	Get(ctx context.Context, id string) (*domain.Credential, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) error
	Count(ctx context.Context) int
	Close() error
}
