package port

import (
	"context"
	"time"

	"github.com/certbridge/auth-service/internal/core/domain"
)

// PendingLoginStore persists short-lived login continuations for accounts
// that passed the first factor but still owe a TOTP code.
type PendingLoginStore interface {
	// Create stores the continuation under the raw token with the given TTL.
	Create(ctx context.Context, token string, pending domain.PendingLogin, ttl time.Duration) error
	// Consume retrieves and deletes the continuation; a token can only be
	// spent once.
	Consume(ctx context.Context, token string) (*domain.PendingLogin, error)
}
