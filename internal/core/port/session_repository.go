package port

import (
	"context"

	"github.com/certbridge/auth-service/internal/core/domain"
)

// SessionRepository deals with the bounded per-account session registry.
type SessionRepository interface {
	// Create inserts the session and evicts the oldest entries beyond cap
	// within the same transaction.
	Create(ctx context.Context, session domain.Session, cap int) error
	// ListByAccount returns sessions most-recent-first.
	ListByAccount(ctx context.Context, accountID string) (domain.SessionList, error)
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteAllForAccount(ctx context.Context, accountID string) (int, error)
}
