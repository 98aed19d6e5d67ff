package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/certbridge/auth-service/internal/core/domain"
	"github.com/certbridge/auth-service/internal/core/port"
	"github.com/certbridge/auth-service/internal/repository"
)

// ErrSessionNotFound indicates the session does not exist or belongs to
// another account.
var ErrSessionNotFound = errors.New("session not found")

// SessionService exposes the bounded session registry to callers.
type SessionService struct {
	sessions port.SessionRepository
	logger   *zap.Logger
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(sessions port.SessionRepository, log *zap.Logger) *SessionService {
	return &SessionService{sessions: sessions, logger: log}
}

// List returns the account's sessions, most recent first.
func (s *SessionService) List(ctx context.Context, accountID string) (domain.SessionList, error) {
	sessions, err := s.sessions.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Terminate deletes one session after checking it belongs to the caller.
// Ownership mismatches read as not-found to avoid leaking session ids.
func (s *SessionService) Terminate(ctx context.Context, accountID, sessionID string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("lookup session: %w", err)
	}

	if session.AccountID != accountID {
		return ErrSessionNotFound
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// Logout removes the caller's current session record. A missing record is
// not an error; the token has already been invalidated client-side.
func (s *SessionService) Logout(ctx context.Context, accountID, sessionID string) error {
	if err := s.Terminate(ctx, accountID, sessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			s.logger.Debug("Logout for already-removed session",
				zap.String("session_id", sessionID),
			)
			return nil
		}
		return err
	}
	return nil
}
