package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/certbridge/auth-service/internal/core/domain"
	"github.com/certbridge/auth-service/internal/core/port"
	"github.com/certbridge/auth-service/internal/infra/config"
	"github.com/certbridge/auth-service/internal/infra/security"
	"github.com/certbridge/auth-service/internal/repository"
)

var (
	// ErrAccountNotFound indicates the referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCurrentPassword indicates the supplied current password is wrong.
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	// ErrWeakPassword indicates the candidate violates the complexity policy.
	ErrWeakPassword = errors.New("password does not meet policy requirements")
	// ErrPasswordReused indicates the candidate matches a recent credential.
	ErrPasswordReused = errors.New("password was used recently")
)

// PasswordService handles authenticated password changes with history and
// policy enforcement.
type PasswordService struct {
	accounts port.AccountRepository
	events   port.EventPublisher
	policy   *security.PasswordPolicy
	logger   *zap.Logger
	cfg      config.PasswordSettings
	now      func() time.Time
}

// NewPasswordService constructs a PasswordService instance.
func NewPasswordService(
	accounts port.AccountRepository,
	events port.EventPublisher,
	policy *security.PasswordPolicy,
	cfg config.PasswordSettings,
	log *zap.Logger,
) *PasswordService {
	return &PasswordService{
		accounts: accounts,
		events:   events,
		policy:   policy,
		logger:   log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *PasswordService) WithClock(now func() time.Time) *PasswordService {
	if now != nil {
		s.now = now
	}
	return s
}

// ChangePassword verifies the current credential, enforces complexity and
// history, swaps the hash, and invalidates previously issued tokens.
// It stays reachable when the password is already expired.
func (s *PasswordService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return fmt.Errorf("%w: current and new password are required", ErrWeakPassword)
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	ok, err := security.VerifyPassword(currentPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify current password: %w", err)
	}
	if !ok {
		return ErrInvalidCurrentPassword
	}

	if err := s.policy.Validate(newPassword, security.PasswordContext{
		Username: account.Username,
		Email:    account.Email,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	reused, err := s.isReused(ctx, account, newPassword)
	if err != nil {
		return err
	}
	if reused {
		return ErrPasswordReused
	}

	newHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	now := s.now().UTC()

	if err := s.accounts.UpdatePassword(ctx, account.ID, newHash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	// The superseded hash joins the history; the window stays bounded.
	entry := domain.PasswordHistoryEntry{
		ID:           uuid.NewString(),
		AccountID:    account.ID,
		PasswordHash: account.PasswordHash,
		ChangedAt:    now,
	}
	if err := s.accounts.AddPasswordHistory(ctx, entry); err != nil {
		return fmt.Errorf("record password history: %w", err)
	}
	if err := s.accounts.TrimPasswordHistory(ctx, account.ID, s.historySize()); err != nil {
		return fmt.Errorf("trim password history: %w", err)
	}

	version, err := s.accounts.BumpTokenVersion(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("bump token version: %w", err)
	}

	event := domain.PasswordChangedEvent{
		EventID:      uuid.NewString(),
		AccountID:    account.ID,
		ChangedAt:    now,
		ChangedBy:    account.ID,
		TokenVersion: version,
	}
	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("Failed to publish password changed event",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}

	return nil
}

// isReused compares the candidate against the live hash and the retained history.
func (s *PasswordService) isReused(ctx context.Context, account *domain.Account, candidate string) (bool, error) {
	match, err := security.VerifyPassword(candidate, account.PasswordHash)
	if err != nil {
		return false, fmt.Errorf("compare against current password: %w", err)
	}
	if match {
		return true, nil
	}

	history, err := s.accounts.ListPasswordHistory(ctx, account.ID, s.historySize())
	if err != nil {
		return false, fmt.Errorf("list password history: %w", err)
	}

	for _, entry := range history {
		match, err := security.VerifyPassword(candidate, entry.PasswordHash)
		if err != nil {
			return false, fmt.Errorf("compare against password history: %w", err)
		}
		if match {
			return true, nil
		}
	}

	return false, nil
}

func (s *PasswordService) historySize() int {
	if s.cfg.HistorySize > 0 {
		return s.cfg.HistorySize
	}
	return 5
}
