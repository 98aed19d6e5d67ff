package usecase

import (
	"context"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/certbridge/auth-service/internal/core/domain"
	"github.com/certbridge/auth-service/internal/core/port"
)

// Unlock triggers recorded on auth.account.unlocked events.
const (
	UnlockTriggerLogin = "login"
	UnlockTriggerSweep = "sweep"
)

// LockoutService owns the account state machine around temporary lockouts.
// Transitions are conditional UPDATEs, so concurrent logins and sweep runs
// converge on the same state without in-process locking.
type LockoutService struct {
	accounts port.AccountRepository
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewLockoutService constructs a LockoutService instance.
func NewLockoutService(accounts port.AccountRepository, events port.EventPublisher, logger *zap.Logger) *LockoutService {
	return &LockoutService{
		accounts: accounts,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *LockoutService) WithClock(now func() time.Time) *LockoutService {
	if now != nil {
		s.now = now
	}
	return s
}

// EnsureUnlocked lazily clears an elapsed lockout before the login pipeline
// inspects the account state. The returned account reflects the unlock.
func (s *LockoutService) EnsureUnlocked(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	now := s.now().UTC()

	if account.State != domain.AccountStateLocked || !account.LockExpired(now) {
		return account, nil
	}

	unlocked, err := s.accounts.UnlockIfExpired(ctx, account.ID, now)
	if err != nil {
		return nil, fmt.Errorf("unlock expired account: %w", err)
	}
	if !unlocked {
		// Another request won the race; reload to observe its outcome.
		fresh, err := s.accounts.GetByID(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("reload account after unlock race: %w", err)
		}
		return fresh, nil
	}

	s.publishUnlocked(ctx, account.ID, now, UnlockTriggerLogin)

	updated := *account
	updated.State = domain.AccountStateActive
	updated.LockedUntil = nil
	updated.FailedAttempts = 0
	return &updated, nil
}

// UnlockExpiredAccounts is the periodic sweep. The guarded UPDATE makes it
// idempotent; a notification failure for one account never aborts the batch.
func (s *LockoutService) UnlockExpiredAccounts(ctx context.Context) (int, error) {
	now := s.now().UTC()

	ids, err := s.accounts.UnlockExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired lockouts: %w", err)
	}

	for _, id := range ids {
		s.publishUnlocked(ctx, id, now, UnlockTriggerSweep)
	}

	return len(ids), nil
}

func (s *LockoutService) publishUnlocked(ctx context.Context, accountID string, at time.Time, trigger string) {
	event := domain.AccountUnlockedEvent{
		EventID:    uuid.NewString(),
		AccountID:  accountID,
		UnlockedAt: at,
		Trigger:    trigger,
	}
	if err := s.events.PublishAccountUnlocked(ctx, event); err != nil {
		s.logger.Warn("Failed to publish account unlocked event",
			zap.String("account_id", accountID),
			zap.String("trigger", trigger),
			zap.Error(err),
		)
	}
}
