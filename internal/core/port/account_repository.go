package port

import (
	"context"
	"time"

	"github.com/certbridge/auth-service/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts. Counter and
// state mutations are atomic read-modify-write statements so that concurrent
// login attempts against the same account never under-count or under-lock.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error)

	// IncrementFailedAttempts atomically bumps the counter and returns the new value.
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	// ResetFailedAttempts zeroes the counter without touching account state.
	ResetFailedAttempts(ctx context.Context, id string) error
	// IncrementSecondFactorFailures bumps the separate, unthresholded 2FA counter.
	IncrementSecondFactorFailures(ctx context.Context, id string) (int, error)

	// Lock transitions the account to locked when it is still active and the
	// counter has durably reached minAttempts. Returns false when another
	// request already performed the transition.
	Lock(ctx context.Context, id string, until time.Time, minAttempts int) (bool, error)
	// UnlockIfExpired clears an elapsed lockout, resetting the counter in the
	// same statement. Returns false when the account was not expired-locked.
	UnlockIfExpired(ctx context.Context, id string, now time.Time) (bool, error)
	// UnlockExpired performs the sweep: every locked account whose deadline
	// passed becomes active with a zeroed counter. Returns the unlocked ids.
	UnlockExpired(ctx context.Context, now time.Time) ([]string, error)

	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	// BumpTokenVersion invalidates previously issued bearer tokens and
	// returns the new version.
	BumpTokenVersion(ctx context.Context, id string) (int64, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	ListPasswordHistory(ctx context.Context, accountID string, limit int) ([]domain.PasswordHistoryEntry, error)
	AddPasswordHistory(ctx context.Context, entry domain.PasswordHistoryEntry) error
	TrimPasswordHistory(ctx context.Context, accountID string, maxEntries int) error

	// SetPendingSecondFactor stores a temporary secret; the account stays
	// unprotected until the secret is confirmed.
	SetPendingSecondFactor(ctx context.Context, id string, tempSecret string) error
	// PromoteSecondFactor moves the pending secret into place and enables 2FA.
	PromoteSecondFactor(ctx context.Context, id string) error
	// DisableSecondFactor clears both secrets and disables 2FA.
	DisableSecondFactor(ctx context.Context, id string) error
}
