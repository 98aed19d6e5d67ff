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
	"github.com/certbridge/auth-service/internal/infra/security"
	"github.com/certbridge/auth-service/internal/repository"
)

var (
	// ErrSecondFactorEnabled indicates setup was requested while already enabled.
	ErrSecondFactorEnabled = errors.New("second factor already enabled")
	// ErrSecondFactorNotEnabled indicates disable was requested while not enabled.
	ErrSecondFactorNotEnabled = errors.New("second factor is not enabled")
	// ErrNoPendingSetup indicates confirmation arrived without a pending secret.
	ErrNoPendingSetup = errors.New("no pending second factor setup")
	// ErrInvalidSecondFactorCode indicates the submitted code did not verify.
	ErrInvalidSecondFactorCode = errors.New("invalid second factor code")
)

// TwoFactorService implements the two-phase TOTP provisioning handshake.
// A generated secret protects nothing until a code proves the authenticator
// actually holds it.
type TwoFactorService struct {
	accounts port.AccountRepository
	events   port.EventPublisher
	logger   *zap.Logger
	issuer   string
	now      func() time.Time
}

// NewTwoFactorService constructs a TwoFactorService instance.
func NewTwoFactorService(accounts port.AccountRepository, events port.EventPublisher, issuer string, log *zap.Logger) *TwoFactorService {
	return &TwoFactorService{
		accounts: accounts,
		events:   events,
		logger:   log,
		issuer:   issuer,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *TwoFactorService) WithClock(now func() time.Time) *TwoFactorService {
	if now != nil {
		s.now = now
	}
	return s
}

// Setup generates a fresh secret and stores it as pending. Repeating setup
// before confirmation simply replaces the pending secret.
func (s *TwoFactorService) Setup(ctx context.Context, accountID string) (*security.TOTPEnrollment, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if account.SecondFactorMode == domain.SecondFactorEnabled {
		return nil, ErrSecondFactorEnabled
	}

	enrollment, err := security.GenerateTOTPEnrollment(s.issuer, account.Email)
	if err != nil {
		return nil, fmt.Errorf("generate enrollment: %w", err)
	}

	if err := s.accounts.SetPendingSecondFactor(ctx, account.ID, enrollment.Secret); err != nil {
		return nil, fmt.Errorf("store pending secret: %w", err)
	}

	return enrollment, nil
}

// Confirm verifies a code against the pending secret and promotes it. A bad
// code leaves the pending state untouched.
func (s *TwoFactorService) Confirm(ctx context.Context, accountID, code string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	if account.SecondFactorMode != domain.SecondFactorPending || account.SecondFactorTemp == "" {
		return ErrNoPendingSetup
	}

	now := s.now().UTC()
	if !security.ValidateTOTP(code, account.SecondFactorTemp, now) {
		return ErrInvalidSecondFactorCode
	}

	if err := s.accounts.PromoteSecondFactor(ctx, account.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoPendingSetup
		}
		return fmt.Errorf("promote second factor: %w", err)
	}

	event := domain.SecondFactorEnabledEvent{
		EventID:   uuid.NewString(),
		AccountID: account.ID,
		EnabledAt: now,
	}
	if err := s.events.PublishSecondFactorEnabled(ctx, event); err != nil {
		s.logger.Warn("Failed to publish second factor enabled event",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}

	return nil
}

// Disable requires the current password and a currently valid code, then
// clears the secret and invalidates outstanding tokens.
func (s *TwoFactorService) Disable(ctx context.Context, accountID, password, code string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	if account.SecondFactorMode != domain.SecondFactorEnabled {
		return ErrSecondFactorNotEnabled
	}

	ok, err := security.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCurrentPassword
	}

	now := s.now().UTC()
	if !security.ValidateTOTP(code, account.SecondFactorSecret, now) {
		return ErrInvalidSecondFactorCode
	}

	if err := s.accounts.DisableSecondFactor(ctx, account.ID); err != nil {
		return fmt.Errorf("disable second factor: %w", err)
	}

	if _, err := s.accounts.BumpTokenVersion(ctx, account.ID); err != nil {
		return fmt.Errorf("bump token version: %w", err)
	}

	event := domain.SecondFactorDisabledEvent{
		EventID:    uuid.NewString(),
		AccountID:  account.ID,
		DisabledAt: now,
	}
	if err := s.events.PublishSecondFactorDisabled(ctx, event); err != nil {
		s.logger.Warn("Failed to publish second factor disabled event",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}

	return nil
}
