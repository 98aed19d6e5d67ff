package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
	// ErrAccountExists indicates the username or email is already taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidRegistration indicates required registration fields are missing.
	ErrInvalidRegistration = errors.New("invalid registration input")
)

// RegisterInput carries a new-account request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// RegistrationService creates accounts with a policy-validated initial password.
type RegistrationService struct {
	accounts port.AccountRepository
	events   port.EventPublisher
	policy   *security.PasswordPolicy
	logger   *zap.Logger
	cfg      config.PasswordSettings
	now      func() time.Time
}

// NewRegistrationService constructs a RegistrationService instance.
func NewRegistrationService(
	accounts port.AccountRepository,
	events port.EventPublisher,
	policy *security.PasswordPolicy,
	cfg config.PasswordSettings,
	log *zap.Logger,
) *RegistrationService {
	return &RegistrationService{
		accounts: accounts,
		events:   events,
		policy:   policy,
		logger:   log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *RegistrationService) WithClock(now func() time.Time) *RegistrationService {
	if now != nil {
		s.now = now
	}
	return s
}

// Register validates input, hashes the password, and persists the account in
// its initial state: active, zero counters, no second factor.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	role := strings.TrimSpace(input.Role)

	switch {
	case username == "":
		return nil, fmt.Errorf("%w: username is required", ErrInvalidRegistration)
	case email == "" || !strings.Contains(email, "@"):
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidRegistration)
	case role == "":
		return nil, fmt.Errorf("%w: role is required", ErrInvalidRegistration)
	}

	if err := s.policy.Validate(input.Password, security.PasswordContext{
		Username: username,
		Email:    email,
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	expiryDays := s.cfg.ExpiryDays
	if expiryDays <= 0 {
		expiryDays = 90
	}

	account := domain.Account{
		ID:                 uuid.NewString(),
		Username:           username,
		Email:              email,
		Role:               role,
		PasswordHash:       hash,
		State:              domain.AccountStateActive,
		SecondFactorMode:   domain.SecondFactorDisabled,
		TokenVersion:       1,
		PasswordExpiryDays: expiryDays,
		LastPasswordChange: now,
		RegisteredAt:       now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	event := domain.AccountRegisteredEvent{
		EventID:      uuid.NewString(),
		AccountID:    account.ID,
		Username:     account.Username,
		Email:        account.Email,
		Role:         account.Role,
		RegisteredAt: now,
	}
	if err := s.events.PublishAccountRegistered(ctx, event); err != nil {
		s.logger.Warn("Failed to publish account registered event",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}

	account.PasswordHash = ""
	return &account, nil
}
