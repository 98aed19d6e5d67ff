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
	"github.com/certbridge/auth-service/internal/infra/logger"
	"github.com/certbridge/auth-service/internal/infra/security"
	"github.com/certbridge/auth-service/internal/repository"
)

const continuationTokenBytes = 32

// LoginInput carries one login attempt through the pipeline.
type LoginInput struct {
	Identifier        string
	Password          string
	TwoFactorCode     string
	CaptchaToken      string
	IP                string
	UserAgent         string
	DeviceFingerprint string
}

// LoginResult is the committed outcome of a successful login.
type LoginResult struct {
	Account   domain.Account
	Token     string
	SessionID string
	NewDevice bool

	// PasswordExpiresInDays is set when the password is inside the expiry
	// warning window (30 days or fewer remaining).
	PasswordExpiresInDays *int
}

// LoginService composes the lockout, CAPTCHA, delay, credential, second
// factor, and expiry checks into one ordered decision pipeline.
type LoginService struct {
	accounts port.AccountRepository
	sessions port.SessionRepository
	pending  port.PendingLoginStore
	captcha  port.CaptchaVerifier
	events   port.EventPublisher
	lockout  *LockoutService
	tokens   *security.TokenManager
	logger   *zap.Logger

	loginCfg   config.LoginSettings
	captchaCfg config.CaptchaSettings
	pendingTTL time.Duration

	// phantomHash absorbs password verification for unknown identifiers so
	// response timing does not reveal whether the account exists.
	phantomHash string

	now   func() time.Time
	sleep Sleeper
}

// NewLoginService constructs a LoginService instance.
func NewLoginService(
	accounts port.AccountRepository,
	sessions port.SessionRepository,
	pending port.PendingLoginStore,
	captcha port.CaptchaVerifier,
	events port.EventPublisher,
	lockout *LockoutService,
	tokens *security.TokenManager,
	loginCfg config.LoginSettings,
	captchaCfg config.CaptchaSettings,
	pendingTTL time.Duration,
	log *zap.Logger,
) (*LoginService, error) {
	phantomHash, err := security.HashPassword(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare phantom hash: %w", err)
	}

	if pendingTTL <= 0 {
		pendingTTL = 5 * time.Minute
	}

	return &LoginService{
		accounts:    accounts,
		sessions:    sessions,
		pending:     pending,
		captcha:     captcha,
		events:      events,
		lockout:     lockout,
		tokens:      tokens,
		logger:      log,
		loginCfg:    loginCfg,
		captchaCfg:  captchaCfg,
		pendingTTL:  pendingTTL,
		phantomHash: phantomHash,
		now:         time.Now,
		sleep:       DefaultSleeper,
	}, nil
}

// WithClock overrides the time source. Intended for tests.
func (s *LoginService) WithClock(now func() time.Time) *LoginService {
	if now != nil {
		s.now = now
	}
	return s
}

// WithSleeper overrides the delay mechanism. Intended for tests.
func (s *LoginService) WithSleeper(sleep Sleeper) *LoginService {
	if sleep != nil {
		s.sleep = sleep
	}
	return s
}

// Login runs the fixed check order. Every rejection is a *LoginError; any
// other error is an internal failure.
func (s *LoginService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	// 1. Presence.
	if input.Identifier == "" || input.Password == "" {
		return nil, &LoginError{Code: CodeMissingCredentials, Message: "identifier and password are required"}
	}

	account, err := s.accounts.GetByIdentifier(ctx, input.Identifier)
	phantom := false
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("lookup account: %w", err)
		}
		// Unknown identifier: run the remaining checks against a zero-state
		// phantom so the rejection is indistinguishable from a wrong password.
		phantom = true
		account = &domain.Account{
			State:        domain.AccountStateActive,
			PasswordHash: s.phantomHash,
		}
	}

	// 2. Lockout, clearing an elapsed window first.
	if !phantom {
		account, err = s.lockout.EnsureUnlocked(ctx, account)
		if err != nil {
			return nil, err
		}

		now := s.now().UTC()
		switch account.State {
		case domain.AccountStateSuspended:
			return nil, &LoginError{Code: CodeAccountSuspended, Message: "account is suspended"}
		case domain.AccountStateLocked:
			return nil, &LoginError{
				Code:             CodeAccountLocked,
				Message:          "account is temporarily locked",
				RemainingMinutes: account.RemainingLockMinutes(now),
			}
		}
	}

	// 3. CAPTCHA gate, before any password evaluation.
	if account.CaptchaOwed(s.loginCfg.CaptchaThreshold) {
		if rejection := s.checkCaptcha(ctx, input.CaptchaToken, input.IP); rejection != nil {
			return nil, rejection
		}
	}

	// 4. Progressive delay covers every branch from here on.
	s.sleep(ctx, DelayForAttempts(account.FailedAttempts))

	// 5. Credentials.
	ok, err := security.VerifyPassword(input.Password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok || phantom {
		return nil, s.recordFailure(ctx, account, phantom, input.IP)
	}

	// 6. Second factor.
	verified := false
	if account.SecondFactorMode == domain.SecondFactorEnabled {
		if input.TwoFactorCode == "" {
			token, err := s.createContinuation(ctx, account, input)
			if err != nil {
				return nil, err
			}
			return nil, &LoginError{
				Code:              CodeSecondFactorOwed,
				Message:           "second factor code required",
				ContinuationToken: token,
			}
		}

		if !security.ValidateTOTP(input.TwoFactorCode, account.SecondFactorSecret, s.now().UTC()) {
			return nil, s.recordSecondFactorFailure(ctx, account)
		}
		verified = true
	}

	// 7. Password expiry.
	if account.PasswordExpired(s.now().UTC()) {
		return nil, &LoginError{
			Code:                   CodePasswordExpired,
			Message:                "password has expired",
			RequiresPasswordChange: true,
		}
	}

	// 8. Commit.
	return s.finalize(ctx, account, input.IP, input.UserAgent, input.DeviceFingerprint, verified)
}

// CompleteSecondFactor finishes a login whose first factor already succeeded,
// identified by the single-use continuation token.
func (s *LoginService) CompleteSecondFactor(ctx context.Context, token, code, ip, userAgent string) (*LoginResult, error) {
	if token == "" || code == "" {
		return nil, &LoginError{Code: CodeMissingCredentials, Message: "continuation token and code are required"}
	}

	pending, err := s.pending.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &LoginError{Code: CodeContinuationExpired, Message: "login continuation expired; sign in again"}
		}
		return nil, fmt.Errorf("consume pending login: %w", err)
	}

	account, err := s.accounts.GetByID(ctx, pending.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &LoginError{Code: CodeInvalidCredentials, Message: "invalid credentials"}
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	// The account may have been locked or suspended since the first factor.
	// An elapsed window is cleared here just like on the main path, so the
	// row never stays locked with a stale deadline.
	account, err = s.lockout.EnsureUnlocked(ctx, account)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	switch account.State {
	case domain.AccountStateSuspended:
		return nil, &LoginError{Code: CodeAccountSuspended, Message: "account is suspended"}
	case domain.AccountStateLocked:
		return nil, &LoginError{
			Code:             CodeAccountLocked,
			Message:          "account is temporarily locked",
			RemainingMinutes: account.RemainingLockMinutes(now),
		}
	}

	if account.SecondFactorMode != domain.SecondFactorEnabled {
		return nil, &LoginError{Code: CodeContinuationExpired, Message: "login continuation no longer valid; sign in again"}
	}

	if !security.ValidateTOTP(code, account.SecondFactorSecret, now) {
		return nil, s.recordSecondFactorFailure(ctx, account)
	}

	if account.PasswordExpired(now) {
		return nil, &LoginError{
			Code:                   CodePasswordExpired,
			Message:                "password has expired",
			RequiresPasswordChange: true,
		}
	}

	ip = firstNonEmpty(ip, pending.IP)
	return s.finalize(ctx, account, ip, userAgent, pending.DeviceFingerprint, true)
}

func (s *LoginService) checkCaptcha(ctx context.Context, token, remoteIP string) *LoginError {
	if token == "" {
		return &LoginError{Code: CodeCaptchaRequired, Message: "captcha challenge required"}
	}

	result, err := s.captcha.Verify(ctx, token, remoteIP)
	if err != nil {
		switch {
		case errors.Is(err, port.ErrCaptchaTimeout):
			return &LoginError{Code: CodeCaptchaTimeout, Message: "captcha verification timed out"}
		default:
			s.logger.Error("Captcha verifier unavailable", zap.Error(err))
			return &LoginError{Code: CodeCaptchaServiceError, Message: "captcha verification unavailable"}
		}
	}

	if !result.Accepted {
		return &LoginError{Code: CodeCaptchaInvalid, Message: "captcha verification failed"}
	}
	if result.Score < s.captchaCfg.MinScore {
		return &LoginError{Code: CodeCaptchaScoreTooLow, Message: "captcha confidence too low"}
	}

	return nil
}

// recordFailure increments the counter, performs the lockout transition when
// the threshold is durably reached, and shapes the terminal rejection.
func (s *LoginService) recordFailure(ctx context.Context, account *domain.Account, phantom bool, ip string) error {
	threshold := s.loginCfg.LockoutThreshold

	if phantom {
		return &LoginError{
			Code:              CodeInvalidCredentials,
			Message:           "invalid credentials",
			FailedAttempts:    1,
			RemainingAttempts: threshold - 1,
		}
	}

	count, err := s.accounts.IncrementFailedAttempts(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("increment failed attempts: %w", err)
	}

	if count >= threshold {
		now := s.now().UTC()
		until := now.Add(s.loginCfg.LockoutDuration)

		locked, err := s.accounts.Lock(ctx, account.ID, until, threshold)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		if locked {
			event := domain.AccountLockedEvent{
				EventID:        uuid.NewString(),
				AccountID:      account.ID,
				FailedAttempts: count,
				LockedAt:       now,
				LockedUntil:    until,
				IPAddress:      logger.MaskIP(ip),
			}
			if err := s.events.PublishAccountLocked(ctx, event); err != nil {
				s.logger.Warn("Failed to publish account locked event",
					zap.String("account_id", account.ID),
					zap.Error(err),
				)
			}
		}

		minutes := int(s.loginCfg.LockoutDuration.Minutes())
		if minutes < 1 {
			minutes = 1
		}
		return &LoginError{
			Code:             CodeAccountLocked,
			Message:          "account is temporarily locked",
			RemainingMinutes: minutes,
		}
	}

	return &LoginError{
		Code:              CodeInvalidCredentials,
		Message:           "invalid credentials",
		FailedAttempts:    count,
		RemainingAttempts: threshold - count,
	}
}

// recordSecondFactorFailure audits the failure on its own counter; it never
// feeds the lockout threshold.
func (s *LoginService) recordSecondFactorFailure(ctx context.Context, account *domain.Account) error {
	if _, err := s.accounts.IncrementSecondFactorFailures(ctx, account.ID); err != nil {
		s.logger.Warn("Failed to record second factor failure",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}
	return &LoginError{Code: CodeInvalidSecondFactor, Message: "invalid second factor code"}
}

func (s *LoginService) createContinuation(ctx context.Context, account *domain.Account, input LoginInput) (string, error) {
	token, err := security.GenerateSecureToken(continuationTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate continuation token: %w", err)
	}

	pending := domain.PendingLogin{
		AccountID:         account.ID,
		IP:                input.IP,
		DeviceFingerprint: input.DeviceFingerprint,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.pending.Create(ctx, token, pending, s.pendingTTL); err != nil {
		return "", fmt.Errorf("store pending login: %w", err)
	}

	return token, nil
}

func (s *LoginService) finalize(ctx context.Context, account *domain.Account, ip, userAgent, fingerprint string, secondFactorVerified bool) (*LoginResult, error) {
	now := s.now().UTC()

	if err := s.accounts.ResetFailedAttempts(ctx, account.ID); err != nil {
		return nil, fmt.Errorf("reset failed attempts: %w", err)
	}

	newDevice := false
	if fingerprint != "" {
		existing, err := s.sessions.ListByAccount(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		newDevice = !existing.HasFingerprint(fingerprint)
	}

	sessionCap := s.loginCfg.MaxSessions
	if sessionCap <= 0 {
		sessionCap = domain.MaxSessionsPerAccount
	}

	session := domain.Session{
		ID:                uuid.NewString(),
		AccountID:         account.ID,
		IP:                ip,
		UserAgent:         userAgent,
		DeviceFingerprint: fingerprint,
		CreatedAt:         now,
	}
	if err := s.sessions.Create(ctx, session, sessionCap); err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}

	if err := s.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		s.logger.Warn("Failed to stamp last login",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}

	if newDevice {
		event := domain.NewDeviceEvent{
			EventID:           uuid.NewString(),
			AccountID:         account.ID,
			SessionID:         session.ID,
			IPAddress:         logger.MaskIP(ip),
			DeviceFingerprint: fingerprint,
			SeenAt:            now,
		}
		if err := s.events.PublishNewDevice(ctx, event); err != nil {
			s.logger.Warn("Failed to publish new device event",
				zap.String("account_id", account.ID),
				zap.Error(err),
			)
		}
	}

	token, err := s.tokens.Issue(account.ID, session.ID, account.Role, int(account.TokenVersion), secondFactorVerified)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	committed := *account
	committed.FailedAttempts = 0
	committed.LastLogin = &now
	committed.PasswordHash = ""

	result := &LoginResult{
		Account:   committed,
		Token:     token,
		SessionID: session.ID,
		NewDevice: newDevice,
	}

	if days, warn := account.PasswordExpiryWarning(now); warn {
		result.PasswordExpiresInDays = &days
	}

	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
