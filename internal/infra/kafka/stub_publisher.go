package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/certbridge/auth-service/internal/core/domain"
	"github.com/certbridge/auth-service/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishAccountRegistered logs auth.account.registered events.
func (p *StubPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	payload := map[string]any{
		"account_id":    event.AccountID,
		"username":      event.Username,
		"email":         event.Email,
		"role":          event.Role,
		"registered_at": event.RegisteredAt,
	}
	p.logEvent(eventAccountRegistered, event.AccountID, event.RegisteredAt, payload)
	return nil
}

// PublishAccountLocked logs auth.account.locked events.
func (p *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	payload := map[string]any{
		"account_id":      event.AccountID,
		"failed_attempts": event.FailedAttempts,
		"locked_at":       event.LockedAt,
		"locked_until":    event.LockedUntil,
		"ip_address":      event.IPAddress,
	}
	p.logEvent(eventAccountLocked, event.AccountID, event.LockedAt, payload)
	return nil
}

// PublishAccountUnlocked logs auth.account.unlocked events.
func (p *StubPublisher) PublishAccountUnlocked(_ context.Context, event domain.AccountUnlockedEvent) error {
	payload := map[string]any{
		"account_id":  event.AccountID,
		"unlocked_at": event.UnlockedAt,
		"trigger":     event.Trigger,
	}
	p.logEvent(eventAccountUnlocked, event.AccountID, event.UnlockedAt, payload)
	return nil
}

// PublishPasswordChanged logs auth.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"account_id":    event.AccountID,
		"changed_at":    event.ChangedAt,
		"changed_by":    event.ChangedBy,
		"token_version": event.TokenVersion,
	}
	p.logEvent(eventPasswordChanged, event.AccountID, event.ChangedAt, payload)
	return nil
}

// PublishSecondFactorEnabled logs auth.second_factor.enabled events.
func (p *StubPublisher) PublishSecondFactorEnabled(_ context.Context, event domain.SecondFactorEnabledEvent) error {
	payload := map[string]any{
		"account_id": event.AccountID,
		"enabled_at": event.EnabledAt,
	}
	p.logEvent(eventSecondFactorEnabled, event.AccountID, event.EnabledAt, payload)
	return nil
}

// PublishSecondFactorDisabled logs auth.second_factor.disabled events.
func (p *StubPublisher) PublishSecondFactorDisabled(_ context.Context, event domain.SecondFactorDisabledEvent) error {
	payload := map[string]any{
		"account_id":  event.AccountID,
		"disabled_at": event.DisabledAt,
	}
	p.logEvent(eventSecondFactorOff, event.AccountID, event.DisabledAt, payload)
	return nil
}

// PublishNewDevice logs auth.login.new_device events.
func (p *StubPublisher) PublishNewDevice(_ context.Context, event domain.NewDeviceEvent) error {
	payload := map[string]any{
		"account_id":         event.AccountID,
		"session_id":         event.SessionID,
		"ip_address":         event.IPAddress,
		"device_fingerprint": event.DeviceFingerprint,
		"seen_at":            event.SeenAt,
	}
	p.logEvent(eventNewDevice, event.AccountID, event.SeenAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
