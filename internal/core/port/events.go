package port

import (
	"context"

	"github.com/certbridge/auth-service/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus. Delivery of the
// resulting notifications (email, SMS) is a downstream concern.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
	PublishAccountUnlocked(ctx context.Context, event domain.AccountUnlockedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishSecondFactorEnabled(ctx context.Context, event domain.SecondFactorEnabledEvent) error
	PublishSecondFactorDisabled(ctx context.Context, event domain.SecondFactorDisabledEvent) error
	PublishNewDevice(ctx context.Context, event domain.NewDeviceEvent) error
}
