package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/certbridge/auth-service/internal/core/domain"
	"github.com/certbridge/auth-service/internal/core/port"
	"github.com/certbridge/auth-service/internal/infra/config"
)

const schemaVersion = "1.0"

// Event type names double as topic suffixes under the configured prefix.
const (
	eventAccountRegistered   = "auth.account.registered"
	eventAccountLocked       = "auth.account.locked"
	eventAccountUnlocked     = "auth.account.unlocked"
	eventPasswordChanged     = "auth.password.changed"
	eventSecondFactorEnabled = "auth.second_factor.enabled"
	eventSecondFactorOff     = "auth.second_factor.disabled"
	eventNewDevice           = "auth.login.new_device"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	AccountID string            `json:"account_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		AccountID: accountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata: map[string]string{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(accountID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAccountRegistered publishes auth.account.registered events.
func (p *EventPublisher) PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error {
	payload := struct {
		AccountID    string         `json:"account_id"`
		Username     string         `json:"username"`
		Email        string         `json:"email"`
		Role         string         `json:"role"`
		RegisteredAt time.Time      `json:"registered_at"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:    event.AccountID,
		Username:     event.Username,
		Email:        event.Email,
		Role:         event.Role,
		RegisteredAt: event.RegisteredAt.UTC(),
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventAccountRegistered, event.AccountID, event.RegisteredAt, payload)
}

// PublishAccountLocked publishes auth.account.locked events.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		AccountID      string         `json:"account_id"`
		FailedAttempts int            `json:"failed_attempts"`
		LockedAt       time.Time      `json:"locked_at"`
		LockedUntil    time.Time      `json:"locked_until"`
		IPAddress      string         `json:"ip_address,omitempty"`
		Metadata       map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:      event.AccountID,
		FailedAttempts: event.FailedAttempts,
		LockedAt:       event.LockedAt.UTC(),
		LockedUntil:    event.LockedUntil.UTC(),
		IPAddress:      event.IPAddress,
		Metadata:       event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventAccountLocked, event.AccountID, event.LockedAt, payload)
}

// PublishAccountUnlocked publishes auth.account.unlocked events.
func (p *EventPublisher) PublishAccountUnlocked(ctx context.Context, event domain.AccountUnlockedEvent) error {
	payload := struct {
		AccountID  string         `json:"account_id"`
		UnlockedAt time.Time      `json:"unlocked_at"`
		Trigger    string         `json:"trigger"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:  event.AccountID,
		UnlockedAt: event.UnlockedAt.UTC(),
		Trigger:    event.Trigger,
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventAccountUnlocked, event.AccountID, event.UnlockedAt, payload)
}

// PublishPasswordChanged publishes auth.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		AccountID    string         `json:"account_id"`
		ChangedAt    time.Time      `json:"changed_at"`
		ChangedBy    string         `json:"changed_by"`
		TokenVersion int64          `json:"token_version"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:    event.AccountID,
		ChangedAt:    event.ChangedAt.UTC(),
		ChangedBy:    event.ChangedBy,
		TokenVersion: event.TokenVersion,
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventPasswordChanged, event.AccountID, event.ChangedAt, payload)
}

// PublishSecondFactorEnabled publishes auth.second_factor.enabled events.
func (p *EventPublisher) PublishSecondFactorEnabled(ctx context.Context, event domain.SecondFactorEnabledEvent) error {
	payload := struct {
		AccountID string         `json:"account_id"`
		EnabledAt time.Time      `json:"enabled_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		AccountID: event.AccountID,
		EnabledAt: event.EnabledAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventSecondFactorEnabled, event.AccountID, event.EnabledAt, payload)
}

// PublishSecondFactorDisabled publishes auth.second_factor.disabled events.
func (p *EventPublisher) PublishSecondFactorDisabled(ctx context.Context, event domain.SecondFactorDisabledEvent) error {
	payload := struct {
		AccountID  string         `json:"account_id"`
		DisabledAt time.Time      `json:"disabled_at"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:  event.AccountID,
		DisabledAt: event.DisabledAt.UTC(),
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventSecondFactorOff, event.AccountID, event.DisabledAt, payload)
}

// PublishNewDevice publishes auth.login.new_device events.
func (p *EventPublisher) PublishNewDevice(ctx context.Context, event domain.NewDeviceEvent) error {
	payload := struct {
		AccountID         string         `json:"account_id"`
		SessionID         string         `json:"session_id"`
		IPAddress         string         `json:"ip_address,omitempty"`
		DeviceFingerprint string         `json:"device_fingerprint"`
		SeenAt            time.Time      `json:"seen_at"`
		Metadata          map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:         event.AccountID,
		SessionID:         event.SessionID,
		IPAddress:         event.IPAddress,
		DeviceFingerprint: event.DeviceFingerprint,
		SeenAt:            event.SeenAt.UTC(),
		Metadata:          event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventNewDevice, event.AccountID, event.SeenAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
