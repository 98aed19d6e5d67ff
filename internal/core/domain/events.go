package domain

import "time"

// AccountRegisteredEvent represents the payload for auth.account.registered messages.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    string
	Username     string
	Email        string
	Role         string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// AccountLockedEvent represents the payload for auth.account.locked messages.
type AccountLockedEvent struct {
	EventID        string
	AccountID      string
	FailedAttempts int
	LockedAt       time.Time
	LockedUntil    time.Time
	IPAddress      string
	Metadata       map[string]any
}

// AccountUnlockedEvent represents the payload for auth.account.unlocked messages.
type AccountUnlockedEvent struct {
	EventID    string
	AccountID  string
	UnlockedAt time.Time
	// Trigger distinguishes the lazy login-path unlock from the periodic sweep.
	Trigger  string
	Metadata map[string]any
}

// PasswordChangedEvent represents the payload for auth.password.changed messages.
type PasswordChangedEvent struct {
	EventID      string
	AccountID    string
	ChangedAt    time.Time
	ChangedBy    string
	TokenVersion int64
	Metadata     map[string]any
}

// SecondFactorEnabledEvent represents the payload for auth.second_factor.enabled messages.
type SecondFactorEnabledEvent struct {
	EventID   string
	AccountID string
	EnabledAt time.Time
	Metadata  map[string]any
}

// SecondFactorDisabledEvent represents the payload for auth.second_factor.disabled messages.
type SecondFactorDisabledEvent struct {
	EventID    string
	AccountID  string
	DisabledAt time.Time
	Metadata   map[string]any
}

// NewDeviceEvent represents the payload for auth.login.new_device messages.
// It drives an external notification; it never blocks a login.
type NewDeviceEvent struct {
	EventID           string
	AccountID         string
	SessionID         string
	IPAddress         string
	DeviceFingerprint string
	SeenAt            time.Time
	Metadata          map[string]any
}
