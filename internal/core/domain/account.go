package domain

import (
	"math"
	"time"
)

// AccountState enumerates the mutually exclusive account states.
type AccountState string

const (
	AccountStateActive    AccountState = "active"
	AccountStateLocked    AccountState = "locked"
	AccountStateSuspended AccountState = "suspended"
)

// SecondFactorMode enumerates the phases of the TOTP provisioning handshake.
type SecondFactorMode string

const (
	SecondFactorDisabled SecondFactorMode = "disabled"
	SecondFactorPending  SecondFactorMode = "pending"
	SecondFactorEnabled  SecondFactorMode = "enabled"
)

// Account mirrors the persisted representation in the accounts table.
// State is a single tagged value; LockedUntil is only meaningful while
// State is AccountStateLocked.
type Account struct {
	ID                   string
	Username             string
	Email                string
	Role                 string
	PasswordHash         string
	State                AccountState
	LockedUntil          *time.Time
	FailedAttempts       int
	SecondFactorFailures int
	SecondFactorMode     SecondFactorMode
	SecondFactorSecret   string
	SecondFactorTemp     string
	TokenVersion         int64
	PasswordExpiryDays   int
	LastPasswordChange   time.Time
	RegisteredAt         time.Time
	LastLogin            *time.Time
}

// PasswordHistoryEntry tracks a superseded credential hash for reuse prevention.
type PasswordHistoryEntry struct {
	ID           string
	AccountID    string
	PasswordHash string
	ChangedAt    time.Time
}

// PendingLogin is the server-side continuation created when a first factor
// succeeds but a TOTP code is still owed. It is short-lived and single use.
type PendingLogin struct {
	AccountID         string
	IP                string
	DeviceFingerprint string
	CreatedAt         time.Time
}

// LockExpired reports whether a locked account's lockout window has elapsed.
// Suspended accounts never expire.
func (a Account) LockExpired(at time.Time) bool {
	if a.State != AccountStateLocked {
		return false
	}
	if a.LockedUntil == nil {
		return true
	}
	return !a.LockedUntil.After(at)
}

// RemainingLockMinutes returns the whole minutes left on the lockout,
// rounded up and never below one.
func (a Account) RemainingLockMinutes(at time.Time) int {
	if a.LockedUntil == nil {
		return 1
	}
	remaining := a.LockedUntil.Sub(at)
	if remaining <= 0 {
		return 1
	}
	minutes := int(math.Ceil(remaining.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// PasswordExpiresAt computes the absolute expiry deadline for the current password.
func (a Account) PasswordExpiresAt() time.Time {
	days := a.PasswordExpiryDays
	if days <= 0 {
		days = 90
	}
	return a.LastPasswordChange.Add(time.Duration(days) * 24 * time.Hour)
}

// PasswordExpired reports whether the current password is past its expiry deadline.
func (a Account) PasswordExpired(at time.Time) bool {
	return !a.PasswordExpiresAt().After(at)
}

// PasswordDaysRemaining returns the number of whole days before the password
// expires, rounded down. Negative values mean it already expired.
func (a Account) PasswordDaysRemaining(at time.Time) int {
	remaining := a.PasswordExpiresAt().Sub(at)
	return int(math.Floor(remaining.Hours() / 24))
}

// passwordWarningWindowDays is the outermost expiry warning threshold.
const passwordWarningWindowDays = 30

// PasswordExpiryWarning returns the whole days left on the password when it
// sits inside the warning window (30 days or fewer remaining, not yet past
// the deadline). Clients escalate styling at the 30/14/7/1 marks.
func (a Account) PasswordExpiryWarning(at time.Time) (int, bool) {
	days := a.PasswordDaysRemaining(at)
	if days < 0 || days > passwordWarningWindowDays {
		return 0, false
	}
	return days, true
}

// CaptchaOwed reports whether the account accumulated enough failed attempts
// to owe a challenge. It is derived from the counter, never stored.
func (a Account) CaptchaOwed(threshold int) bool {
	if threshold <= 0 {
		return false
	}
	return a.FailedAttempts >= threshold
}

// CaptchaResult captures the verdict of the external challenge verifier.
type CaptchaResult struct {
	Accepted bool
	Score    float64
	Errors   []string
}
