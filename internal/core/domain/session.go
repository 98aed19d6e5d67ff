package domain

import "time"

// MaxSessionsPerAccount bounds the recency-ordered session list. Inserting
// beyond the cap evicts the oldest entry.
const MaxSessionsPerAccount = 5

// Session represents a retained login session record for an account.
type Session struct {
	ID                string
	AccountID         string
	IP                string
	UserAgent         string
	DeviceFingerprint string
	CreatedAt         time.Time
}

// SessionList is a most-recent-first view of an account's sessions.
type SessionList []Session

// HasFingerprint reports whether any retained session shares the supplied
// device fingerprint. An empty fingerprint never matches.
func (l SessionList) HasFingerprint(fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	for _, s := range l {
		if s.DeviceFingerprint == fingerprint {
			return true
		}
	}
	return false
}
