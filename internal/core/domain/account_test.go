package domain

import (
	"testing"
	"time"
)

var accountNow = time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC)

func lockedUntil(d time.Duration) *time.Time {
	t := accountNow.Add(d)
	return &t
}

func TestLockExpired(t *testing.T) {
	tests := []struct {
		name    string
		account Account
		want    bool
	}{
		{"active account never expires", Account{State: AccountStateActive}, false},
		{"suspended account never expires", Account{State: AccountStateSuspended}, false},
		{"locked without deadline counts as expired", Account{State: AccountStateLocked}, true},
		{"future deadline", Account{State: AccountStateLocked, LockedUntil: lockedUntil(10 * time.Minute)}, false},
		{"deadline exactly now", Account{State: AccountStateLocked, LockedUntil: lockedUntil(0)}, true},
		{"past deadline", Account{State: AccountStateLocked, LockedUntil: lockedUntil(-time.Minute)}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.account.LockExpired(accountNow); got != tc.want {
				t.Fatalf("LockExpired = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRemainingLockMinutesRoundsUp(t *testing.T) {
	tests := []struct {
		name      string
		remaining time.Duration
		want      int
	}{
		{"partial minute rounds up", 10*time.Minute + 30*time.Second, 11},
		{"exact minutes stay exact", 30 * time.Minute, 30},
		{"seconds round up to one", 5 * time.Second, 1},
		{"already elapsed floors at one", -time.Minute, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			account := Account{State: AccountStateLocked, LockedUntil: lockedUntil(tc.remaining)}
			if got := account.RemainingLockMinutes(accountNow); got != tc.want {
				t.Fatalf("RemainingLockMinutes = %d, want %d", got, tc.want)
			}
		})
	}

	t.Run("missing deadline reports one", func(t *testing.T) {
		account := Account{State: AccountStateLocked}
		if got := account.RemainingLockMinutes(accountNow); got != 1 {
			t.Fatalf("RemainingLockMinutes = %d, want 1", got)
		}
	})
}

func TestPasswordDaysRemainingFloors(t *testing.T) {
	tests := []struct {
		name       string
		lastChange time.Time
		want       int
	}{
		{"fresh password", accountNow, 90},
		{"partial day floors down", accountNow.Add(-83*24*time.Hour + time.Hour), 7},
		{"exact boundary", accountNow.Add(-60 * 24 * time.Hour), 30},
		{"expired goes negative", accountNow.Add(-92 * 24 * time.Hour), -2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			account := Account{PasswordExpiryDays: 90, LastPasswordChange: tc.lastChange}
			if got := account.PasswordDaysRemaining(accountNow); got != tc.want {
				t.Fatalf("PasswordDaysRemaining = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestPasswordExpired(t *testing.T) {
	fresh := Account{PasswordExpiryDays: 90, LastPasswordChange: accountNow.Add(-24 * time.Hour)}
	if fresh.PasswordExpired(accountNow) {
		t.Fatal("fresh password reported expired")
	}

	stale := Account{PasswordExpiryDays: 90, LastPasswordChange: accountNow.Add(-90 * 24 * time.Hour)}
	if !stale.PasswordExpired(accountNow) {
		t.Fatal("password at the deadline should be expired")
	}

	defaulted := Account{LastPasswordChange: accountNow.Add(-91 * 24 * time.Hour)}
	if !defaulted.PasswordExpired(accountNow) {
		t.Fatal("zero expiry days should fall back to the 90-day default")
	}
}

func TestPasswordExpiryWarning(t *testing.T) {
	tests := []struct {
		name     string
		daysLeft int
		want     int
		warn     bool
	}{
		{"well outside the window", 60, 0, false},
		{"just outside", 31, 0, false},
		{"at the outer edge", 30, 30, true},
		{"between thresholds", 13, 13, true},
		{"one day", 1, 1, true},
		{"expires today", 0, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			account := Account{
				PasswordExpiryDays: 90,
				LastPasswordChange: accountNow.Add(-time.Duration(90-tc.daysLeft)*24*time.Hour + time.Hour),
			}
			days, warn := account.PasswordExpiryWarning(accountNow)
			if warn != tc.warn {
				t.Fatalf("warn = %v, want %v", warn, tc.warn)
			}
			if warn && days != tc.want {
				t.Fatalf("days = %d, want %d", days, tc.want)
			}
		})
	}

	t.Run("expired password never warns", func(t *testing.T) {
		account := Account{
			PasswordExpiryDays: 90,
			LastPasswordChange: accountNow.Add(-92 * 24 * time.Hour),
		}
		if _, warn := account.PasswordExpiryWarning(accountNow); warn {
			t.Fatal("expired password reported a warning")
		}
	})
}

func TestCaptchaOwed(t *testing.T) {
	tests := []struct {
		name      string
		failed    int
		threshold int
		want      bool
	}{
		{"below threshold", 2, 3, false},
		{"at threshold", 3, 3, true},
		{"above threshold", 5, 3, true},
		{"disabled threshold", 10, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			account := Account{FailedAttempts: tc.failed}
			if got := account.CaptchaOwed(tc.threshold); got != tc.want {
				t.Fatalf("CaptchaOwed(%d) = %v, want %v", tc.threshold, got, tc.want)
			}
		})
	}
}
