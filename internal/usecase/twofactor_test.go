package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/certbridge/auth-service/internal/core/domain"
)

func newTwoFactorService(t *testing.T, accounts *stubAccountRepository, events *stubPublisher) *TwoFactorService {
	t.Helper()
	return NewTwoFactorService(accounts, events, "CertBridge", zaptest.NewLogger(t)).
		WithClock(func() time.Time { return testNow })
}

func TestTwoFactorSetupConfirm(t *testing.T) {
	accounts := newStubAccountRepository(testAccount(t))
	events := &stubPublisher{}
	service := newTwoFactorService(t, accounts, events)

	enrollment, err := service.Setup(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	if enrollment.Secret == "" || enrollment.ProvisionURI == "" || len(enrollment.QRCodePNG) == 0 {
		t.Fatal("incomplete enrollment payload")
	}

	pending := accounts.get("acct-1")
	if pending.SecondFactorMode != domain.SecondFactorPending || pending.SecondFactorTemp != enrollment.Secret {
		t.Fatalf("secret not staged as pending: %+v", pending)
	}
	if pending.SecondFactorSecret != "" {
		t.Fatal("a pending secret must not be live")
	}

	if err := service.Confirm(context.Background(), "acct-1", totpCode(t, enrollment.Secret, testNow)); err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}

	enabled := accounts.get("acct-1")
	if enabled.SecondFactorMode != domain.SecondFactorEnabled || enabled.SecondFactorSecret != enrollment.Secret {
		t.Fatalf("secret not promoted: %+v", enabled)
	}
	if enabled.SecondFactorTemp != "" {
		t.Fatal("temp secret must be cleared on promotion")
	}
	if len(events.tfEnabled) != 1 {
		t.Fatalf("expected one enabled event, got %d", len(events.tfEnabled))
	}
}

func TestTwoFactorSetupReplacesPendingSecret(t *testing.T) {
	accounts := newStubAccountRepository(testAccount(t))
	service := newTwoFactorService(t, accounts, &stubPublisher{})

	first, err := service.Setup(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("first Setup returned error: %v", err)
	}
	second, err := service.Setup(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("second Setup returned error: %v", err)
	}
	if first.Secret == second.Secret {
		t.Fatal("repeated setup must mint a fresh secret")
	}

	// Only the latest secret confirms.
	if err := service.Confirm(context.Background(), "acct-1", totpCode(t, first.Secret, testNow)); !errors.Is(err, ErrInvalidSecondFactorCode) {
		t.Fatalf("stale secret must not confirm, got %v", err)
	}
	if err := service.Confirm(context.Background(), "acct-1", totpCode(t, second.Secret, testNow)); err != nil {
		t.Fatalf("latest secret failed to confirm: %v", err)
	}
}

func TestTwoFactorSetupRejectedWhenEnabled(t *testing.T) {
	account := testAccount(t)
	account.SecondFactorMode = domain.SecondFactorEnabled
	account.SecondFactorSecret = "JBSWY3DPEHPK3PXP"
	service := newTwoFactorService(t, newStubAccountRepository(account), &stubPublisher{})

	if _, err := service.Setup(context.Background(), "acct-1"); !errors.Is(err, ErrSecondFactorEnabled) {
		t.Fatalf("expected ErrSecondFactorEnabled, got %v", err)
	}
}

func TestTwoFactorConfirmWithoutPendingSetup(t *testing.T) {
	service := newTwoFactorService(t, newStubAccountRepository(testAccount(t)), &stubPublisher{})

	if err := service.Confirm(context.Background(), "acct-1", "123456"); !errors.Is(err, ErrNoPendingSetup) {
		t.Fatalf("expected ErrNoPendingSetup, got %v", err)
	}
}

func TestTwoFactorConfirmBadCodeKeepsPending(t *testing.T) {
	accounts := newStubAccountRepository(testAccount(t))
	service := newTwoFactorService(t, accounts, &stubPublisher{})

	enrollment, err := service.Setup(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}

	if err := service.Confirm(context.Background(), "acct-1", "000000"); !errors.Is(err, ErrInvalidSecondFactorCode) {
		t.Fatalf("expected ErrInvalidSecondFactorCode, got %v", err)
	}

	account := accounts.get("acct-1")
	if account.SecondFactorMode != domain.SecondFactorPending || account.SecondFactorTemp != enrollment.Secret {
		t.Fatalf("bad code must leave the pending state untouched: %+v", account)
	}
}

func TestTwoFactorDisable(t *testing.T) {
	account := testAccount(t)
	account.SecondFactorMode = domain.SecondFactorEnabled
	account.SecondFactorSecret = "JBSWY3DPEHPK3PXP"
	accounts := newStubAccountRepository(account)
	events := &stubPublisher{}
	service := newTwoFactorService(t, accounts, events)

	code := totpCode(t, account.SecondFactorSecret, testNow)
	if err := service.Disable(context.Background(), "acct-1", testPassword, code); err != nil {
		t.Fatalf("Disable returned error: %v", err)
	}

	updated := accounts.get("acct-1")
	if updated.SecondFactorMode != domain.SecondFactorDisabled || updated.SecondFactorSecret != "" {
		t.Fatalf("secret not cleared: %+v", updated)
	}
	if updated.TokenVersion != 2 {
		t.Fatalf("disable must invalidate outstanding tokens, version %d", updated.TokenVersion)
	}
	if len(events.tfDisabled) != 1 {
		t.Fatalf("expected one disabled event, got %d", len(events.tfDisabled))
	}
}

func TestTwoFactorDisableRequiresPasswordAndCode(t *testing.T) {
	account := testAccount(t)
	account.SecondFactorMode = domain.SecondFactorEnabled
	account.SecondFactorSecret = "JBSWY3DPEHPK3PXP"
	service := newTwoFactorService(t, newStubAccountRepository(account), &stubPublisher{})

	code := totpCode(t, account.SecondFactorSecret, testNow)
	if err := service.Disable(context.Background(), "acct-1", "wrong-password", code); !errors.Is(err, ErrInvalidCurrentPassword) {
		t.Fatalf("expected ErrInvalidCurrentPassword, got %v", err)
	}
	if err := service.Disable(context.Background(), "acct-1", testPassword, "000000"); !errors.Is(err, ErrInvalidSecondFactorCode) {
		t.Fatalf("expected ErrInvalidSecondFactorCode, got %v", err)
	}
}

func TestTwoFactorDisableWhenNotEnabled(t *testing.T) {
	service := newTwoFactorService(t, newStubAccountRepository(testAccount(t)), &stubPublisher{})

	if err := service.Disable(context.Background(), "acct-1", testPassword, "123456"); !errors.Is(err, ErrSecondFactorNotEnabled) {
		t.Fatalf("expected ErrSecondFactorNotEnabled, got %v", err)
	}
}
