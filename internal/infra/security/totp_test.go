package security

import (
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func TestGenerateTOTPEnrollment(t *testing.T) {
	enrollment, err := GenerateTOTPEnrollment("CertBridge", "jsmith@example.com")
	if err != nil {
		t.Fatalf("GenerateTOTPEnrollment returned error: %v", err)
	}

	if enrollment.Secret == "" {
		t.Fatal("expected non-empty secret")
	}
	if enrollment.ProvisionURI == "" {
		t.Fatal("expected non-empty provisioning URI")
	}
	if len(enrollment.QRCodePNG) == 0 {
		t.Fatal("expected QR code PNG bytes")
	}

	// PNG signature.
	if enrollment.QRCodePNG[0] != 0x89 || enrollment.QRCodePNG[1] != 'P' {
		t.Fatal("QR code payload is not a PNG")
	}
}

func TestValidateTOTPAcceptsAdjacentSteps(t *testing.T) {
	enrollment, err := GenerateTOTPEnrollment("CertBridge", "jsmith@example.com")
	if err != nil {
		t.Fatalf("GenerateTOTPEnrollment returned error: %v", err)
	}

	now := time.Date(2024, 5, 12, 10, 30, 0, 0, time.UTC)

	code, err := totp.GenerateCodeCustom(enrollment.Secret, now, totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}

	if !ValidateTOTP(code, enrollment.Secret, now) {
		t.Fatal("code rejected at its own step")
	}
	if !ValidateTOTP(code, enrollment.Secret, now.Add(30*time.Second)) {
		t.Fatal("code rejected one step late despite skew tolerance")
	}
	if !ValidateTOTP(code, enrollment.Secret, now.Add(-30*time.Second)) {
		t.Fatal("code rejected one step early despite skew tolerance")
	}
}

func TestValidateTOTPRejectsStaleCode(t *testing.T) {
	enrollment, err := GenerateTOTPEnrollment("CertBridge", "jsmith@example.com")
	if err != nil {
		t.Fatalf("GenerateTOTPEnrollment returned error: %v", err)
	}

	now := time.Date(2024, 5, 12, 10, 30, 0, 0, time.UTC)

	code, err := totp.GenerateCodeCustom(enrollment.Secret, now, totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}

	if ValidateTOTP(code, enrollment.Secret, now.Add(90*time.Second)) {
		t.Fatal("code accepted two steps outside the window")
	}
	if ValidateTOTP("000000", enrollment.Secret, now) {
		t.Fatal("static code accepted")
	}
}
