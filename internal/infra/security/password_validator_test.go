package security

import (
	"errors"
	"testing"
)

func assertViolation(t *testing.T, err error, code string) {
	t.Helper()

	var violation *PasswordValidationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected PasswordValidationError, got %v", err)
	}
	if violation.Code != code {
		t.Fatalf("expected violation code %q, got %q", code, violation.Code)
	}
}

func TestPasswordPolicyAcceptsStrongPassword(t *testing.T) {
	policy := NewPasswordPolicy(0, 0, 0, 0)

	err := policy.Validate("Tr!ckyPl@tform#2024", PasswordContext{Username: "jsmith"})
	if err != nil {
		t.Fatalf("expected strong password to pass, got %v", err)
	}
}

func TestPasswordPolicyRejectsShortPassword(t *testing.T) {
	policy := NewPasswordPolicy(0, 0, 0, 0)

	err := policy.Validate("Ab1!x", PasswordContext{})
	assertViolation(t, err, "min_length")
}

func TestPasswordPolicyRejectsOverlongPassword(t *testing.T) {
	policy := NewPasswordPolicy(12, 20, 4, 0)

	err := policy.Validate("Aa1!Aa1!Aa1!Aa1!Aa1!Aa1!", PasswordContext{})
	assertViolation(t, err, "max_length")
}

func TestPasswordPolicyRequiresAllCharacterClasses(t *testing.T) {
	policy := NewPasswordPolicy(0, 0, 0, 0)

	// Length is fine but there is no symbol or uppercase.
	err := policy.Validate("plainlowercase123", PasswordContext{})
	assertViolation(t, err, "character_classes")
}

func TestPasswordPolicyRejectsAccountDerivedPassword(t *testing.T) {
	policy := NewPasswordPolicy(0, 0, 0, 0)

	err := policy.Validate("Jsmith@Example1!", PasswordContext{
		Username: "jsmith",
		Email:    "jsmith@example.com",
	})
	if err == nil {
		t.Fatal("expected password built from account attributes to be rejected")
	}
}

func TestRequireDifferentFrom(t *testing.T) {
	rule := RequireDifferentFrom("Sup3r$ecretValue")

	if err := rule.Validate("Sup3r$ecretValue"); err == nil {
		t.Fatal("expected identical password to be rejected")
	}
	if err := rule.Validate("Changed$ecret99!"); err != nil {
		t.Fatalf("expected different password to pass, got %v", err)
	}
}
