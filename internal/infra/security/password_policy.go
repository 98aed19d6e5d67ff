package security

import "fmt"

const (
	defaultMinPasswordLength   = 12
	defaultMaxPasswordLength   = 64
	defaultMinCharacterClasses = 4
	defaultMinZxcvbnScore      = 3
)

// PasswordContext carries identity attributes so strength checks can reject
// passwords derived from the account's own data.
type PasswordContext struct {
	Username string
	Email    string
}

// DefaultPasswordValidator returns the built-in validator enforcing the service
// password policy with length, character class, and zxcvbn strength checks.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(defaultMinPasswordLength),
		MaxLengthRule(defaultMaxPasswordLength),
		RequireCharacterClassesRule(defaultMinCharacterClasses),
		RequirePasswordStrengthRule(defaultMinZxcvbnScore),
	)
}

// PasswordPolicy adapts the rule set to caller-supplied limits and account context.
type PasswordPolicy struct {
	minLength int
	maxLength int
	classes   int
	minScore  int
}

// NewPasswordPolicy builds a policy using the provided limits. Non-positive
// values fall back to the built-in defaults.
func NewPasswordPolicy(minLength, maxLength, classes, minScore int) *PasswordPolicy {
	if minLength <= 0 {
		minLength = defaultMinPasswordLength
	}
	if maxLength <= 0 {
		maxLength = defaultMaxPasswordLength
	}
	if classes <= 0 {
		classes = defaultMinCharacterClasses
	}
	if minScore <= 0 {
		minScore = defaultMinZxcvbnScore
	}
	return &PasswordPolicy{
		minLength: minLength,
		maxLength: maxLength,
		classes:   classes,
		minScore:  minScore,
	}
}

// Validate applies the configured rules, feeding account attributes into the
// strength estimator as disallowed inputs.
func (p *PasswordPolicy) Validate(password string, ctx PasswordContext) error {
	if p == nil {
		return fmt.Errorf("password policy not configured")
	}

	inputs := make([]string, 0, 2)
	if ctx.Username != "" {
		inputs = append(inputs, ctx.Username)
	}
	if ctx.Email != "" {
		inputs = append(inputs, ctx.Email)
	}

	validator := NewPasswordValidator(
		MinLengthRule(p.minLength),
		MaxLengthRule(p.maxLength),
		RequireCharacterClassesRule(p.classes),
		RequirePasswordStrengthRule(p.minScore, inputs...),
	)

	return validator.Validate(password)
}
