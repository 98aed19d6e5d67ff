package usecase

import "fmt"

// Rejection codes surfaced by the login pipeline and related flows. They are
// stable API values, mapped to HTTP statuses at the transport layer.
const (
	CodeMissingCredentials  = "MISSING_CREDENTIALS"
	CodeAccountLocked       = "ACCOUNT_LOCKED"
	CodeAccountSuspended    = "ACCOUNT_SUSPENDED"
	CodeCaptchaRequired     = "CAPTCHA_REQUIRED"
	CodeCaptchaInvalid      = "CAPTCHA_INVALID"
	CodeCaptchaScoreTooLow  = "CAPTCHA_SCORE_TOO_LOW"
	CodeCaptchaServiceError = "CAPTCHA_SERVICE_ERROR"
	CodeCaptchaTimeout      = "CAPTCHA_TIMEOUT"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeSecondFactorOwed    = "2FA_REQUIRED"
	CodeInvalidSecondFactor = "INVALID_2FA_CODE"
	CodePasswordExpired     = "PASSWORD_EXPIRED"
	CodeContinuationExpired = "CONTINUATION_EXPIRED"
)

// LoginError is a terminal rejection from the login pipeline. Metadata fields
// are populated per code and serialized into the error response body.
type LoginError struct {
	Code    string
	Message string

	// ACCOUNT_LOCKED / ACCOUNT_SUSPENDED
	RemainingMinutes int

	// INVALID_CREDENTIALS
	FailedAttempts    int
	RemainingAttempts int

	// PASSWORD_EXPIRED
	RequiresPasswordChange bool

	// 2FA_REQUIRED
	ContinuationToken string
}

// Error implements error.
func (e *LoginError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}
