package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/certbridge/auth-service/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response payload.
type ErrorCase struct {
	Err     error
	Status  int
	Code    string
	Message string
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackCode, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Code, cs.Message))
			return
		}
	}

	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackCode, fallbackMessage))
}

// StatusForLoginCode maps a login rejection code to its HTTP status.
func StatusForLoginCode(code string) int {
	switch code {
	case usecase.CodeAccountLocked, usecase.CodeAccountSuspended:
		return http.StatusLocked
	case usecase.CodeInvalidCredentials,
		usecase.CodeInvalidSecondFactor,
		usecase.CodePasswordExpired,
		usecase.CodeContinuationExpired:
		return http.StatusUnauthorized
	case usecase.CodeCaptchaServiceError:
		return http.StatusServiceUnavailable
	default:
		// MISSING_CREDENTIALS, the CAPTCHA family, 2FA_REQUIRED.
		return http.StatusBadRequest
	}
}

// RespondWithLoginError serializes a *usecase.LoginError with its metadata.
// Any other error reads as an internal failure.
func RespondWithLoginError(c *gin.Context, err error) string {
	var loginErr *usecase.LoginError
	if !errors.As(err, &loginErr) {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "INTERNAL", "login failed"))
		return "internal_error"
	}

	resp := ErrorResponse{
		Error: ErrorDetail{
			Code:                   loginErr.Code,
			Message:                loginErr.Message,
			RemainingMinutes:       loginErr.RemainingMinutes,
			FailedAttempts:         loginErr.FailedAttempts,
			RemainingAttempts:      loginErr.RemainingAttempts,
			RequiresPasswordChange: loginErr.RequiresPasswordChange,
			ContinuationToken:      loginErr.ContinuationToken,
		},
		TraceID: traceIDFrom(c),
	}

	c.JSON(StatusForLoginCode(loginErr.Code), resp)
	return loginErr.Code
}
