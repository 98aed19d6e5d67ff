package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/certbridge/auth-service/internal/usecase"
)

func TestStatusForLoginCode(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{usecase.CodeAccountLocked, http.StatusLocked},
		{usecase.CodeAccountSuspended, http.StatusLocked},
		{usecase.CodeInvalidCredentials, http.StatusUnauthorized},
		{usecase.CodeInvalidSecondFactor, http.StatusUnauthorized},
		{usecase.CodePasswordExpired, http.StatusUnauthorized},
		{usecase.CodeContinuationExpired, http.StatusUnauthorized},
		{usecase.CodeMissingCredentials, http.StatusBadRequest},
		{usecase.CodeCaptchaRequired, http.StatusBadRequest},
		{usecase.CodeCaptchaInvalid, http.StatusBadRequest},
		{usecase.CodeCaptchaScoreTooLow, http.StatusBadRequest},
		{usecase.CodeCaptchaTimeout, http.StatusBadRequest},
		{usecase.CodeCaptchaServiceError, http.StatusServiceUnavailable},
		{usecase.CodeSecondFactorOwed, http.StatusBadRequest},
	}

	for _, tc := range cases {
		if got := StatusForLoginCode(tc.code); got != tc.want {
			t.Errorf("StatusForLoginCode(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestRespondWithLoginErrorSerializesMetadata(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)

	outcome := RespondWithLoginError(c, &usecase.LoginError{
		Code:             usecase.CodeAccountLocked,
		Message:          "account is temporarily locked",
		RemainingMinutes: 30,
	})
	if outcome != usecase.CodeAccountLocked {
		t.Fatalf("expected outcome %s, got %s", usecase.CodeAccountLocked, outcome)
	}
	if rr.Code != http.StatusLocked {
		t.Fatalf("expected 423, got %d", rr.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Error.Code != usecase.CodeAccountLocked || resp.Error.RemainingMinutes != 30 {
		t.Fatalf("unexpected error detail: %+v", resp.Error)
	}
}

func TestRespondWithLoginErrorFallsBackToInternal(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)

	outcome := RespondWithLoginError(c, http.ErrServerClosed)
	if outcome != "internal_error" {
		t.Fatalf("expected internal_error outcome, got %s", outcome)
	}
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}
