package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/certbridge/auth-service/internal/core/domain"
)

// ErrorDetail carries the machine-readable rejection code plus per-code
// metadata serialized into the error envelope.
type ErrorDetail struct {
	Code                   string `json:"code"`
	Message                string `json:"message"`
	RemainingMinutes       int    `json:"remaining_minutes,omitempty"`
	FailedAttempts         int    `json:"failed_attempts,omitempty"`
	RemainingAttempts      int    `json:"remaining_attempts,omitempty"`
	RequiresPasswordChange bool   `json:"requires_password_change,omitempty"`
	ContinuationToken      string `json:"continuation_token,omitempty"`
}

// ErrorResponse is the generic error envelope with trace ID for debugging.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	return ErrorResponse{
		Error:   ErrorDetail{Code: code, Message: message},
		TraceID: traceIDFrom(c),
	}
}

func traceIDFrom(c *gin.Context) string {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)
	return traceIDStr
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccountSummary describes a minimal view of an account returned by the API.
type AccountSummary struct {
	ID                  string     `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	Role                string     `json:"role"`
	SecondFactorEnabled bool       `json:"second_factor_enabled"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
}

func newAccountSummary(account domain.Account) AccountSummary {
	return AccountSummary{
		ID:                  account.ID,
		Username:            account.Username,
		Email:               account.Email,
		Role:                account.Role,
		SecondFactorEnabled: account.SecondFactorMode == domain.SecondFactorEnabled,
		LastLogin:           account.LastLogin,
	}
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Identifier        string `json:"identifier" binding:"required"`
	Password          string `json:"password" binding:"required"`
	TwoFactorCode     string `json:"two_factor_code"`
	CaptchaToken      string `json:"captcha_token"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	AccessToken           string         `json:"access_token"`
	TokenType             string         `json:"token_type"`
	ExpiresIn             int            `json:"expires_in"`
	SessionID             string         `json:"session_id"`
	NewDevice             bool           `json:"new_device"`
	PasswordExpiresInDays *int           `json:"password_expires_in_days,omitempty"`
	Account               AccountSummary `json:"account"`
}

// TwoFactorCompleteRequest finishes a login whose first factor already succeeded.
type TwoFactorCompleteRequest struct {
	ContinuationToken string `json:"continuation_token" binding:"required"`
	Code              string `json:"code" binding:"required"`
}

// RegistrationRequest defines the account registration payload.
type RegistrationRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// RegistrationResponse contains the created account.
type RegistrationResponse struct {
	Account AccountSummary `json:"account"`
	Message string         `json:"message,omitempty"`
}

// PasswordChangeRequest defines the authenticated password change payload.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// TwoFactorSetupResponse returns the staged enrollment artifacts. The secret
// protects nothing until a code confirms it.
type TwoFactorSetupResponse struct {
	Secret       string `json:"secret"`
	ProvisionURI string `json:"provision_uri"`
	QRCodePNG    []byte `json:"qr_code_png,omitempty"`
}

// TwoFactorConfirmRequest carries the code proving authenticator possession.
type TwoFactorConfirmRequest struct {
	Code string `json:"code" binding:"required"`
}

// TwoFactorDisableRequest requires re-proving both factors before removal.
type TwoFactorDisableRequest struct {
	Password string `json:"password" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// SessionPayload is the API view of one retained session.
type SessionPayload struct {
	ID                string    `json:"id"`
	IP                string    `json:"ip,omitempty"`
	UserAgent         string    `json:"user_agent,omitempty"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	Current           bool      `json:"current"`
}

// SessionListResponse wraps the session registry listing.
type SessionListResponse struct {
	Sessions []SessionPayload `json:"sessions"`
	Total    int              `json:"total"`
}

func newSessionPayload(session domain.Session, currentSessionID string) SessionPayload {
	return SessionPayload{
		ID:                session.ID,
		IP:                session.IP,
		UserAgent:         session.UserAgent,
		DeviceFingerprint: session.DeviceFingerprint,
		CreatedAt:         session.CreatedAt,
		Current:           currentSessionID != "" && session.ID == currentSessionID,
	}
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports per-dependency readiness.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
