package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/certbridge/auth-service/internal/core/domain"
	"github.com/certbridge/auth-service/internal/core/port"
	"github.com/certbridge/auth-service/internal/infra/security"
	"github.com/certbridge/auth-service/internal/repository"
)

// ErrorDetail carries the machine-readable rejection code and a human message.
type ErrorDetail struct {
	Code                   string `json:"code"`
	Message                string `json:"message"`
	RequiresPasswordChange bool   `json:"requires_password_change,omitempty"`
}

// ErrorResponse matches the handlers error envelope.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	return ErrorResponse{
		Error:   ErrorDetail{Code: code, Message: message},
		TraceID: GetTraceID(c),
	}
}

// PasswordExpiryHeader announces the whole days left before the caller's
// password expires while it is inside the warning window.
const PasswordExpiryHeader = "X-Password-Expires-In-Days"

// Authenticator validates access tokens against the signing key and the
// account's current token version, so a password change or second factor
// removal cuts off previously issued tokens.
type Authenticator struct {
	tokens     *security.TokenManager
	accounts   port.AccountRepository
	cookieName string
	now        func() time.Time
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(tokens *security.TokenManager, accounts port.AccountRepository, cookieName string) *Authenticator {
	return &Authenticator{
		tokens:     tokens,
		accounts:   accounts,
		cookieName: cookieName,
		now:        time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	if now != nil {
		a.now = now
	}
	return a
}

// RequireAuth authenticates the request and blocks callers whose password
// has expired.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return a.middleware(false)
}

// RequireAuthAllowingExpiredPassword authenticates the request but lets an
// expired-password account through. The password change endpoint must stay
// reachable or expired accounts could never recover.
func (a *Authenticator) RequireAuthAllowingExpiredPassword() gin.HandlerFunc {
	return a.middleware(true)
}

func (a *Authenticator) middleware(allowExpiredPassword bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := a.extractToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "UNAUTHORIZED", "authentication required"))
			return
		}

		claims, err := a.tokens.Parse(raw)
		if err != nil {
			switch {
			case errors.Is(err, security.ErrTokenExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "TOKEN_EXPIRED", "access token expired"))
			default:
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "UNAUTHORIZED", "invalid access token"))
			}
			return
		}

		account, err := a.accounts.GetByID(c.Request.Context(), claims.AccountID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "UNAUTHORIZED", "invalid access token"))
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "INTERNAL", "authentication failed"))
			return
		}

		if int64(claims.TokenVersion) != account.TokenVersion {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "UNAUTHORIZED", "access token no longer valid"))
			return
		}

		now := a.now().UTC()
		switch account.State {
		case domain.AccountStateSuspended:
			c.AbortWithStatusJSON(http.StatusLocked,
				newErrorResponse(c, "ACCOUNT_SUSPENDED", "account is suspended"))
			return
		case domain.AccountStateLocked:
			if !account.LockExpired(now) {
				c.AbortWithStatusJSON(http.StatusLocked,
					newErrorResponse(c, "ACCOUNT_LOCKED", "account is temporarily locked"))
				return
			}
		}

		if !allowExpiredPassword && account.PasswordExpired(now) {
			resp := newErrorResponse(c, "PASSWORD_EXPIRED", "password has expired")
			resp.Error.RequiresPasswordChange = true
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp)
			return
		}

		// Expiry warnings ride along on every authenticated request, not
		// only on login, so clients can prompt for rotation.
		if days, warn := account.PasswordExpiryWarning(now); warn {
			c.Header(PasswordExpiryHeader, strconv.Itoa(days))
		}

		c.Set(AccountIDKey, claims.AccountID)
		c.Set(ClaimsKey, claims)
		c.Set("role", claims.Role)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.AccountID = claims.AccountID
		}

		c.Next()
	}
}

func (a *Authenticator) extractToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token := strings.TrimSpace(parts[1])
			if token != "" {
				return token, true
			}
		}
		return "", false
	}

	if a.cookieName != "" {
		if cookie, err := c.Cookie(a.cookieName); err == nil && cookie != "" {
			return cookie, true
		}
	}

	return "", false
}

// GetAuthenticatedAccountID retrieves the account ID from context (helper for handlers)
func GetAuthenticatedAccountID(c *gin.Context) (string, bool) {
	accountID, exists := c.Get(AccountIDKey)
	if !exists {
		return "", false
	}

	if id, ok := accountID.(string); ok {
		return id, true
	}

	return "", false
}

// GetAccessTokenClaims retrieves the parsed claims from context.
func GetAccessTokenClaims(c *gin.Context) *security.AccessTokenClaims {
	val, exists := c.Get(ClaimsKey)
	if !exists {
		return nil
	}
	claims, _ := val.(*security.AccessTokenClaims)
	return claims
}
