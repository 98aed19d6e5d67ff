package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/certbridge/auth-service/internal/infra/config"
	"github.com/certbridge/auth-service/internal/transport/http/middleware"
	"github.com/certbridge/auth-service/internal/usecase"
)

// AuthHandler exposes the login pipeline endpoints.
type AuthHandler struct {
	login    *usecase.LoginService
	sessions *usecase.SessionService
	jwtCfg   config.JWTSettings
	metrics  *middleware.LoginMetrics
}

// AuthHandlerOption configures optional AuthHandler dependencies.
type AuthHandlerOption func(*AuthHandler)

// WithLoginMetrics injects the login outcome counter.
func WithLoginMetrics(metrics *middleware.LoginMetrics) AuthHandlerOption {
	return func(h *AuthHandler) {
		h.metrics = metrics
	}
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(login *usecase.LoginService, sessions *usecase.SessionService, jwtCfg config.JWTSettings, opts ...AuthHandlerOption) *AuthHandler {
	handler := &AuthHandler{
		login:    login,
		sessions: sessions,
		jwtCfg:   jwtCfg,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}

	return handler
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of the login endpoints.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, authMiddleware gin.HandlerFunc, loginMiddlewares ...gin.HandlerFunc) {
	loginChain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	r.POST("/login", append(loginChain, h.loginAttempt)...)

	completeChain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	r.POST("/login/2fa", append(completeChain, h.completeSecondFactor)...)

	if authMiddleware != nil {
		r.POST("/logout", authMiddleware, h.logout)
	}
}

func (h *AuthHandler) loginAttempt(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest,
			NewErrorResponse(c, usecase.CodeMissingCredentials, "identifier and password are required"))
		h.metrics.Record(usecase.CodeMissingCredentials)
		return
	}

	result, err := h.login.Login(c.Request.Context(), usecase.LoginInput{
		Identifier:        strings.TrimSpace(req.Identifier),
		Password:          req.Password,
		TwoFactorCode:     strings.TrimSpace(req.TwoFactorCode),
		CaptchaToken:      req.CaptchaToken,
		IP:                c.ClientIP(),
		UserAgent:         c.Request.UserAgent(),
		DeviceFingerprint: strings.TrimSpace(req.DeviceFingerprint),
	})
	if err != nil {
		h.metrics.Record(RespondWithLoginError(c, err))
		return
	}

	h.metrics.Record("success")
	h.respondLoggedIn(c, result)
}

func (h *AuthHandler) completeSecondFactor(c *gin.Context) {
	var req TwoFactorCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest,
			NewErrorResponse(c, usecase.CodeMissingCredentials, "continuation_token and code are required"))
		h.metrics.Record(usecase.CodeMissingCredentials)
		return
	}

	result, err := h.login.CompleteSecondFactor(
		c.Request.Context(),
		strings.TrimSpace(req.ContinuationToken),
		strings.TrimSpace(req.Code),
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		h.metrics.Record(RespondWithLoginError(c, err))
		return
	}

	h.metrics.Record("success")
	h.respondLoggedIn(c, result)
}

func (h *AuthHandler) logout(c *gin.Context) {
	claims := middleware.GetAccessTokenClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHORIZED", "authentication required"))
		return
	}

	if sessionID := strings.TrimSpace(claims.SessionID); sessionID != "" {
		if err := h.sessions.Logout(c.Request.Context(), claims.AccountID, sessionID); err != nil {
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "INTERNAL", "failed to end session"))
			return
		}
	}

	h.clearSessionCookie(c)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) respondLoggedIn(c *gin.Context, result *usecase.LoginResult) {
	h.setSessionCookie(c, result.Token)

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:           result.Token,
		TokenType:             "Bearer",
		ExpiresIn:             int(h.jwtCfg.AccessTokenTTL.Seconds()),
		SessionID:             result.SessionID,
		NewDevice:             result.NewDevice,
		PasswordExpiresInDays: result.PasswordExpiresInDays,
		Account:               newAccountSummary(result.Account),
	})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	if h.jwtCfg.CookieName == "" {
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.jwtCfg.CookieName, token, int(h.jwtCfg.AccessTokenTTL.Seconds()), "/", h.jwtCfg.CookieDomain, h.jwtCfg.CookieSecure, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	if h.jwtCfg.CookieName == "" {
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.jwtCfg.CookieName, "", -1, "/", h.jwtCfg.CookieDomain, h.jwtCfg.CookieSecure, true)
}
