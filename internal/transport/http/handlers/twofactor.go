package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/certbridge/auth-service/internal/transport/http/middleware"
	"github.com/certbridge/auth-service/internal/usecase"
)

// TwoFactorHandler exposes the TOTP provisioning handshake endpoints.
type TwoFactorHandler struct {
	twoFactor *usecase.TwoFactorService
}

// NewTwoFactorHandler constructs a two factor handler.
func NewTwoFactorHandler(twoFactor *usecase.TwoFactorService) *TwoFactorHandler {
	return &TwoFactorHandler{twoFactor: twoFactor}
}

// RegisterRoutes binds the authenticated 2FA management routes.
func (h *TwoFactorHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/setup", h.setup)
	r.POST("/confirm", h.confirm)
	r.POST("/disable", h.disable)
}

func (h *TwoFactorHandler) setup(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHORIZED", "authentication required"))
		return
	}

	enrollment, err := h.twoFactor.Setup(c.Request.Context(), accountID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrSecondFactorEnabled, Status: http.StatusConflict, Code: "2FA_ALREADY_ENABLED", Message: "second factor is already enabled"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "authentication required"},
		}, http.StatusInternalServerError, "INTERNAL", "failed to start second factor setup")
		return
	}

	c.JSON(http.StatusOK, TwoFactorSetupResponse{
		Secret:       enrollment.Secret,
		ProvisionURI: enrollment.ProvisionURI,
		QRCodePNG:    enrollment.QRCodePNG,
	})
}

func (h *TwoFactorHandler) confirm(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHORIZED", "authentication required"))
		return
	}

	var req TwoFactorConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "INVALID_INPUT", "code is required"))
		return
	}

	if err := h.twoFactor.Confirm(c.Request.Context(), accountID, strings.TrimSpace(req.Code)); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrNoPendingSetup, Status: http.StatusConflict, Code: "NO_PENDING_SETUP", Message: "no second factor setup in progress"},
			{Err: usecase.ErrInvalidSecondFactorCode, Status: http.StatusBadRequest, Code: usecase.CodeInvalidSecondFactor, Message: "invalid second factor code"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "authentication required"},
		}, http.StatusInternalServerError, "INTERNAL", "failed to confirm second factor")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "second factor enabled"})
}

func (h *TwoFactorHandler) disable(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHORIZED", "authentication required"))
		return
	}

	var req TwoFactorDisableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "INVALID_INPUT", "password and code are required"))
		return
	}

	if err := h.twoFactor.Disable(c.Request.Context(), accountID, req.Password, strings.TrimSpace(req.Code)); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrSecondFactorNotEnabled, Status: http.StatusConflict, Code: "2FA_NOT_ENABLED", Message: "second factor is not enabled"},
			{Err: usecase.ErrInvalidCurrentPassword, Status: http.StatusUnauthorized, Code: "INVALID_CURRENT_PASSWORD", Message: "current password is incorrect"},
			{Err: usecase.ErrInvalidSecondFactorCode, Status: http.StatusBadRequest, Code: usecase.CodeInvalidSecondFactor, Message: "invalid second factor code"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "authentication required"},
		}, http.StatusInternalServerError, "INTERNAL", "failed to disable second factor")
		return
	}

	// The token version bump signs out every session, this one included.
	c.JSON(http.StatusOK, MessageResponse{Message: "second factor disabled; sign in again"})
}
