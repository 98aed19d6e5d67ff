package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/certbridge/auth-service/internal/transport/http/middleware"
	"github.com/certbridge/auth-service/internal/usecase"
)

// PasswordHandler exposes the authenticated password change endpoint.
type PasswordHandler struct {
	passwords *usecase.PasswordService
}

// NewPasswordHandler constructs a password handler.
func NewPasswordHandler(passwords *usecase.PasswordService) *PasswordHandler {
	return &PasswordHandler{passwords: passwords}
}

// ChangePassword swaps the caller's credential. It is mounted behind the
// expired-password-tolerant auth middleware so expired accounts can recover.
func (h *PasswordHandler) ChangePassword(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHORIZED", "authentication required"))
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "INVALID_INPUT", "current_password and new_password are required"))
		return
	}

	if err := h.passwords.ChangePassword(c.Request.Context(), accountID, req.CurrentPassword, req.NewPassword); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCurrentPassword, Status: http.StatusUnauthorized, Code: "INVALID_CURRENT_PASSWORD", Message: "current password is incorrect"},
			{Err: usecase.ErrPasswordReused, Status: http.StatusBadRequest, Code: "PASSWORD_IN_HISTORY", Message: "password was used recently"},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Code: "WEAK_PASSWORD", Message: "password does not meet requirements"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "authentication required"},
		}, http.StatusInternalServerError, "INTERNAL", "failed to change password")
		return
	}

	// Outstanding tokens are invalidated by the version bump; the client must
	// sign in again.
	c.JSON(http.StatusOK, MessageResponse{Message: "password changed; sign in again"})
}
