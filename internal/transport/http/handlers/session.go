package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/certbridge/auth-service/internal/transport/http/middleware"
	"github.com/certbridge/auth-service/internal/usecase"
)

// SessionHandler exposes the bounded session registry endpoints.
type SessionHandler struct {
	sessions *usecase.SessionService
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(sessions *usecase.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterRoutes binds session management routes to the provided router group.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.list)
	r.DELETE("/:session_id", h.terminate)
}

func (h *SessionHandler) list(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHORIZED", "authentication required"))
		return
	}

	sessions, err := h.sessions.List(c.Request.Context(), accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "INTERNAL", "failed to list sessions"))
		return
	}

	currentSessionID := ""
	if claims := middleware.GetAccessTokenClaims(c); claims != nil {
		currentSessionID = claims.SessionID
	}

	payload := make([]SessionPayload, 0, len(sessions))
	for _, session := range sessions {
		payload = append(payload, newSessionPayload(session, currentSessionID))
	}

	c.JSON(http.StatusOK, SessionListResponse{
		Sessions: payload,
		Total:    len(payload),
	})
}

func (h *SessionHandler) terminate(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHORIZED", "authentication required"))
		return
	}

	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "INVALID_INPUT", "session_id is required"))
		return
	}

	if err := h.sessions.Terminate(c.Request.Context(), accountID, sessionID); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Code: "SESSION_NOT_FOUND", Message: "session not found"},
		}, http.StatusInternalServerError, "INTERNAL", "failed to terminate session")
		return
	}

	c.Status(http.StatusNoContent)
}
