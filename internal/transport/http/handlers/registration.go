package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/certbridge/auth-service/internal/usecase"
)

// RegistrationHandler exposes the account creation endpoint.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
}

// NewRegistrationHandler constructs a registration handler.
func NewRegistrationHandler(registration *usecase.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registration: registration}
}

// RegisterRoutes binds registration routes to the provided router group.
func (h *RegistrationHandler) RegisterRoutes(r *gin.RouterGroup, middlewares ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{}, middlewares...)
	r.POST("/register", append(chain, h.register)...)
}

func (h *RegistrationHandler) register(c *gin.Context) {
	if h.registration == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "UNAVAILABLE", "registration service unavailable"))
		return
	}

	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "INVALID_INPUT", "invalid registration payload"))
		return
	}

	account, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Username: strings.TrimSpace(req.Username),
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrAccountExists, Status: http.StatusConflict, Code: "ACCOUNT_EXISTS", Message: "username or email already registered"},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Code: "WEAK_PASSWORD", Message: "password does not meet requirements"},
			{Err: usecase.ErrInvalidRegistration, Status: http.StatusBadRequest, Code: "INVALID_INPUT", Message: "invalid registration payload"},
		}, http.StatusInternalServerError, "INTERNAL", "failed to register account")
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponse{
		Account: newAccountSummary(*account),
		Message: "account created",
	})
}
