package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuflow/backend/internal/application/services"
	"github.com/docuflow/backend/pkg/constants"
)

// AuthHandler handles login against the identity store
type AuthHandler struct {
	svc *services.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(svc *services.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !BindJSON(c, &req) {
		return
	}

	token, session, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		constants.ResponseData: gin.H{
			"token": token,
			"user":  session,
		},
	})
}
