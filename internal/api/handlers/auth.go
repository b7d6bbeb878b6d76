package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"portal-service/internal/api/middleware"
	"portal-service/internal/models"
	"portal-service/internal/services"
	"portal-service/pkg/response"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login authenticates a user and issues a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "username and password are required")
		return
	}

	token, _, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, "invalid username or password")
		case errors.Is(err, services.ErrInactiveAccount):
			response.Error(c, http.StatusForbidden, "account is deactivated")
		default:
			slog.Error("Login failed", "error", err)
			response.Error(c, http.StatusInternalServerError, "login failed")
		}
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{AccessToken: token, TokenType: "bearer"})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}

// ChangePassword replaces the caller's password after verifying the
// current one.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req models.PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "current and new password are required")
		return
	}

	if err := h.authService.ChangePassword(user, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			response.Error(c, http.StatusUnauthorized, "current password is incorrect")
			return
		}
		slog.Error("Password change failed", "user_id", user.ID, "error", err)
		response.Error(c, http.StatusInternalServerError, "password change failed")
		return
	}

	response.Message(c, http.StatusOK, "password updated")
}

// Logout is a client-side token drop, the server only acknowledges it.
func (h *AuthHandler) Logout(c *gin.Context) {
	response.Message(c, http.StatusOK, "logged out")
}
