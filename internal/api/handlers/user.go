package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"portal-service/internal/api/middleware"
	"portal-service/internal/models"
	"portal-service/internal/repositories/postgres"
	"portal-service/internal/services"
	"portal-service/pkg/response"
)

type UserHandler struct {
	users        *postgres.UserRepository
	authService  *services.AuthService
	redisService *services.RedisService
	onlineWindow time.Duration
}

func NewUserHandler(users *postgres.UserRepository, authService *services.AuthService, redisService *services.RedisService, onlineWindow time.Duration) *UserHandler {
	return &UserHandler{users: users, authService: authService, redisService: redisService, onlineWindow: onlineWindow}
}

// List returns all accounts. Admin only.
func (h *UserHandler) List(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	users, err := h.users.List(offset, limit)
	if err != nil {
		slog.Error("Failed to list users", "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to list users")
		return
	}

	out := make([]*models.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToResponse())
	}
	c.JSON(http.StatusOK, out)
}

// Get returns one account by id. Admin only.
func (h *UserHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.users.FindByID(uint(id))
	if err != nil {
		slog.Error("Failed to load user", "user_id", id, "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		response.Error(c, http.StatusNotFound, "user not found")
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}

// Create registers a new account. Admin only.
func (h *UserHandler) Create(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user payload")
		return
	}

	existing, err := h.users.FindByUsername(req.Username)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to check username")
		return
	}
	if existing != nil {
		response.Error(c, http.StatusConflict, "username already exists")
		return
	}

	hashed, err := h.authService.HashPassword(req.Password)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to create user")
		return
	}

	role := req.Role
	if role == "" {
		role = "user"
	}
	user := &models.User{
		Username: req.Username,
		Password: hashed,
		Name:     req.Name,
		Position: req.Position,
		Role:     role,
		IsActive: true,
	}
	if err := h.users.Create(user); err != nil {
		slog.Error("Failed to create user", "username", req.Username, "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to create user")
		return
	}

	slog.Info("User created", "username", user.Username, "user_id", user.ID)
	c.JSON(http.StatusCreated, user.ToResponse())
}

// Update patches mutable account fields. Admin only.
func (h *UserHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user payload")
		return
	}

	user, err := h.users.FindByID(uint(id))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		response.Error(c, http.StatusNotFound, "user not found")
		return
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Position != nil {
		user.Position = *req.Position
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := h.users.Update(user); err != nil {
		slog.Error("Failed to update user", "user_id", id, "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to update user")
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}

// Delete removes an account. Self-deletion is rejected. Admin only.
func (h *UserHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}

	caller, _ := middleware.CurrentUser(c)
	if caller != nil && caller.ID == uint(id) {
		response.Error(c, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	user, err := h.users.FindByID(uint(id))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		response.Error(c, http.StatusNotFound, "user not found")
		return
	}

	if err := h.users.Delete(uint(id)); err != nil {
		slog.Error("Failed to delete user", "user_id", id, "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to delete user")
		return
	}
	slog.Info("User deleted", "user_id", id, "by", caller.ID)
	response.Message(c, http.StatusOK, "user deleted")
}

// ResetPassword sets a new password for an account. Admin only.
func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}

	var req struct {
		NewPassword string `json:"new_password" binding:"required,min=4"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "new_password is required")
		return
	}

	user, err := h.users.FindByID(uint(id))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		response.Error(c, http.StatusNotFound, "user not found")
		return
	}

	hashed, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to reset password")
		return
	}
	if err := h.users.UpdatePassword(uint(id), hashed); err != nil {
		slog.Error("Failed to reset password", "user_id", id, "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to reset password")
		return
	}
	response.Message(c, http.StatusOK, "password reset")
}

// Heartbeat stamps the caller's last_heartbeat. The presence sweeper
// reads this to derive the online count.
func (h *UserHandler) Heartbeat(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.users.Heartbeat(user.ID); err != nil {
		slog.Error("Failed to record heartbeat", "user_id", user.ID, "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to record heartbeat")
		return
	}
	response.Message(c, http.StatusOK, "ok")
}

// Online returns ids of users with a recent heartbeat, plus the set of
// users currently holding a chat socket. The socket set degrades to empty
// when the mirror is unreachable.
func (h *UserHandler) Online(c *gin.Context) {
	ids, err := h.users.OnlineUserIDs(h.onlineWindow)
	if err != nil {
		slog.Error("Failed to list online users", "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to list online users")
		return
	}

	chatOnline := []string{}
	if h.redisService != nil {
		chatOnline, err = h.redisService.GetOnlineUsers(c.Request.Context())
		if err != nil {
			slog.Warn("Failed to read chat presence set", "error", err)
			chatOnline = []string{}
		}
	}

	c.JSON(http.StatusOK, gin.H{"online": ids, "count": len(ids), "chat_online": chatOnline})
}

// EventLog writes a client-supplied action to the audit log.
func (h *UserHandler) EventLog(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req models.EventLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "action is required")
		return
	}

	slog.Info("Client event", "user_id", user.ID, "username", user.Username, "action", req.Action)
	response.Message(c, http.StatusOK, "logged")
}
