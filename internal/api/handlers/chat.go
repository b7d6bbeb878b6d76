package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"portal-service/internal/api/middleware"
	"portal-service/internal/repositories/postgres"
	"portal-service/pkg/response"
)

const defaultHistoryLimit = 50

type ChatHandler struct {
	chats *postgres.ChatRepository
}

func NewChatHandler(chats *postgres.ChatRepository) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// Rooms lists the rooms the caller belongs to.
func (h *ChatHandler) Rooms(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	rooms, err := h.chats.RoomsOf(user.ID)
	if err != nil {
		slog.Error("Failed to list rooms", "user_id", user.ID, "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// History backfills recent messages for a room the caller is a member of.
// Clients call this before going live over the socket.
func (h *ChatHandler) History(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	roomID := c.Param("room_id")
	member, err := h.chats.IsRoomMember(roomID, user.ID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if !member {
		response.Error(c, http.StatusForbidden, "not a member of this room")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if limit <= 0 || limit > 200 {
		limit = defaultHistoryLimit
	}

	messages, err := h.chats.History(roomID, limit)
	if err != nil {
		slog.Error("Failed to load history", "room_id", roomID, "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to load history")
		return
	}
	c.JSON(http.StatusOK, messages)
}
