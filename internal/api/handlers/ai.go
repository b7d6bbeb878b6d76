package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"portal-service/internal/ai"
	"portal-service/internal/aiqueue"
	"portal-service/internal/api/middleware"
	"portal-service/pkg/response"
)

type AIChatRequest struct {
	Message   string    `json:"message" binding:"required"`
	History   []ai.Turn `json:"history"`
	SessionID string    `json:"session_id"`
}

type AIHandler struct {
	engine ai.Engine
	queue  *aiqueue.Queue
}

func NewAIHandler(engine ai.Engine, queue *aiqueue.Queue) *AIHandler {
	return &AIHandler{engine: engine, queue: queue}
}

// Chat answers a prompt over SSE. Requests pass through the admission
// queue first; while waiting, the stream carries live position events so
// the client can render its place in line.
func (h *AIHandler) Chat(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AIChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "message is required")
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, "streaming not supported")
		return
	}

	writeEvent := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	ctx := c.Request.Context()
	ticket := h.queue.Enqueue()
	err := h.queue.Wait(ctx, ticket, func(position int) {
		_ = writeEvent(gin.H{"type": "queue", "position": position})
	})
	if err != nil {
		// Client went away while queued; the ticket is already abandoned.
		slog.Info("AI request abandoned in queue", "user_id", user.ID, "error", err)
		return
	}
	defer h.queue.Release()

	if err := writeEvent(gin.H{"type": "processing", "session_id": sessionID}); err != nil {
		return
	}

	slog.Info("AI request admitted", "user_id", user.ID, "session_id", sessionID)
	err = h.engine.StreamChat(ctx, req.Message, req.History, func(chunk ai.Chunk) error {
		return writeEvent(chunk)
	})
	if err != nil {
		slog.Error("AI inference failed", "user_id", user.ID, "session_id", sessionID, "error", err)
		// Terminal chunk so the client stops waiting; the slot is still
		// released by the deferred call.
		_ = writeEvent(ai.Chunk{Content: "\n\n[response interrupted]", Done: true})
		return
	}
}

// Status reports backend reachability and model presence.
func (h *AIHandler) Status(c *gin.Context) {
	status := h.engine.Status(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"ollama":       status.Reachable,
		"model_loaded": status.ModelLoaded,
		"model":        status.Model,
		"busy":         h.queue.Processing(),
		"waiting":      h.queue.Len(),
	})
}
