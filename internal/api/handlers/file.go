package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"portal-service/internal/api/middleware"
	"portal-service/internal/database"
	"portal-service/internal/models"
	"portal-service/internal/repositories/postgres"
	"portal-service/pkg/response"
)

// Only attachment types the portal clients can render.
var allowedMimeTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"image/webp":         true,
	"application/pdf":    true,
	"text/plain":         true,
	"application/zip":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
}

const maxUploadSize = 25 << 20 // 25 MiB

type FileHandler struct {
	chats   *postgres.ChatRepository
	storage *database.MinIOClient
}

func NewFileHandler(chats *postgres.ChatRepository, storage *database.MinIOClient) *FileHandler {
	return &FileHandler{chats: chats, storage: storage}
}

// Upload stores a chat attachment and returns the file id the client
// then references in its websocket file frame.
func (h *FileHandler) Upload(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	roomID := c.PostForm("room_id")
	if roomID == "" {
		response.Error(c, http.StatusBadRequest, "room_id is required")
		return
	}

	member, err := h.chats.IsRoomMember(roomID, user.ID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if !member {
		response.Error(c, http.StatusForbidden, "not a member of this room")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "file is required")
		return
	}
	if fileHeader.Size > maxUploadSize {
		response.Error(c, http.StatusRequestEntityTooLarge, "file exceeds the 25MB limit")
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !allowedMimeTypes[contentType] {
		response.Error(c, http.StatusUnsupportedMediaType, "file type is not allowed")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to read upload")
		return
	}
	defer src.Close()

	fileID := uuid.New().String()
	objectName := fmt.Sprintf("chat/%s/%s%s", roomID, fileID, filepath.Ext(fileHeader.Filename))
	storagePath, err := h.storage.Upload(c.Request.Context(), objectName, src, fileHeader.Size, contentType)
	if err != nil {
		slog.Error("Failed to store upload", "room_id", roomID, "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to store file")
		return
	}

	file := &models.ChatFile{
		ID:          fileID,
		RoomID:      roomID,
		UploaderID:  user.ID,
		Filename:    fileHeader.Filename,
		MimeType:    contentType,
		Size:        fileHeader.Size,
		StoragePath: storagePath,
	}
	if err := h.chats.SaveFile(file); err != nil {
		slog.Error("Failed to record upload", "file_id", fileID, "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to record file")
		return
	}

	slog.Info("File uploaded", "file_id", fileID, "room_id", roomID, "user_id", user.ID, "size", file.Size)
	c.JSON(http.StatusCreated, models.UploadFileResponse{
		FileID:   file.ID,
		Filename: file.Filename,
		MimeType: file.MimeType,
		Size:     file.Size,
	})
}

// Download streams a stored attachment back to a room member.
func (h *FileHandler) Download(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	file, err := h.chats.FileByID(c.Param("file_id"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load file")
		return
	}
	if file == nil {
		response.Error(c, http.StatusNotFound, "file not found")
		return
	}

	member, err := h.chats.IsRoomMember(file.RoomID, user.ID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if !member {
		response.Error(c, http.StatusForbidden, "not a member of this room")
		return
	}

	obj, err := h.storage.Download(c.Request.Context(), file.StoragePath)
	if err != nil {
		slog.Error("Failed to fetch stored file", "file_id", file.ID, "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to fetch file")
		return
	}
	defer obj.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.DataFromReader(http.StatusOK, file.Size, file.MimeType, obj, nil)
}
