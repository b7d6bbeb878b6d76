package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"portal-service/internal/api/middleware"
	"portal-service/internal/models"
	"portal-service/internal/repositories/postgres"
	"portal-service/pkg/response"
)

type PostHandler struct {
	posts *postgres.PostRepository
}

func NewPostHandler(posts *postgres.PostRepository) *PostHandler {
	return &PostHandler{posts: posts}
}

func (h *PostHandler) List(c *gin.Context) {
	posts, err := h.posts.List()
	if err != nil {
		slog.Error("Failed to list posts", "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to list posts")
		return
	}

	out := make([]*models.PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ToResponse())
	}
	c.JSON(http.StatusOK, out)
}

// Get returns a post and bumps its view counter.
func (h *PostHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid post id")
		return
	}

	post, err := h.posts.FindByID(uint(id))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load post")
		return
	}
	if post == nil {
		response.Error(c, http.StatusNotFound, "post not found")
		return
	}

	if err := h.posts.IncrementViews(post.ID); err != nil {
		slog.Warn("Failed to bump view counter", "post_id", post.ID, "error", err)
	} else {
		post.Views++
	}
	c.JSON(http.StatusOK, post.ToResponse())
}

func (h *PostHandler) Create(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req models.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid post payload")
		return
	}

	post := &models.Post{
		Category: req.Category,
		Title:    req.Title,
		Content:  req.Content,
		Author:   user.Name,
	}
	if err := h.posts.Create(post); err != nil {
		slog.Error("Failed to create post", "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to create post")
		return
	}
	c.JSON(http.StatusCreated, post.ToResponse())
}

// Delete removes a post. Only the author or an admin may delete.
func (h *PostHandler) Delete(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid post id")
		return
	}

	post, err := h.posts.FindByID(uint(id))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load post")
		return
	}
	if post == nil {
		response.Error(c, http.StatusNotFound, "post not found")
		return
	}
	if post.Author != user.Name && !user.IsAdmin() {
		response.Error(c, http.StatusForbidden, "only the author or an admin can delete a post")
		return
	}

	if err := h.posts.Delete(post.ID); err != nil {
		slog.Error("Failed to delete post", "post_id", post.ID, "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to delete post")
		return
	}
	response.Message(c, http.StatusOK, "post deleted")
}

func (h *PostHandler) Like(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid post id")
		return
	}

	likes, err := h.posts.IncrementLikes(uint(id))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to like post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"likes": likes})
}

func (h *PostHandler) AddComment(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid post id")
		return
	}

	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "text is required")
		return
	}

	post, err := h.posts.FindByID(uint(id))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load post")
		return
	}
	if post == nil {
		response.Error(c, http.StatusNotFound, "post not found")
		return
	}

	comment := &models.Comment{
		PostID: post.ID,
		Author: user.Name,
		Text:   req.Text,
	}
	if err := h.posts.AddComment(comment); err != nil {
		slog.Error("Failed to add comment", "post_id", post.ID, "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to add comment")
		return
	}
	c.JSON(http.StatusCreated, comment.ToResponse())
}
