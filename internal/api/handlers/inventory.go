package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"portal-service/internal/models"
	"portal-service/internal/repositories/postgres"
	"portal-service/pkg/response"
)

type InventoryHandler struct {
	items *postgres.InventoryRepository
}

func NewInventoryHandler(items *postgres.InventoryRepository) *InventoryHandler {
	return &InventoryHandler{items: items}
}

func (h *InventoryHandler) List(c *gin.Context) {
	items, err := h.items.List()
	if err != nil {
		slog.Error("Failed to list inventory", "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to list inventory")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *InventoryHandler) Create(c *gin.Context) {
	var req models.CreateInventoryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid item payload")
		return
	}

	item := &models.InventoryItem{
		Name:              req.Name,
		Category:          req.Category,
		Quantity:          req.Quantity,
		LowStockThreshold: req.LowStockThreshold,
		Location:          req.Location,
	}
	if item.LowStockThreshold == 0 {
		item.LowStockThreshold = 10
	}
	if err := h.items.Create(item); err != nil {
		slog.Error("Failed to create inventory item", "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to create item")
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *InventoryHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid item id")
		return
	}

	var req models.UpdateInventoryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid item payload")
		return
	}

	item, err := h.items.FindByID(uint(id))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load item")
		return
	}
	if item == nil {
		response.Error(c, http.StatusNotFound, "item not found")
		return
	}

	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.Category != nil {
		item.Category = *req.Category
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}
	if req.LowStockThreshold != nil {
		item.LowStockThreshold = *req.LowStockThreshold
	}
	if req.Location != nil {
		item.Location = req.Location
	}

	if err := h.items.Update(item); err != nil {
		slog.Error("Failed to update inventory item", "item_id", id, "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to update item")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *InventoryHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := h.items.FindByID(uint(id))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load item")
		return
	}
	if item == nil {
		response.Error(c, http.StatusNotFound, "item not found")
		return
	}

	if err := h.items.Delete(uint(id)); err != nil {
		slog.Error("Failed to delete inventory item", "item_id", id, "error", err)
		response.Error(c, http.StatusInternalServerError, "failed to delete item")
		return
	}
	response.Message(c, http.StatusOK, "item deleted")
}
