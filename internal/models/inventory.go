package models

import (
	"time"
)

/** --------------------ENTITIES-------------------- */

// InventoryItem tracks office stock levels.
type InventoryItem struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"size:200;not null" json:"name"`
	Category          string    `gorm:"size:20;not null" json:"category"`
	Quantity          int       `gorm:"not null;default:0" json:"quantity"`
	LowStockThreshold int       `gorm:"not null;default:10" json:"low_stock_threshold"`
	Location          *string   `gorm:"size:100" json:"location,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func (i *InventoryItem) IsLowStock() bool {
	return i.Quantity <= i.LowStockThreshold
}

/** -------------------- DTOs -------------------- */

type CreateInventoryItemRequest struct {
	Name              string  `json:"name" binding:"required,max=200"`
	Category          string  `json:"category" binding:"required"`
	Quantity          int     `json:"quantity" binding:"gte=0"`
	LowStockThreshold int     `json:"low_stock_threshold" binding:"gte=0"`
	Location          *string `json:"location,omitempty"`
}

type UpdateInventoryItemRequest struct {
	Name              *string `json:"name,omitempty"`
	Category          *string `json:"category,omitempty"`
	Quantity          *int    `json:"quantity,omitempty" binding:"omitempty,gte=0"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty" binding:"omitempty,gte=0"`
	Location          *string `json:"location,omitempty"`
}
