package postgres

import (
	"errors"

	"gorm.io/gorm"

	"portal-service/internal/models"
)

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db}
}

func (r *InventoryRepository) Create(item *models.InventoryItem) error {
	return r.db.Create(item).Error
}

func (r *InventoryRepository) List() ([]*models.InventoryItem, error) {
	var items []*models.InventoryItem
	err := r.db.Order("id").Find(&items).Error
	return items, err
}

func (r *InventoryRepository) FindByID(id uint) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *InventoryRepository) Update(item *models.InventoryItem) error {
	return r.db.Save(item).Error
}

func (r *InventoryRepository) Delete(id uint) error {
	return r.db.Delete(&models.InventoryItem{}, "id = ?", id).Error
}
