package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"portal-service/internal/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db}
}

func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) FindByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &user, err
}

func (r *UserRepository) FindByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &user, err
}

func (r *UserRepository) List(offset, limit int) ([]*models.User, error) {
	var users []*models.User
	err := r.db.Offset(offset).Limit(limit).Order("id").Find(&users).Error
	return users, err
}

func (r *UserRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

func (r *UserRepository) UpdatePassword(id uint, hashed string) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("password", hashed).Error
}

func (r *UserRepository) Delete(id uint) error {
	return r.db.Delete(&models.User{}, "id = ?", id).Error
}

// Heartbeat stamps the account's liveness timestamp; presence is derived
// from its recency.
func (r *UserRepository) Heartbeat(id uint) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("last_heartbeat", time.Now()).Error
}

// ClearHeartbeats resets every account to offline. Run at startup so a
// restarted server never reports stale presence.
func (r *UserRepository) ClearHeartbeats() error {
	return r.db.Model(&models.User{}).Where("last_heartbeat IS NOT NULL").Update("last_heartbeat", nil).Error
}

// CountOnline counts active accounts with a heartbeat inside the trailing
// window.
func (r *UserRepository) CountOnline(window time.Duration) (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).
		Where("is_active = ? AND last_heartbeat > ?", true, time.Now().Add(-window)).
		Count(&count).Error
	return count, err
}

func (r *UserRepository) OnlineUserIDs(window time.Duration) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.User{}).
		Where("is_active = ? AND last_heartbeat > ?", true, time.Now().Add(-window)).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}
