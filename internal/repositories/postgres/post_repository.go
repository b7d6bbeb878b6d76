package postgres

import (
	"errors"

	"gorm.io/gorm"

	"portal-service/internal/models"
)

type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db}
}

func (r *PostRepository) Create(post *models.Post) error {
	return r.db.Create(post).Error
}

func (r *PostRepository) List() ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.Preload("Comments", func(db *gorm.DB) *gorm.DB {
		return db.Order("comments.created_at")
	}).Order("created_at DESC").Find(&posts).Error
	return posts, err
}

func (r *PostRepository) FindByID(id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.Preload("Comments", func(db *gorm.DB) *gorm.DB {
		return db.Order("comments.created_at")
	}).First(&post, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *PostRepository) Delete(id uint) error {
	return r.db.Select("Comments").Delete(&models.Post{ID: id}).Error
}

func (r *PostRepository) IncrementViews(id uint) error {
	return r.db.Model(&models.Post{}).Where("id = ?", id).
		Update("views", gorm.Expr("views + 1")).Error
}

func (r *PostRepository) IncrementLikes(id uint) (int, error) {
	err := r.db.Model(&models.Post{}).Where("id = ?", id).
		Update("likes", gorm.Expr("likes + 1")).Error
	if err != nil {
		return 0, err
	}
	var likes int
	err = r.db.Model(&models.Post{}).Where("id = ?", id).Pluck("likes", &likes).Error
	return likes, err
}

func (r *PostRepository) AddComment(comment *models.Comment) error {
	return r.db.Create(comment).Error
}
