package models

import (
	"time"
)

/** --------------------ENTITIES-------------------- */

// Post is a bulletin-board entry.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Category  string    `gorm:"size:20;not null;default:general" json:"category"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Author    string    `gorm:"size:50;not null" json:"author"`
	Views     int       `gorm:"default:0" json:"views"`
	Likes     int       `gorm:"default:0" json:"likes"`
	CreatedAt time.Time `json:"created_at"`

	Comments []Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"comments"`
}

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	Author    string    `gorm:"size:50;not null" json:"author"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

/** -------------------- DTOs -------------------- */

// Request
type CreatePostRequest struct {
	Category string `json:"category" binding:"required,oneof=general notice question suggestion"`
	Title    string `json:"title" binding:"required,max=200"`
	Content  string `json:"content" binding:"required"`
}

type CreateCommentRequest struct {
	Text string `json:"text" binding:"required"`
}

// Response
type CommentResponse struct {
	ID     uint   `json:"id"`
	PostID uint   `json:"post_id"`
	Author string `json:"author"`
	Text   string `json:"text"`
	Date   string `json:"date"`
}

type PostResponse struct {
	ID       uint              `json:"id"`
	Category string            `json:"category"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Author   string            `json:"author"`
	Date     string            `json:"date"`
	Views    int               `json:"views"`
	Likes    int               `json:"likes"`
	Comments []CommentResponse `json:"comments"`
}

func (c *Comment) ToResponse() CommentResponse {
	return CommentResponse{
		ID:     c.ID,
		PostID: c.PostID,
		Author: c.Author,
		Text:   c.Text,
		Date:   c.CreatedAt.Format("2006-01-02"),
	}
}

func (p *Post) ToResponse() *PostResponse {
	comments := make([]CommentResponse, 0, len(p.Comments))
	for _, c := range p.Comments {
		comments = append(comments, c.ToResponse())
	}
	return &PostResponse{
		ID:       p.ID,
		Category: p.Category,
		Title:    p.Title,
		Content:  p.Content,
		Author:   p.Author,
		Date:     p.CreatedAt.Format("2006-01-02"),
		Views:    p.Views,
		Likes:    p.Likes,
		Comments: comments,
	}
}
