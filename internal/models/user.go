package models

import (
	"time"
)

/** --------------------ENTITIES-------------------- */

// User represents a portal account.
type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Username       string     `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email          *string    `gorm:"uniqueIndex;size:255" json:"email,omitempty"`
	Password       string     `gorm:"size:255;not null" json:"-"` // bcrypt hash, never serialized
	Name           string     `gorm:"size:100;not null" json:"name"`
	Position       string     `gorm:"size:50;not null" json:"position"`
	Role           string     `gorm:"size:20;not null;default:user" json:"role"`
	IsActive       bool       `gorm:"not null;default:true" json:"is_active"`
	LastHeartbeat  *time.Time `json:"last_heartbeat,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}

/** -------------------- DTOs -------------------- */

// Request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=4"`
	Name     string `json:"name" binding:"required"`
	Position string `json:"position" binding:"required"`
	Role     string `json:"role" binding:"omitempty,oneof=user admin"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty"`
	Position *string `json:"position,omitempty"`
	Role     *string `json:"role,omitempty" binding:"omitempty,oneof=user admin"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=4"`
}

type EventLogRequest struct {
	Action string `json:"action" binding:"required"`
}

// Response
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type UserResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Position: u.Position,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
}
