package models

import (
	"time"
)

// enum
type MessageType string

const (
	MessageTypeText MessageType = "text"
	MessageTypeFile MessageType = "file"
)

/** --------------------ENTITIES-------------------- */

// ChatRoom is a named channel with a fixed membership list.
type ChatRoom struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`

	Members []ChatRoomMember `gorm:"foreignKey:RoomID" json:"members,omitempty"`
}

// ChatRoomMember links a user to a room and carries the read watermark.
// LastReadID only ever advances; a lower value is ignored on update.
type ChatRoomMember struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RoomID     string    `gorm:"size:64;not null;uniqueIndex:idx_room_user" json:"room_id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_room_user" json:"user_id"`
	LastReadID *uint     `json:"last_read_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatMessage is immutable once written; read state lives in receipts.
type ChatMessage struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	RoomID    string      `gorm:"size:64;not null;index" json:"room_id"`
	UserID    uint        `gorm:"not null" json:"user_id"`
	Content   *string     `gorm:"type:text" json:"content,omitempty"`
	Type      MessageType `gorm:"size:10;not null;default:text" json:"type"`
	ReplyTo   *uint       `json:"reply_to,omitempty"`
	FileID    *string     `gorm:"size:64" json:"file_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// ChatReadReceipt records that a user has read a message. At most one row
// per (message, user) pair; re-marking is a no-op.
type ChatReadReceipt struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID uint      `gorm:"not null;uniqueIndex:idx_message_user" json:"message_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_message_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatFile is an uploaded attachment, linked back to its message once the
// file frame arrives over the socket.
type ChatFile struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	RoomID        string    `gorm:"size:64;not null;index" json:"room_id"`
	UploaderID    uint      `gorm:"not null" json:"uploader_id"`
	MessageID     *uint     `json:"message_id,omitempty"`
	Filename      string    `gorm:"size:255;not null" json:"filename"`
	MimeType      string    `gorm:"size:100;not null" json:"mime_type"`
	Size          int64     `gorm:"not null" json:"size"`
	StoragePath   string    `gorm:"size:500;not null" json:"-"`
	ThumbnailPath *string   `gorm:"size:500" json:"thumbnail_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

/** -------------------- DTOs -------------------- */

// FileInfo is the nested attachment block of a file-type message payload.
type FileInfo struct {
	Filename  string  `json:"filename"`
	MimeType  string  `json:"mime_type"`
	Size      int64   `json:"size"`
	Thumbnail *string `json:"thumbnail"`
}

func (f *ChatFile) Info() *FileInfo {
	return &FileInfo{
		Filename:  f.Filename,
		MimeType:  f.MimeType,
		Size:      f.Size,
		Thumbnail: f.ThumbnailPath,
	}
}

// MessagePayload is the full message body broadcast to room members and
// returned by the history endpoint.
type MessagePayload struct {
	ID        uint        `json:"id"`
	RoomID    string      `json:"room_id"`
	UserID    uint        `json:"user_id"`
	UserName  string      `json:"user_name"`
	Content   *string     `json:"content"`
	Type      MessageType `json:"type"`
	ReplyTo   *uint       `json:"reply_to,omitempty"`
	FileID    *string     `json:"file_id"`
	FileInfo  *FileInfo   `json:"file_info,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	ReadBy    []uint      `json:"read_by"`
}

type RoomResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LastReadID *uint  `json:"last_read_id,omitempty"`
}

type UploadFileResponse struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}
