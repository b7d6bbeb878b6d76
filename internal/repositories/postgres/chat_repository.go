package postgres

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"portal-service/internal/models"
)

// ChatRepository is the storage collaborator behind the session protocol and
// the chat REST surface.
type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db}
}

func (r *ChatRepository) IsRoomMember(roomID string, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.ChatRoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *ChatRepository) SaveMessage(msg *models.ChatMessage) error {
	return r.db.Create(msg).Error
}

// MarkRead inserts a read receipt; re-marking is a no-op thanks to the
// unique (message, user) index.
func (r *ChatRepository) MarkRead(messageID, userID uint) error {
	receipt := models.ChatReadReceipt{MessageID: messageID, UserID: userID}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipt).Error
}

// AdvanceWatermark raises the member's last-read id to messageID. A lower
// or equal submission leaves the stored watermark untouched.
func (r *ChatRepository) AdvanceWatermark(roomID string, userID uint, messageID uint) error {
	return r.db.Model(&models.ChatRoomMember{}).
		Where("room_id = ? AND user_id = ? AND (last_read_id IS NULL OR last_read_id < ?)",
			roomID, userID, messageID).
		Update("last_read_id", messageID).Error
}

func (r *ChatRepository) FileByID(fileID string) (*models.ChatFile, error) {
	var file models.ChatFile
	err := r.db.First(&file, "id = ?", fileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *ChatRepository) AttachFileToMessage(fileID string, messageID uint) error {
	return r.db.Model(&models.ChatFile{}).
		Where("id = ?", fileID).
		Update("message_id", messageID).Error
}

func (r *ChatRepository) SaveFile(file *models.ChatFile) error {
	return r.db.Create(file).Error
}

// RoomsOf lists the rooms the user is a durable member of, with their read
// watermark.
func (r *ChatRepository) RoomsOf(userID uint) ([]*models.RoomResponse, error) {
	var rows []struct {
		ID         string
		Name       string
		LastReadID *uint
	}
	err := r.db.Model(&models.ChatRoom{}).
		Select("chat_rooms.id, chat_rooms.name, chat_room_members.last_read_id").
		Joins("JOIN chat_room_members ON chat_room_members.room_id = chat_rooms.id").
		Where("chat_room_members.user_id = ?", userID).
		Order("chat_rooms.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	rooms := make([]*models.RoomResponse, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, &models.RoomResponse{ID: row.ID, Name: row.Name, LastReadID: row.LastReadID})
	}
	return rooms, nil
}

// History returns up to limit most recent messages of a room in ascending
// id order, each with author name, attachment info and read receipts.
func (r *ChatRepository) History(roomID string, limit int) ([]*models.MessagePayload, error) {
	if limit <= 0 {
		limit = 100
	}

	var messages []models.ChatMessage
	err := r.db.Where("room_id = ?", roomID).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// Oldest first for the client
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	userIDs := make([]uint, 0, len(messages))
	messageIDs := make([]uint, 0, len(messages))
	fileIDs := make([]string, 0)
	for _, m := range messages {
		userIDs = append(userIDs, m.UserID)
		messageIDs = append(messageIDs, m.ID)
		if m.FileID != nil {
			fileIDs = append(fileIDs, *m.FileID)
		}
	}

	names := make(map[uint]string)
	if len(userIDs) > 0 {
		var users []models.User
		if err := r.db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			names[u.ID] = u.Name
		}
	}

	readBy := make(map[uint][]uint)
	if len(messageIDs) > 0 {
		var receipts []models.ChatReadReceipt
		if err := r.db.Where("message_id IN ?", messageIDs).Order("user_id").Find(&receipts).Error; err != nil {
			return nil, err
		}
		for _, rc := range receipts {
			readBy[rc.MessageID] = append(readBy[rc.MessageID], rc.UserID)
		}
	}

	files := make(map[string]*models.ChatFile)
	if len(fileIDs) > 0 {
		var rows []models.ChatFile
		if err := r.db.Where("id IN ?", fileIDs).Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			files[rows[i].ID] = &rows[i]
		}
	}

	payloads := make([]*models.MessagePayload, 0, len(messages))
	for _, m := range messages {
		payload := &models.MessagePayload{
			ID:        m.ID,
			RoomID:    m.RoomID,
			UserID:    m.UserID,
			UserName:  names[m.UserID],
			Content:   m.Content,
			Type:      m.Type,
			ReplyTo:   m.ReplyTo,
			FileID:    m.FileID,
			CreatedAt: m.CreatedAt,
			ReadBy:    []uint{},
		}
		if ids, ok := readBy[m.ID]; ok {
			payload.ReadBy = ids
		}
		if m.FileID != nil {
			if f, ok := files[*m.FileID]; ok {
				payload.FileInfo = f.Info()
			}
		}
		payloads = append(payloads, payload)
	}
	return payloads, nil
}
