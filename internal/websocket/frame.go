package websocket

import (
	"encoding/json"
	"fmt"

	"portal-service/internal/models"
)

// FrameType discriminates chat frames on the wire.
type FrameType string

const (
	// Inbound frame types
	FrameTypeAuth     FrameType = "auth"
	FrameTypeJoin     FrameType = "join"
	FrameTypeJoinRoom FrameType = "join_room"
	FrameTypeMessage  FrameType = "message"
	FrameTypeFile     FrameType = "file"
	FrameTypeTyping   FrameType = "typing"
	FrameTypeRead     FrameType = "read"
	FrameTypePong     FrameType = "pong"

	// Outbound frame types
	FrameTypeAuthSuccess FrameType = "auth_success"
	FrameTypeJoined      FrameType = "joined"
	FrameTypeError       FrameType = "error"
	FrameTypePing        FrameType = "ping"
)

func (ft FrameType) String() string {
	return string(ft)
}

// InboundFrame is the superset of all client frames. The Type field decides
// which of the remaining fields are meaningful.
type InboundFrame struct {
	Type FrameType `json:"type"`

	// auth
	Token string `json:"token,omitempty"`

	// join / join_room
	RoomID string `json:"room_id,omitempty"`

	// message
	Content *string `json:"content,omitempty"`
	ReplyTo *uint   `json:"reply_to,omitempty"`

	// file
	FileID   string            `json:"file_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	// typing
	Status string `json:"status,omitempty"`

	// read
	MessageIDs []uint `json:"message_ids,omitempty"`
}

// ParseInbound decodes a raw client frame.
func ParseInbound(data []byte) (*InboundFrame, error) {
	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if frame.Type == "" {
		return nil, fmt.Errorf("frame missing type")
	}
	return &frame, nil
}

// OutboundFrame is a server-to-client frame. Event payloads (message, typing,
// read) ride in Data; handshake and control frames use the flat fields.
type OutboundFrame struct {
	Type    FrameType `json:"type"`
	UserID  uint      `json:"user_id,omitempty"`  // auth_success
	RoomID  string    `json:"room_id,omitempty"`  // joined
	Message string    `json:"message,omitempty"`  // error
	Data    any       `json:"data,omitempty"`     // message / typing / read
}

// TypingData is the payload of an outbound typing frame.
type TypingData struct {
	UserID uint   `json:"user_id"`
	Status string `json:"status"`
}

// ReadData is the payload of an outbound read frame.
type ReadData struct {
	UserID     uint   `json:"user_id"`
	MessageIDs []uint `json:"message_ids"`
}

func NewAuthSuccessFrame(userID uint) *OutboundFrame {
	return &OutboundFrame{Type: FrameTypeAuthSuccess, UserID: userID}
}

func NewJoinedFrame(roomID string) *OutboundFrame {
	return &OutboundFrame{Type: FrameTypeJoined, RoomID: roomID}
}

func NewErrorFrame(message string) *OutboundFrame {
	return &OutboundFrame{Type: FrameTypeError, Message: message}
}

func NewPingFrame() *OutboundFrame {
	return &OutboundFrame{Type: FrameTypePing}
}

func NewMessageFrame(payload *models.MessagePayload) *OutboundFrame {
	return &OutboundFrame{Type: FrameTypeMessage, Data: payload}
}

func NewTypingFrame(userID uint, status string) *OutboundFrame {
	return &OutboundFrame{Type: FrameTypeTyping, Data: &TypingData{UserID: userID, Status: status}}
}

func NewReadFrame(userID uint, messageIDs []uint) *OutboundFrame {
	return &OutboundFrame{Type: FrameTypeRead, Data: &ReadData{UserID: userID, MessageIDs: messageIDs}}
}
