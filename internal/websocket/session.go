package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"portal-service/internal/models"
)

const (
	defaultHandshakeTimeout  = 10 * time.Second
	defaultHeartbeatInterval = 30 * time.Second
	defaultWriteWait         = 10 * time.Second
	defaultMaxMessageSize    = 64 * 1024
	sendBufferSize           = 256
)

var errAuthRequired = errors.New("first frame must be auth")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Desktop clients connect from file:// origins
		return true
	},
}

// TokenVerifier resolves a bearer token to an active account. Implemented by
// the auth service; faked in tests.
type TokenVerifier interface {
	Verify(token string) (*models.User, error)
}

// PresenceTracker mirrors connect and disconnect events into shared state
// so other processes can see who is on the socket. Optional; nil disables
// the mirror.
type PresenceTracker interface {
	SetUserOnline(ctx context.Context, userID uint) error
	SetUserOffline(ctx context.Context, userID uint) error
}

// ChatStore is the storage collaborator the session persists through.
// FileByID returns (nil, nil) when no such upload exists.
type ChatStore interface {
	IsRoomMember(roomID string, userID uint) (bool, error)
	SaveMessage(msg *models.ChatMessage) error
	MarkRead(messageID, userID uint) error
	AdvanceWatermark(roomID string, userID uint, messageID uint) error
	FileByID(fileID string) (*models.ChatFile, error)
	AttachFileToMessage(fileID string, messageID uint) error
}

type SessionConfig struct {
	HandshakeTimeout  time.Duration
	HeartbeatInterval time.Duration
	WriteWait         time.Duration
	MaxMessageSize    int64
}

func (c *SessionConfig) withDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
}

// SessionDeps bundles the collaborators one session needs.
type SessionDeps struct {
	Registry   *Registry
	Dispatcher *Dispatcher
	Verifier   TokenVerifier
	Store      ChatStore
	Presence   PresenceTracker
	Config     SessionConfig
}

// Session drives the per-connection protocol: handshake, heartbeat and frame
// dispatch for one socket. All writes to the socket funnel through the send
// channel so broadcast fan-in and the session's own replies never interleave
// mid-frame.
type Session struct {
	id         string
	conn       *websocket.Conn
	registry   *Registry
	dispatcher *Dispatcher
	verifier   TokenVerifier
	store      ChatStore
	presence   PresenceTracker
	cfg        SessionConfig

	user   *models.User
	roomID string

	send     chan []byte
	done     chan struct{}
	doneOnce sync.Once
	cleanup  sync.Once
	closed   int32
	writerWG sync.WaitGroup
}

func NewSession(conn *websocket.Conn, deps SessionDeps) *Session {
	deps.Config.withDefaults()
	return &Session{
		id:         uuid.New().String(),
		conn:       conn,
		registry:   deps.Registry,
		dispatcher: deps.Dispatcher,
		verifier:   deps.Verifier,
		store:      deps.Store,
		presence:   deps.Presence,
		cfg:        deps.Config,
		send:       make(chan []byte, sendBufferSize),
		done:       make(chan struct{}),
	}
}

// UserID implements Sender. Only meaningful once authenticated, which is the
// only time the registry can see this session.
func (s *Session) UserID() uint {
	if s.user == nil {
		return 0
	}
	return s.user.ID
}

// SendFrame implements Sender. It never blocks: a full buffer means the peer
// stopped draining, so the session is marked disconnected instead.
func (s *Session) SendFrame(frame *OutboundFrame) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrClientDisconnected
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return ErrClientDisconnected
	default:
		// A full buffer means the peer stopped draining; mark the session
		// dead rather than block a broadcast.
		slog.Warn("Send buffer full, dropping session", "sessionID", s.id, "userID", s.UserID())
		atomic.StoreInt32(&s.closed, 1)
		return ErrClientDisconnected
	}
}

// Run executes the session until the connection drops or a fatal protocol
// error occurs. It blocks the caller's goroutine.
func (s *Session) Run() {
	s.writerWG.Add(1)
	go s.writePump()

	defer s.teardown()

	user, err := s.handshake()
	if err != nil {
		slog.Info("Handshake failed", "sessionID", s.id, "error", err)
		return
	}
	s.user = user

	if err := s.SendFrame(NewAuthSuccessFrame(user.ID)); err != nil {
		return
	}
	s.registry.RegisterGlobal(user.ID, s)
	if s.presence != nil {
		if err := s.presence.SetUserOnline(context.Background(), user.ID); err != nil {
			slog.Warn("Presence mirror update failed", "userID", user.ID, "error", err)
		}
	}
	go s.heartbeat()

	slog.Info("Session authenticated", "sessionID", s.id, "userID", user.ID, "username", user.Username)
	s.readLoop()
}

// handshake waits for the auth frame. The read deadline doubles as the
// timeout side of the race: whichever of {frame, deadline} happens first
// decides the outcome and the other path never runs.
func (s *Session) handshake() (*models.User, error) {
	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		s.SendFrame(NewErrorFrame("authentication timed out"))
		return nil, err
	}
	s.conn.SetReadDeadline(time.Time{})

	frame, err := ParseInbound(data)
	if err != nil || frame.Type != FrameTypeAuth {
		s.SendFrame(NewErrorFrame("authentication required"))
		return nil, errAuthRequired
	}

	// Clients that reuse their REST credential send it with the scheme prefix.
	token := strings.TrimPrefix(frame.Token, "Bearer ")
	user, err := s.verifier.Verify(token)
	if err != nil {
		s.SendFrame(NewErrorFrame("authentication failed"))
		return nil, err
	}
	return user, nil
}

func (s *Session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Error("Session read error", "sessionID", s.id, "userID", s.UserID(), "error", err)
			} else {
				slog.Debug("Session closed", "sessionID", s.id, "userID", s.UserID())
			}
			return
		}

		frame, err := ParseInbound(data)
		if err != nil {
			s.SendFrame(NewErrorFrame("invalid frame"))
			continue
		}
		s.dispatch(frame)
	}
}

// dispatch routes one inbound frame. Unknown or failing frames answer with
// an error frame; only handshake and auth failures end the session.
func (s *Session) dispatch(frame *InboundFrame) {
	switch frame.Type {
	case FrameTypePong:
		// Heartbeat is fire and forget; nothing to reset.
	case FrameTypeJoin, FrameTypeJoinRoom:
		s.handleJoin(frame)
	case FrameTypeMessage:
		s.handleMessage(frame)
	case FrameTypeFile:
		s.handleFile(frame)
	case FrameTypeTyping:
		s.handleTyping(frame)
	case FrameTypeRead:
		s.handleRead(frame)
	default:
		s.SendFrame(NewErrorFrame("unknown frame type: " + frame.Type.String()))
	}
}

func (s *Session) handleJoin(frame *InboundFrame) {
	if frame.RoomID == "" {
		s.SendFrame(NewErrorFrame("room_id required"))
		return
	}

	member, err := s.store.IsRoomMember(frame.RoomID, s.user.ID)
	if err != nil {
		slog.Error("Membership lookup failed", "sessionID", s.id, "roomID", frame.RoomID, "error", err)
		s.SendFrame(NewErrorFrame("room lookup failed"))
		return
	}
	if !member {
		slog.Warn("Join denied", "sessionID", s.id, "userID", s.user.ID, "roomID", frame.RoomID)
		s.SendFrame(NewErrorFrame("not a member of this room"))
		return
	}

	// One live room registration per session; switching rooms drops the old one.
	if s.roomID != "" && s.roomID != frame.RoomID {
		s.registry.Unregister(s.roomID, s.user.ID)
	}
	s.roomID = frame.RoomID
	s.registry.Register(s.roomID, s.user.ID, s)

	slog.Info("Joined room", "sessionID", s.id, "userID", s.user.ID, "roomID", s.roomID)
	s.SendFrame(NewJoinedFrame(s.roomID))
}

func (s *Session) handleMessage(frame *InboundFrame) {
	if s.roomID == "" {
		s.SendFrame(NewErrorFrame("join a room first"))
		return
	}

	msg := &models.ChatMessage{
		RoomID:  s.roomID,
		UserID:  s.user.ID,
		Content: frame.Content,
		Type:    models.MessageTypeText,
		ReplyTo: frame.ReplyTo,
	}
	if err := s.store.SaveMessage(msg); err != nil {
		slog.Error("Message persist failed", "sessionID", s.id, "roomID", s.roomID, "error", err)
		s.SendFrame(NewErrorFrame("message not saved"))
		return
	}
	if err := s.store.MarkRead(msg.ID, s.user.ID); err != nil {
		slog.Warn("Sender receipt failed", "messageID", msg.ID, "error", err)
	}

	s.dispatcher.BroadcastToRoom(s.roomID, NewMessageFrame(&models.MessagePayload{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		UserName:  s.user.Name,
		Content:   msg.Content,
		Type:      models.MessageTypeText,
		ReplyTo:   msg.ReplyTo,
		CreatedAt: msg.CreatedAt,
		ReadBy:    []uint{},
	}))
}

func (s *Session) handleFile(frame *InboundFrame) {
	if s.roomID == "" {
		s.SendFrame(NewErrorFrame("join a room first"))
		return
	}

	file, err := s.store.FileByID(frame.FileID)
	if err != nil {
		slog.Error("File lookup failed", "fileID", frame.FileID, "error", err)
		s.SendFrame(NewErrorFrame("file lookup failed"))
		return
	}
	if file == nil {
		s.SendFrame(NewErrorFrame("file not found"))
		return
	}

	var caption *string
	if c, ok := frame.Metadata["caption"]; ok && c != "" {
		caption = &c
	}

	msg := &models.ChatMessage{
		RoomID:  s.roomID,
		UserID:  s.user.ID,
		Content: caption,
		Type:    models.MessageTypeFile,
		FileID:  &file.ID,
	}
	if err := s.store.SaveMessage(msg); err != nil {
		slog.Error("File message persist failed", "sessionID", s.id, "fileID", file.ID, "error", err)
		s.SendFrame(NewErrorFrame("message not saved"))
		return
	}
	if err := s.store.MarkRead(msg.ID, s.user.ID); err != nil {
		slog.Warn("Sender receipt failed", "messageID", msg.ID, "error", err)
	}
	if err := s.store.AttachFileToMessage(file.ID, msg.ID); err != nil {
		slog.Warn("File link failed", "fileID", file.ID, "messageID", msg.ID, "error", err)
	}

	s.dispatcher.BroadcastToRoom(s.roomID, NewMessageFrame(&models.MessagePayload{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		UserName:  s.user.Name,
		Content:   msg.Content,
		Type:      models.MessageTypeFile,
		FileID:    &file.ID,
		FileInfo:  file.Info(),
		CreatedAt: msg.CreatedAt,
		ReadBy:    []uint{},
	}))
}

func (s *Session) handleTyping(frame *InboundFrame) {
	if s.roomID == "" {
		return
	}
	s.dispatcher.BroadcastToRoomExcept(s.roomID, s.user.ID, NewTypingFrame(s.user.ID, frame.Status))
}

func (s *Session) handleRead(frame *InboundFrame) {
	if s.roomID == "" || len(frame.MessageIDs) == 0 {
		return
	}

	maxID := frame.MessageIDs[0]
	for _, id := range frame.MessageIDs[1:] {
		if id > maxID {
			maxID = id
		}
	}

	if err := s.store.AdvanceWatermark(s.roomID, s.user.ID, maxID); err != nil {
		slog.Error("Watermark update failed", "roomID", s.roomID, "userID", s.user.ID, "error", err)
		s.SendFrame(NewErrorFrame("read state not saved"))
		return
	}
	for _, id := range frame.MessageIDs {
		if err := s.store.MarkRead(id, s.user.ID); err != nil {
			slog.Warn("Receipt insert failed", "messageID", id, "userID", s.user.ID, "error", err)
		}
	}

	s.dispatcher.BroadcastToRoom(s.roomID, NewReadFrame(s.user.ID, frame.MessageIDs))
}

func (s *Session) heartbeat() {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.SendFrame(NewPingFrame()); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// writePump is the single writer path for this socket.
func (s *Session) writePump() {
	defer s.writerWG.Done()

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("Session write failed", "sessionID", s.id, "error", err)
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) signalDone() {
	s.doneOnce.Do(func() {
		close(s.done)
	})
}

// teardown runs exactly once on every exit path: registry cleanup, heartbeat
// stop, writer drain, socket close.
func (s *Session) teardown() {
	s.cleanup.Do(func() {
		if s.user != nil {
			s.registry.UnregisterGlobal(s.user.ID, s)
			if s.roomID != "" {
				s.registry.Unregister(s.roomID, s.user.ID)
			}
			// Only the last device flips the mirror back to offline.
			if s.presence != nil && !s.registry.IsUserOnline(s.user.ID) {
				if err := s.presence.SetUserOffline(context.Background(), s.user.ID); err != nil {
					slog.Warn("Presence mirror update failed", "userID", s.user.ID, "error", err)
				}
			}
		}

		// Let the writer flush anything queued (including a final error
		// frame) before the connection goes away.
		atomic.StoreInt32(&s.closed, 1)
		deadline := time.Now().Add(time.Second)
		for len(s.send) > 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}

		s.signalDone()
		s.writerWG.Wait()

		s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
		s.conn.WriteMessage(websocket.CloseMessage, []byte{})
		s.conn.Close()
		slog.Info("Session closed", "sessionID", s.id, "userID", s.UserID())
	})
}

// ServeWS upgrades an HTTP request and runs a session over it.
func ServeWS(w http.ResponseWriter, r *http.Request, deps SessionDeps) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}
	NewSession(conn, deps).Run()
}
