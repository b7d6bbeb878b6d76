package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-service/internal/models"
)

type fakeVerifier struct {
	users map[string]*models.User
}

func (v *fakeVerifier) Verify(token string) (*models.User, error) {
	user, ok := v.users[token]
	if !ok {
		return nil, fmt.Errorf("unknown token")
	}
	return user, nil
}

// fakePresence records the shared online set as the sessions see it.
type fakePresence struct {
	mu     sync.Mutex
	online map[uint]bool
}

func newFakePresence() *fakePresence {
	return &fakePresence{online: make(map[uint]bool)}
}

func (p *fakePresence) SetUserOnline(_ context.Context, userID uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID] = true
	return nil
}

func (p *fakePresence) SetUserOffline(_ context.Context, userID uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, userID)
	return nil
}

func (p *fakePresence) isOnline(userID uint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID]
}

// memStore is an in-memory ChatStore double.
type memStore struct {
	mu         sync.Mutex
	members    map[string]map[uint]bool
	messages   []*models.ChatMessage
	nextID     uint
	receipts   map[string]bool // "messageID:userID"
	watermarks map[string]uint // "roomID:userID"
	files      map[string]*models.ChatFile
}

func newMemStore() *memStore {
	return &memStore{
		members:    make(map[string]map[uint]bool),
		receipts:   make(map[string]bool),
		watermarks: make(map[string]uint),
		files:      make(map[string]*models.ChatFile),
	}
}

func (m *memStore) addMember(roomID string, userID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[roomID] == nil {
		m.members[roomID] = make(map[uint]bool)
	}
	m.members[roomID][userID] = true
}

func (m *memStore) IsRoomMember(roomID string, userID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[roomID][userID], nil
}

func (m *memStore) SaveMessage(msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg.ID = m.nextID
	msg.CreatedAt = time.Now()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memStore) MarkRead(messageID, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[fmt.Sprintf("%d:%d", messageID, userID)] = true
	return nil
}

func (m *memStore) AdvanceWatermark(roomID string, userID uint, messageID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s:%d", roomID, userID)
	if messageID > m.watermarks[key] {
		m.watermarks[key] = messageID
	}
	return nil
}

func (m *memStore) FileByID(fileID string) (*models.ChatFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[fileID], nil
}

func (m *memStore) AttachFileToMessage(fileID string, messageID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[fileID]; ok {
		f.MessageID = &messageID
	}
	return nil
}

func (m *memStore) watermark(roomID string, userID uint) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watermarks[fmt.Sprintf("%s:%d", roomID, userID)]
}

func (m *memStore) hasReceipt(messageID, userID uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.receipts[fmt.Sprintf("%d:%d", messageID, userID)]
}

func (m *memStore) receiptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.receipts)
}

func (m *memStore) fileMessageID(fileID string) (uint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok || f.MessageID == nil {
		return 0, false
	}
	return *f.MessageID, true
}

type sessionFixture struct {
	server   *httptest.Server
	registry *Registry
	store    *memStore
	presence *fakePresence
}

func newSessionFixture(t *testing.T, cfg SessionConfig) *sessionFixture {
	t.Helper()

	store := newMemStore()
	registry := NewRegistry()
	presence := newFakePresence()
	deps := SessionDeps{
		Registry:   registry,
		Dispatcher: NewDispatcher(registry),
		Verifier: &fakeVerifier{users: map[string]*models.User{
			"token-alice": {ID: 1, Username: "alice", Name: "Alice", IsActive: true},
			"token-bob":   {ID: 2, Username: "bob", Name: "Bob", IsActive: true},
		}},
		Store:    store,
		Presence: presence,
		Config:   cfg,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(w, r, deps)
	}))
	t.Cleanup(server.Close)

	return &sessionFixture{server: server, registry: registry, store: store, presence: presence}
}

func (f *sessionFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func readFrame(t *testing.T, conn *websocket.Conn) *OutboundFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame OutboundFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	return &frame
}

// authenticate performs the handshake and the initial room join.
func authenticate(t *testing.T, conn *websocket.Conn, token, roomID string) {
	t.Helper()
	sendFrame(t, conn, map[string]any{"type": "auth", "token": token})
	frame := readFrame(t, conn)
	require.Equal(t, FrameTypeAuthSuccess, frame.Type)

	if roomID != "" {
		sendFrame(t, conn, map[string]any{"type": "join", "room_id": roomID})
		frame = readFrame(t, conn)
		require.Equal(t, FrameTypeJoined, frame.Type)
		require.Equal(t, roomID, frame.RoomID)
	}
}

func dataField(t *testing.T, frame *OutboundFrame, key string) any {
	t.Helper()
	m, ok := frame.Data.(map[string]any)
	require.True(t, ok, "frame data should be an object")
	return m[key]
}

func TestSessionHandshakeTimeout(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{HandshakeTimeout: 100 * time.Millisecond})
	conn := f.dial(t)

	// Say nothing; the deadline side of the race must win.
	frame := readFrame(t, conn)
	assert.Equal(t, FrameTypeError, frame.Type)
	assert.Equal(t, "authentication timed out", frame.Message)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "socket should be closed after the timeout")
	assert.False(t, f.registry.IsUserOnline(1))
}

func TestSessionRejectsNonAuthFirstFrame(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	conn := f.dial(t)

	sendFrame(t, conn, map[string]any{"type": "join", "room_id": "general"})
	frame := readFrame(t, conn)
	assert.Equal(t, FrameTypeError, frame.Type)
	assert.Equal(t, "authentication required", frame.Message)
}

func TestSessionRejectsBadToken(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	conn := f.dial(t)

	sendFrame(t, conn, map[string]any{"type": "auth", "token": "forged"})
	frame := readFrame(t, conn)
	assert.Equal(t, FrameTypeError, frame.Type)
	assert.Equal(t, "authentication failed", frame.Message)
}

func TestSessionAuthSuccess(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	conn := f.dial(t)

	sendFrame(t, conn, map[string]any{"type": "auth", "token": "token-alice"})
	frame := readFrame(t, conn)
	assert.Equal(t, FrameTypeAuthSuccess, frame.Type)
	assert.Equal(t, uint(1), frame.UserID)

	assert.Eventually(t, func() bool {
		return f.registry.IsUserOnline(1)
	}, time.Second, 10*time.Millisecond)
}

func TestSessionAcceptsBearerPrefixedToken(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	conn := f.dial(t)

	// Clients reusing the REST credential keep the scheme prefix.
	sendFrame(t, conn, map[string]any{"type": "auth", "token": "Bearer token-alice"})
	frame := readFrame(t, conn)
	assert.Equal(t, FrameTypeAuthSuccess, frame.Type)
	assert.Equal(t, uint(1), frame.UserID)
}

func TestPresenceMirrorFollowsSessionLifecycle(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	conn := f.dial(t)

	sendFrame(t, conn, map[string]any{"type": "auth", "token": "token-alice"})
	require.Equal(t, FrameTypeAuthSuccess, readFrame(t, conn).Type)

	assert.Eventually(t, func() bool {
		return f.presence.isOnline(1)
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool {
		return !f.presence.isOnline(1)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPresenceMirrorWaitsForLastDevice(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})

	first := f.dial(t)
	second := f.dial(t)
	sendFrame(t, first, map[string]any{"type": "auth", "token": "token-alice"})
	require.Equal(t, FrameTypeAuthSuccess, readFrame(t, first).Type)
	sendFrame(t, second, map[string]any{"type": "auth", "token": "token-alice"})
	require.Equal(t, FrameTypeAuthSuccess, readFrame(t, second).Type)

	require.Eventually(t, func() bool {
		return len(f.registry.UserConnections([]uint{1})) == 2
	}, time.Second, 10*time.Millisecond)

	// Dropping one device keeps the user in the mirror.
	first.Close()
	require.Eventually(t, func() bool {
		return len(f.registry.UserConnections([]uint{1})) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, f.presence.isOnline(1))

	second.Close()
	assert.Eventually(t, func() bool {
		return !f.presence.isOnline(1)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJoinDeniedForNonMember(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	conn := f.dial(t)

	sendFrame(t, conn, map[string]any{"type": "auth", "token": "token-alice"})
	require.Equal(t, FrameTypeAuthSuccess, readFrame(t, conn).Type)

	sendFrame(t, conn, map[string]any{"type": "join", "room_id": "private"})
	frame := readFrame(t, conn)
	assert.Equal(t, FrameTypeError, frame.Type)
	assert.Equal(t, "not a member of this room", frame.Message)
	assert.False(t, f.registry.HasRoom("private"))
}

func TestMessageBroadcastToRoom(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.store.addMember("general", 1)
	f.store.addMember("general", 2)

	alice := f.dial(t)
	bob := f.dial(t)
	authenticate(t, alice, "token-alice", "general")
	authenticate(t, bob, "token-bob", "general")

	sendFrame(t, alice, map[string]any{"type": "message", "content": "hello"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		frame := readFrame(t, conn)
		require.Equal(t, FrameTypeMessage, frame.Type)
		assert.Equal(t, "general", dataField(t, frame, "room_id"))
		assert.Equal(t, float64(1), dataField(t, frame, "user_id"))
		assert.Equal(t, "Alice", dataField(t, frame, "user_name"))
		assert.Equal(t, "hello", dataField(t, frame, "content"))
		assert.Equal(t, []any{}, dataField(t, frame, "read_by"))
	}

	// The sender's own receipt is recorded on persist.
	assert.True(t, f.store.hasReceipt(1, 1))
	assert.False(t, f.store.hasReceipt(1, 2))
}

func TestRoomSwitchUnregistersOld(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.store.addMember("room-a", 1)
	f.store.addMember("room-b", 1)

	conn := f.dial(t)
	authenticate(t, conn, "token-alice", "room-a")
	require.True(t, f.registry.HasRoom("room-a"))

	sendFrame(t, conn, map[string]any{"type": "join", "room_id": "room-b"})
	frame := readFrame(t, conn)
	require.Equal(t, FrameTypeJoined, frame.Type)
	require.Equal(t, "room-b", frame.RoomID)

	assert.False(t, f.registry.HasRoom("room-a"), "old room registration should be dropped")
	assert.True(t, f.registry.HasRoom("room-b"))
}

func TestReadWatermarkAndReceipts(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.store.addMember("general", 1)
	f.store.addMember("general", 2)

	alice := f.dial(t)
	bob := f.dial(t)
	authenticate(t, alice, "token-alice", "general")
	authenticate(t, bob, "token-bob", "general")

	// Out-of-order ids advance the watermark to the maximum.
	sendFrame(t, bob, map[string]any{"type": "read", "message_ids": []uint{3, 1, 2}})

	frame := readFrame(t, alice)
	require.Equal(t, FrameTypeRead, frame.Type)
	assert.Equal(t, float64(2), dataField(t, frame, "user_id"))
	assert.Equal(t, []any{float64(3), float64(1), float64(2)}, dataField(t, frame, "message_ids"))

	assert.Eventually(t, func() bool {
		return f.store.watermark("general", 2) == 3
	}, time.Second, 10*time.Millisecond)
	assert.True(t, f.store.hasReceipt(1, 2))
	assert.True(t, f.store.hasReceipt(2, 2))
	assert.True(t, f.store.hasReceipt(3, 2))
	before := f.store.receiptCount()

	// A lower read never regresses the watermark, receipts stay put.
	sendFrame(t, bob, map[string]any{"type": "read", "message_ids": []uint{2}})
	frame = readFrame(t, alice)
	require.Equal(t, FrameTypeRead, frame.Type)

	assert.Equal(t, uint(3), f.store.watermark("general", 2))
	assert.Equal(t, before, f.store.receiptCount())
}

func TestTypingSkipsSender(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.store.addMember("general", 1)
	f.store.addMember("general", 2)

	alice := f.dial(t)
	bob := f.dial(t)
	authenticate(t, alice, "token-alice", "general")
	authenticate(t, bob, "token-bob", "general")

	sendFrame(t, alice, map[string]any{"type": "typing", "status": "start"})
	frame := readFrame(t, bob)
	require.Equal(t, FrameTypeTyping, frame.Type)
	assert.Equal(t, float64(1), dataField(t, frame, "user_id"))
	assert.Equal(t, "start", dataField(t, frame, "status"))

	// Alice never sees her own typing echo: the next frame she receives
	// is the message broadcast, not the typing event.
	sendFrame(t, alice, map[string]any{"type": "message", "content": "done typing"})
	frame = readFrame(t, alice)
	assert.Equal(t, FrameTypeMessage, frame.Type)
}

func TestFileMessageCarriesFileInfo(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.store.addMember("general", 1)
	f.store.files["file-1"] = &models.ChatFile{
		ID:       "file-1",
		RoomID:   "general",
		Filename: "report.pdf",
		MimeType: "application/pdf",
		Size:     2048,
	}

	conn := f.dial(t)
	authenticate(t, conn, "token-alice", "general")

	sendFrame(t, conn, map[string]any{
		"type":     "file",
		"file_id":  "file-1",
		"metadata": map[string]string{"caption": "quarterly report"},
	})

	frame := readFrame(t, conn)
	require.Equal(t, FrameTypeMessage, frame.Type)
	assert.Equal(t, "file", dataField(t, frame, "type"))
	assert.Equal(t, "file-1", dataField(t, frame, "file_id"))
	assert.Equal(t, "quarterly report", dataField(t, frame, "content"))

	info, ok := dataField(t, frame, "file_info").(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "report.pdf", info["filename"])
	assert.Equal(t, "application/pdf", info["mime_type"])
	assert.Equal(t, float64(2048), info["size"])

	// The upload row is linked back to the new message.
	assert.Eventually(t, func() bool {
		id, ok := f.store.fileMessageID("file-1")
		return ok && id == 1
	}, time.Second, 10*time.Millisecond)
}

func TestUnknownFrameKeepsSessionAlive(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.store.addMember("general", 1)

	conn := f.dial(t)
	authenticate(t, conn, "token-alice", "general")

	sendFrame(t, conn, map[string]any{"type": "bogus"})
	frame := readFrame(t, conn)
	assert.Equal(t, FrameTypeError, frame.Type)

	// The session survives and keeps serving frames.
	sendFrame(t, conn, map[string]any{"type": "message", "content": "still here"})
	frame = readFrame(t, conn)
	assert.Equal(t, FrameTypeMessage, frame.Type)
}

func TestDisconnectCleansRegistry(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.store.addMember("general", 1)

	conn := f.dial(t)
	authenticate(t, conn, "token-alice", "general")
	require.Eventually(t, func() bool {
		return f.registry.IsUserOnline(1)
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool {
		return !f.registry.IsUserOnline(1) && !f.registry.HasRoom("general")
	}, 2*time.Second, 10*time.Millisecond)
}
