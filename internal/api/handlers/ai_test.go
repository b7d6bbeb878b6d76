package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-service/internal/ai"
	"portal-service/internal/aiqueue"
	"portal-service/internal/models"
)

// scriptedEngine streams canned chunks, optionally failing midway.
type scriptedEngine struct {
	chunks  []string
	failure error
	status  ai.Status
}

func (e *scriptedEngine) StreamChat(ctx context.Context, message string, history []ai.Turn, onChunk func(ai.Chunk) error) error {
	for _, content := range e.chunks {
		if err := onChunk(ai.Chunk{Content: content}); err != nil {
			return err
		}
	}
	if e.failure != nil {
		return e.failure
	}
	return onChunk(ai.Chunk{Done: true})
}

func (e *scriptedEngine) Status(ctx context.Context) *ai.Status {
	return &e.status
}

func newAITestRouter(engine ai.Engine, queue *aiqueue.Queue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewAIHandler(engine, queue)
	withUser := func(c *gin.Context) {
		c.Set("user", &models.User{ID: 1, Username: "alice", Name: "Alice", IsActive: true})
	}
	router.POST("/ai/chat", withUser, handler.Chat)
	router.GET("/ai/status", withUser, handler.Status)
	return router
}

func postChat(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ai/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// sseEvents decodes every "data: {...}" line of an SSE body.
func sseEvents(t *testing.T, body string) []map[string]any {
	t.Helper()
	var events []map[string]any
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event map[string]any
		require.NoError(t, json.Unmarshal([]byte(line[len("data: "):]), &event))
		events = append(events, event)
	}
	return events
}

func TestChatStreamsProcessingThenChunks(t *testing.T) {
	engine := &scriptedEngine{chunks: []string{"Hel", "lo"}}
	queue := aiqueue.New(time.Millisecond)
	router := newAITestRouter(engine, queue)

	w := postChat(router, `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := sseEvents(t, w.Body.String())
	require.GreaterOrEqual(t, len(events), 4)

	assert.Equal(t, "processing", events[0]["type"])
	assert.NotEmpty(t, events[0]["session_id"])
	assert.Equal(t, "Hel", events[1]["content"])
	assert.Equal(t, false, events[1]["done"])
	assert.Equal(t, "lo", events[2]["content"])
	last := events[len(events)-1]
	assert.Equal(t, "", last["content"])
	assert.Equal(t, true, last["done"])

	assert.False(t, queue.Processing(), "slot released after the stream")
}

func TestChatReportsQueuePositionWhileWaiting(t *testing.T) {
	engine := &scriptedEngine{chunks: []string{"ok"}}
	queue := aiqueue.New(time.Millisecond)
	router := newAITestRouter(engine, queue)

	// Occupy the slot and park one ticket ahead, so the request observes
	// position 1 before being admitted.
	holder := queue.Enqueue()
	require.NoError(t, queue.Wait(context.Background(), holder, nil))
	ahead := queue.Enqueue()

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- postChat(router, `{"message":"hi"}`)
	}()

	time.Sleep(20 * time.Millisecond)
	queue.Abandon(ahead)
	queue.Release()

	var w *httptest.ResponseRecorder
	select {
	case w = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("chat request never finished")
	}

	events := sseEvents(t, w.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, "queue", events[0]["type"])
	assert.Equal(t, float64(1), events[0]["position"])

	var sawProcessing bool
	for _, event := range events {
		if event["type"] == "processing" {
			sawProcessing = true
		}
	}
	assert.True(t, sawProcessing, "processing event follows the queue events")
	assert.False(t, queue.Processing())
}

func TestChatReleasesSlotOnInferenceError(t *testing.T) {
	engine := &scriptedEngine{chunks: []string{"par"}, failure: fmt.Errorf("backend gone")}
	queue := aiqueue.New(time.Millisecond)
	router := newAITestRouter(engine, queue)

	w := postChat(router, `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)

	events := sseEvents(t, w.Body.String())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, true, last["done"], "error still terminates the stream")

	assert.False(t, queue.Processing(), "slot released on the error path")
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	queue := aiqueue.New(time.Millisecond)
	router := newAITestRouter(&scriptedEngine{}, queue)

	w := postChat(router, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, queue.Len())
}

func TestStatusReportsQueueState(t *testing.T) {
	engine := &scriptedEngine{status: ai.Status{Reachable: true, ModelLoaded: true, Model: "llama3.2"}}
	queue := aiqueue.New(time.Millisecond)
	router := newAITestRouter(engine, queue)

	req := httptest.NewRequest(http.MethodGet, "/ai/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["ollama"])
	assert.Equal(t, true, body["model_loaded"])
	assert.Equal(t, "llama3.2", body["model"])
	assert.Equal(t, false, body["busy"])
	assert.Equal(t, float64(0), body["waiting"])
}
