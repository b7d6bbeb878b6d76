package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newCORSTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func corsRequest(r *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/ping", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSReflectsConfiguredOrigin(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://portal.example.com, https://staging.example.com")
	r := newCORSTestRouter()

	w := corsRequest(r, http.MethodGet, "https://portal.example.com")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://portal.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = corsRequest(r, http.MethodGet, "https://staging.example.com")
	assert.Equal(t, "https://staging.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSOmitsAllowOriginForUnknownOrigin(t *testing.T) {
	r := newCORSTestRouter()

	w := corsRequest(r, http.MethodGet, "https://evil.example.com")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAllowsAnyLoopbackPort(t *testing.T) {
	r := newCORSTestRouter()

	w := corsRequest(r, http.MethodGet, "http://localhost:5173")
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	w = corsRequest(r, http.MethodGet, "http://127.0.0.1:8081")
	assert.Equal(t, "http://127.0.0.1:8081", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRejectsSpoofedLoopbackHost(t *testing.T) {
	r := newCORSTestRouter()

	w := corsRequest(r, http.MethodGet, "http://localhost.evil.com")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAnswersPreflightWithNoContent(t *testing.T) {
	r := newCORSTestRouter()

	w := corsRequest(r, http.MethodOptions, "http://localhost:3000")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "OPTIONS")
}
