package controller

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ecoalerta/chat-backend/services"
)

func TestHealth(t *testing.T) {
	router := newTestRouter(&fakeChatService{}, services.FormatMarkers)

	cases := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/health", ""},
		{http.MethodPost, "/health", ""},
		{http.MethodPost, "/health", `{"anything":"goes"}`},
		{http.MethodPost, "/health", `not even json`},
		{http.MethodGet, "/", ""},
	}
	for _, c := range cases {
		w := do(router, c.method, c.path, c.body)
		assert.Equal(t, http.StatusOK, w.Code, "%s %s", c.method, c.path)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	}
}

func TestCORSAllowsAnyOriginByDefault(t *testing.T) {
	router := newTestRouter(&fakeChatService{}, services.FormatMarkers)

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://chat.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRestrictedOrigins(t *testing.T) {
	router := NewRouter(NewChatController(&fakeChatService{}, services.FormatMarkers, time.Minute), []string{"https://chat.example"})

	allowed := httptest.NewRequest(http.MethodGet, "/health", strings.NewReader(""))
	allowed.Header.Set("Origin", "https://chat.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, allowed)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://chat.example", w.Header().Get("Access-Control-Allow-Origin"))

	denied := httptest.NewRequest(http.MethodGet, "/health", nil)
	denied.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, denied)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSConfig(t *testing.T) {
	assert.True(t, corsConfig(nil).AllowAllOrigins)
	assert.True(t, corsConfig([]string{"*"}).AllowAllOrigins)

	cfg := corsConfig([]string{"https://a.example"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://a.example"}, cfg.AllowOrigins)
}
