package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoalerta/chat-backend/models"
	"github.com/ecoalerta/chat-backend/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeChatService struct {
	result   *models.ChatResult
	err      error
	requests []models.ChatRequest
	deadline bool
}

func (f *fakeChatService) HandleMessage(ctx context.Context, req models.ChatRequest) (*models.ChatResult, error) {
	f.requests = append(f.requests, req)
	_, f.deadline = ctx.Deadline()
	return f.result, f.err
}

func newTestRouter(svc services.ChatService, format services.ResponseFormat) *gin.Engine {
	return NewRouter(NewChatController(svc, format, time.Minute), nil)
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var sampleResult = &models.ChatResult{
	Text: "Queimadas sem autorização são crime.",
	Sources: []models.SourceCitation{
		{Text: "https://gov.example/lei", Metadata: models.CitationMetadata{Source: "Lei 9.605"}},
	},
}

func TestHandleMessageMarkers(t *testing.T) {
	svc := &fakeChatService{result: sampleResult}
	router := newTestRouter(svc, services.FormatMarkers)

	w := do(router, http.MethodPost, "/", `{"message":"Posso queimar?","assistantName":"eco","image":""}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	body := w.Body.String()
	assert.Equal(t, 1, strings.Count(body, services.SourcesStartMarker))
	assert.Equal(t, 1, strings.Count(body, services.SourcesEndMarker))
	assert.True(t, strings.HasSuffix(body, services.SourcesEndMarker+sampleResult.Text))

	start := strings.Index(body, services.SourcesStartMarker) + len(services.SourcesStartMarker)
	end := strings.Index(body, services.SourcesEndMarker)
	var sources []models.SourceCitation
	require.NoError(t, json.Unmarshal([]byte(body[start:end]), &sources))
	assert.Equal(t, sampleResult.Sources, sources)

	require.Len(t, svc.requests, 1)
	assert.Equal(t, "Posso queimar?", svc.requests[0].Message)
	assert.Equal(t, "eco", svc.requests[0].AssistantName)
	assert.True(t, svc.deadline, "chat requests run with a deadline")
}

func TestHandleMessagePlain(t *testing.T) {
	router := newTestRouter(&fakeChatService{result: sampleResult}, services.FormatPlain)

	w := do(router, http.MethodPost, "/", `{"message":"oi"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `[{"text":"https://gov.example/lei","metadata":{"source":"Lei 9.605"}}]`+sampleResult.Text, w.Body.String())
}

func TestHandleMessageLegacyJSON(t *testing.T) {
	router := newTestRouter(&fakeChatService{result: sampleResult}, services.FormatJSON)

	w := do(router, http.MethodPost, "/", `{"message":"oi"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, sampleResult.Text, resp.Text)
	assert.Equal(t, sampleResult.Sources, resp.Sources)
}

func TestChatStructured(t *testing.T) {
	svc := &fakeChatService{result: &models.ChatResult{Text: "sem fontes"}}
	router := newTestRouter(svc, services.FormatMarkers)

	w := do(router, http.MethodPost, "/api/v1/chat", `{"message":"oi","files":{"image":"https://example.org/a.png"}}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sources":[],"text":"sem fontes"}`, w.Body.String())
	require.Len(t, svc.requests, 1)
	assert.Equal(t, "https://example.org/a.png", svc.requests[0].ImagePayload())
}

func TestChatRejectsMissingMessage(t *testing.T) {
	for _, body := range []string{`{}`, `{"message":""}`, `{"image":"x"}`, `not json`, ``} {
		t.Run(body, func(t *testing.T) {
			svc := &fakeChatService{result: sampleResult}
			router := newTestRouter(svc, services.FormatMarkers)

			w := do(router, http.MethodPost, "/", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotContains(t, w.Body.String(), services.SourcesStartMarker)
			assert.Empty(t, svc.requests)
		})
	}
}

func TestChatErrorStatuses(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{services.ErrEmptyMessage, http.StatusBadRequest},
		{fmt.Errorf("%w: bad base64", services.ErrInvalidImage), http.StatusBadRequest},
		{services.ErrVisionDisabled, http.StatusNotImplemented},
		{fmt.Errorf("could not answer query: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("elasticsearch unreachable"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			router := newTestRouter(&fakeChatService{err: tt.err}, services.FormatMarkers)

			for _, path := range []string{"/", "/api/v1/chat"} {
				w := do(router, http.MethodPost, path, `{"message":"oi"}`)
				assert.Equal(t, tt.status, w.Code, path)

				var resp models.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp.Error)
			}
		})
	}
}

func TestUpstreamErrorDetailsAreNotLeaked(t *testing.T) {
	router := newTestRouter(&fakeChatService{err: errors.New("dial tcp 10.0.0.5:9200: refused")}, services.FormatMarkers)

	w := do(router, http.MethodPost, "/", `{"message":"oi"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}
