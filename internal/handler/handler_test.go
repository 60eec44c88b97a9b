package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/young1lin/docsanswer/internal/config"
	"github.com/young1lin/docsanswer/internal/models"
	"github.com/young1lin/docsanswer/internal/pipeline"
	"github.com/young1lin/docsanswer/internal/search"
)

type fakeAnswerer struct {
	answer   string
	err      error
	messages []string
}

func (f *fakeAnswerer) Run(ctx context.Context, message string) (*pipeline.Result, error) {
	f.messages = append(f.messages, message)
	if f.err != nil {
		return &pipeline.Result{}, f.err
	}
	return &pipeline.Result{Answer: f.answer}, nil
}

func newTestHandler(a Answerer) *ChatHandler {
	return NewChatHandler(a, &config.ServerConfig{CORSOrigin: "https://docs.example.com"}, "test")
}

func postChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatReturnsAnswer(t *testing.T) {
	a := &fakeAnswerer{answer: "Use the webhooks page."}
	rec := postChat(t, newTestHandler(a), `{"message":"  How do webhooks work?  "}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Use the webhooks page.", resp.Response)
	assert.Equal(t, []string{"How do webhooks work?"}, a.messages)
	assert.Equal(t, "https://docs.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
}

func TestChatUnauthorizedModelReturnsGuidance(t *testing.T) {
	a := &fakeAnswerer{err: errors.New("compose answer: chat completion failed: error, status code: 401, status: 401 Unauthorized")}
	rec := postChat(t, newTestHandler(a), `{"message":"hi"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "401")
	assert.Equal(t, pipeline.APIKeyGuidance, resp.Response)
}

func TestChatRejectsBadBodies(t *testing.T) {
	for _, body := range []string{``, `not json`, `{}`, `{"message":"   "}`} {
		a := &fakeAnswerer{}
		rec := postChat(t, newTestHandler(a), body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Empty(t, a.messages, body)

		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, emptyMessageReply, resp.Response)
	}
}

func TestChatPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	rec := httptest.NewRecorder()
	newTestHandler(&fakeAnswerer{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://docs.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Empty(t, rec.Body.String())
}

func TestChatRejectsOtherMethods(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	newTestHandler(&fakeAnswerer{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Allow"))
}

func TestHealthAndNotFound(t *testing.T) {
	h := newTestHandler(&fakeAnswerer{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Positive(t, health.Timestamp)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTraceIDIsEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	newTestHandler(&fakeAnswerer{}).ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Trace-ID"))
}

// The MCP endpoint is exercised with the same client the pipeline uses to
// reach the documentation service.
func TestMCPAskDocs(t *testing.T) {
	a := &fakeAnswerer{answer: "Sign every payload."}
	srv := httptest.NewServer(newTestHandler(a))
	t.Cleanup(srv.Close)

	client := search.NewMCPClient(&config.SearchConfig{
		BaseURL:    srv.URL + "/mcp",
		ToolName:   askToolName,
		QueryParam: askToolParam,
		Timeout:    5,
	}, "test", nil)

	text, err := client.Search(context.Background(), "How do webhooks work?")
	require.NoError(t, err)
	assert.Equal(t, "Sign every payload.", text)
	assert.Equal(t, []string{"How do webhooks work?"}, a.messages)
}

func TestMCPAskDocsFailureIsToolError(t *testing.T) {
	a := &fakeAnswerer{err: errors.New("the model `gpt-9` does not exist")}
	srv := httptest.NewServer(newTestHandler(a))
	t.Cleanup(srv.Close)

	client := search.NewMCPClient(&config.SearchConfig{
		BaseURL:    srv.URL + "/mcp",
		ToolName:   askToolName,
		QueryParam: askToolParam,
		Timeout:    5,
	}, "test", nil)

	text, err := client.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, search.NoDocumentationFound, text)
}
