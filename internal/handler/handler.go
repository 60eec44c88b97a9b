package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/young1lin/docsanswer/internal/config"
	"github.com/young1lin/docsanswer/internal/models"
	"github.com/young1lin/docsanswer/internal/pipeline"
	"github.com/young1lin/docsanswer/pkg/logger"
)

const maxRequestBody = 1 << 20

// emptyMessageReply is shown to callers that posted no question.
const emptyMessageReply = "Please send a question in the \"message\" field."

// Answerer runs one question through the documentation pipeline.
type Answerer interface {
	Run(ctx context.Context, message string) (*pipeline.Result, error)
}

// ChatHandler serves the chat endpoint, the MCP tool endpoint and health checks.
type ChatHandler struct {
	answerer   Answerer
	corsOrigin string
	mcp        http.Handler
}

// NewChatHandler creates the HTTP entry point around answerer.
func NewChatHandler(answerer Answerer, cfg *config.ServerConfig, version string) *ChatHandler {
	origin := cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	return &ChatHandler{
		answerer:   answerer,
		corsOrigin: origin,
		mcp:        newMCPHandler(answerer, version),
	}
}

// ServeHTTP handles all HTTP requests
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	traceID := extractTraceID(r)
	if traceID == "" {
		traceID = generateTraceID()
	}
	r = r.WithContext(logger.ContextWithTraceID(r.Context(), traceID))

	log := logger.WithTraceID(traceID)
	log.Info("request received",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	)

	w.Header().Set("X-Trace-ID", traceID)

	switch r.URL.Path {
	case "/health":
		h.handleHealth(w)
	case "/api/chat", "/api/chat/":
		h.handleChat(w, r, log)
	case "/mcp":
		h.mcp.ServeHTTP(w, r)
	default:
		writeError(w, http.StatusNotFound, "endpoint not found", "", log)
	}

	log.Info("request completed",
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

func (h *ChatHandler) handleHealth(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Unix(),
	})
}

func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	h.setCORSHeaders(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		writeError(w, http.StatusMethodNotAllowed, "only POST is allowed", "", log)
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body", emptyMessageReply, log)
		return
	}

	var req models.AskRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON", emptyMessageReply, log)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "message is required", emptyMessageReply, log)
		return
	}

	res, err := h.answerer.Run(r.Context(), message)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), pipeline.Guidance(err), log)
		return
	}

	log.Info("answer composed",
		zap.String("context_source", string(res.ContextSource)),
		zap.Int("answer_length", len(res.Answer)),
	)
	writeJSON(w, http.StatusOK, models.AskResponse{Response: res.Answer})
}

func (h *ChatHandler) setCORSHeaders(w http.ResponseWriter) {
	SetCORSHeaders(w, h.corsOrigin)
}

// SetCORSHeaders writes the headers browsers need to call the chat endpoint
// from origin.
func SetCORSHeaders(w http.ResponseWriter, origin string) {
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Trace-ID")
}

// writeError logs and writes an ErrorResponse.
func writeError(w http.ResponseWriter, status int, message, reply string, log *zap.Logger) {
	log.Error("request error",
		zap.String("message", message),
		zap.Int("status", status),
	)
	writeJSON(w, status, models.ErrorResponse{Error: message, Response: reply})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// extractTraceID extracts trace ID from various possible headers
func extractTraceID(r *http.Request) string {
	headers := []string{
		"X-Trace-ID",
		"X-Request-ID",
		"X-Correlation-ID",
		"Trace-ID",
		"Request-ID",
	}

	for _, header := range headers {
		if id := r.Header.Get(header); id != "" {
			return id
		}
	}

	return ""
}

func generateTraceID() string {
	return uuid.New().String()[:16]
}
