package models

// ==================== Inbound API Models ====================

// AskRequest is the body accepted by the chat endpoint.
type AskRequest struct {
	Message string `json:"message"`
}

// AskResponse is returned when an answer was composed.
type AskResponse struct {
	Response string `json:"response"`
}

// ErrorResponse carries a diagnostic plus a user-facing fallback message.
type ErrorResponse struct {
	Error    string `json:"error"`
	Response string `json:"response"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}
