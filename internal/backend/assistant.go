package backend

import "encoding/json"

// StartResponse represents the response from POST /start
type StartResponse struct {
	ConversationID string          `json:"conversation_id"`
	State          json.RawMessage `json:"state,omitempty"`
	Message        string          `json:"message,omitempty"`
	Status         string          `json:"status,omitempty"`
}

// ChatRequest represents the request body for POST /{conversation_id}
type ChatRequest struct {
	Message string          `json:"message"`
	State   json.RawMessage `json:"state"`
	Extra   any             `json:"extra,omitempty"`
}

// ChatResponse represents the response from POST /{conversation_id}
type ChatResponse struct {
	Response       string          `json:"response"`
	State          json.RawMessage `json:"state,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Status         string          `json:"status,omitempty"`
}

// HistoryMessage is one entry of the server-side conversation history
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HistoryResponse represents the response from GET /{conversation_id}/history
type HistoryResponse struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []HistoryMessage `json:"messages"`
	Status         string           `json:"status,omitempty"`
}

// ErrorResponse is the body the assistant service returns with non-2xx statuses
type ErrorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}
