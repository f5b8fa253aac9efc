// Package stub is an in-memory stand-in for the assistant service. It speaks
// the same JSON contract as the real backend (start, chat, history) and
// answers every turn with a short acknowledgment, so the client can be run
// and tested without the recommendation service.
package stub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"IntakeChat/internal/backend"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const DefaultGreeting = "Hi! I'm your insurance assistant. How can I help you find the right insurance today?"

// State is the continuation token the stub hands out. Clients treat it as opaque.
type State struct {
	Turn int `json:"turn"`
}

type conversation struct {
	messages     []backend.HistoryMessage
	turn         int
	extra        json.RawMessage
	createdAt    time.Time
	lastActivity time.Time
}

// Server holds conversations in memory
type Server struct {
	greeting string
	logger   *slog.Logger
	now      func() time.Time

	mu            sync.Mutex
	conversations map[string]*conversation
}

// New creates a stub server. An empty greeting omits the message field from
// start responses.
func New(greeting string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		greeting:      greeting,
		logger:        logger,
		now:           time.Now,
		conversations: make(map[string]*conversation),
	}
}

// Routes returns the HTTP handler serving the assistant contract
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/start", s.handleStart)
	r.Post("/{conversationID}", s.handleChat)
	r.Get("/{conversationID}/history", s.handleHistory)
	return r
}

// Sweep drops conversations idle for longer than maxIdle and returns how many were removed
func (s *Server) Sweep(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	removed := 0
	for id, conv := range s.conversations {
		if conv.lastActivity.Before(cutoff) {
			delete(s.conversations, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live conversations
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	s.conversations[id] = &conversation{createdAt: now, lastActivity: now}
	s.mu.Unlock()

	token, _ := json.Marshal(State{})
	s.logger.Info("conversation started", "conversation_id", id)
	writeJSON(w, http.StatusOK, backend.StartResponse{
		ConversationID: id,
		State:          token,
		Message:        s.greeting,
		Status:         "success",
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	var req struct {
		Message string          `json:"message"`
		State   json.RawMessage `json:"state"`
		Extra   json.RawMessage `json:"extra"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, backend.ErrorResponse{Error: "Message is required", Status: "error"})
		return
	}

	s.mu.Lock()
	conv, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, backend.ErrorResponse{Error: "Conversation not found", Status: "error"})
		return
	}

	var got State
	if len(req.State) > 0 && json.Unmarshal(req.State, &got) == nil && got.Turn != conv.turn {
		s.logger.Warn("stale continuation token", "conversation_id", id, "got", got.Turn, "want", conv.turn)
	}

	conv.turn++
	conv.lastActivity = s.now()
	if len(req.Extra) > 0 && string(req.Extra) != "null" {
		conv.extra = req.Extra
	}
	reply := replyFor(req.Message, conv.extra != nil)
	conv.messages = append(conv.messages,
		backend.HistoryMessage{Role: "user", Content: req.Message},
		backend.HistoryMessage{Role: "assistant", Content: reply},
	)
	turn := conv.turn
	s.mu.Unlock()

	token, _ := json.Marshal(State{Turn: turn})
	writeJSON(w, http.StatusOK, backend.ChatResponse{
		Response:       reply,
		State:          token,
		ConversationID: id,
		Status:         "success",
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	s.mu.Lock()
	conv, ok := s.conversations[id]
	var msgs []backend.HistoryMessage
	if ok {
		msgs = append([]backend.HistoryMessage{}, conv.messages...)
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, backend.ErrorResponse{Error: "Conversation not found", Status: "error"})
		return
	}
	writeJSON(w, http.StatusOK, backend.HistoryResponse{
		ConversationID: id,
		Messages:       msgs,
		Status:         "success",
	})
}

func replyFor(message string, hasProfile bool) string {
	if hasProfile {
		return "Thanks! Based on what you told me (" + message + "), I'm pulling up matching plans. Anything else you'd like to know?"
	}
	return "You said: " + message + ". Could you tell me a bit more?"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
