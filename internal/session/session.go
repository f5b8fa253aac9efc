package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single chat message
type Message struct {
	ID        int       `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Handle is the backend conversation handle plus the opaque continuation
// token the backend round-trips on every call.
type Handle struct {
	// LocalID correlates log lines for a session, including degraded
	// sessions that never received a conversation id.
	LocalID        string          `json:"local_id"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Token          json.RawMessage `json:"state,omitempty"`
}

// NewHandle creates an empty handle with a fresh local id
func NewHandle() Handle {
	return Handle{LocalID: uuid.NewString()}
}

// Connected reports whether the backend issued a conversation id
func (h Handle) Connected() bool {
	return h.ConversationID != ""
}
